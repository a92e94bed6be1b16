package fragindex

import (
	"errors"
	"fmt"

	"github.com/mzkit/fragindex/archive"
)

var (
	// ErrIndexNotFound is returned when a store does not hold a complete
	// persisted index. Which artifact was missing can be recovered from the
	// wrapped archive.ErrArtifactNotFound.
	ErrIndexNotFound = errors.New("index not found")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var nf *archive.ErrArtifactNotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %w", ErrIndexNotFound, err)
	}
	return err
}
