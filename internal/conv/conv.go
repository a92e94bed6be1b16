// Package conv provides checked integer conversions used at archive
// encode/decode boundaries, where on-disk widths are fixed but Go code
// works with int.
package conv

import (
	"fmt"
	"math"
)

// IntToUint32 converts an int to uint32, rejecting negative or oversized values.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("conv: %d is negative, cannot convert to uint32", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("conv: %d overflows uint32", v)
	}
	return uint32(v), nil
}

// Uint32ToUint16 converts a uint32 to uint16, rejecting oversized values.
func Uint32ToUint16(v uint32) (uint16, error) {
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("conv: %d overflows uint16", v)
	}
	return uint16(v), nil
}
