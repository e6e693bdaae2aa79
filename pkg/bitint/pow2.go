// Package bitint provides the power-of-two rounding used for device period sizing.
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Powers of two are
// returned unchanged; zero and negative sizes return 1.
//
// The subtraction matters: bits.Len(8) is 4, bits.Len(8-1) is 3, so an exact
// power of two maps to itself instead of being doubled.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}
