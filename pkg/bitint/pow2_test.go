// SPDX-License-Identifier: MIT
package bitint

import "testing"

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		input, want int
	}{
		{-1, 1},
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{1000, 1024},
		{4096, 4096},
		{4097, 8192},
	}
	for _, tt := range tests {
		if got := NextPowerOfTwo(tt.input); got != tt.want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
