// SPDX-License-Identifier: MIT
package audio

import "testing"

func TestParseFormat(t *testing.T) {
	tests := []struct {
		tag     string
		want    Format
		wantErr bool
	}{
		{"", FormatPCM16, false},
		{"PCM_16BIT", FormatPCM16, false},
		{"PCM_8BIT", FormatPCM8, false},
		{"PCM_FLOAT", "", true},
		{"pcm_16bit", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.tag)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = (%q, %v), want (%q, err=%v)", tt.tag, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestFormatConvert(t *testing.T) {
	tests := []struct {
		format Format
		in     int16
		want   int
	}{
		{FormatPCM16, 0, 0},
		{FormatPCM16, -32768, -32768},
		{FormatPCM16, 12345, 12345},
		{FormatPCM8, 0, 128},
		{FormatPCM8, -32768, 0},
		{FormatPCM8, 32767, 255},
		{FormatPCM8, 256, 129},
	}
	for _, tt := range tests {
		if got := tt.format.Convert(tt.in); got != tt.want {
			t.Errorf("%s.Convert(%d) = %d, want %d", tt.format, tt.in, got, tt.want)
		}
	}
}

func TestFormatBitDepth(t *testing.T) {
	if FormatPCM16.BitDepth() != 16 || FormatPCM8.BitDepth() != 8 {
		t.Errorf("bit depths = %d/%d, want 16/8", FormatPCM16.BitDepth(), FormatPCM8.BitDepth())
	}
}

func TestConvertIntoReusesBuffer(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	dst := make([]int, 0, 8)
	out := FormatPCM16.ConvertInto(dst, samples)
	if len(out) != 4 || cap(out) != 8 {
		t.Errorf("ConvertInto len/cap = %d/%d, want 4/8", len(out), cap(out))
	}

	allocs := testing.AllocsPerRun(100, func() {
		out = FormatPCM8.ConvertInto(out, samples)
	})
	if allocs > 0 {
		t.Errorf("ConvertInto allocated with sufficient capacity: %.1f", allocs)
	}
}
