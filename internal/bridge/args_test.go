package bridge

import (
	"encoding/json"
	"errors"
	"testing"
)

func parseArgs(t *testing.T, s string) Args {
	t.Helper()
	var a Args
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		t.Fatalf("unmarshal %s: %v", s, err)
	}
	return a
}

func TestArgsInt(t *testing.T) {
	args := parseArgs(t, `[44100, "4096", 1.9, "x", null, true]`)

	tests := []struct {
		index   int
		want    int
		wantErr bool
	}{
		{0, 44100, false},
		{1, 4096, false},
		{2, 1, false},
		{3, 0, true},
		{4, 0, true},
		{5, 0, true},
		{6, 0, true},
		{-1, 0, true},
	}
	for _, tt := range tests {
		got, err := args.Int(tt.index)
		if (err != nil) != tt.wantErr {
			t.Errorf("Int(%d) error = %v, wantErr %v", tt.index, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrArgs) {
			t.Errorf("Int(%d) error %v does not wrap ErrArgs", tt.index, err)
		}
		if got != tt.want {
			t.Errorf("Int(%d) = %d, want %d", tt.index, got, tt.want)
		}
	}
}

func TestArgsString(t *testing.T) {
	args := parseArgs(t, `["PCM_16BIT", 7, false, {"a":1}, null]`)

	tests := []struct {
		index   int
		want    string
		wantErr bool
	}{
		{0, "PCM_16BIT", false},
		{1, "7", false},
		{2, "false", false},
		{3, "", true},
		{4, "", true},
		{5, "", true},
	}
	for _, tt := range tests {
		got, err := args.String(tt.index)
		if (err != nil) != tt.wantErr {
			t.Errorf("String(%d) error = %v, wantErr %v", tt.index, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestArgsIsNull(t *testing.T) {
	args := parseArgs(t, `[null, "file:///a.wav", 0]`)

	if !args.IsNull(0) {
		t.Error("IsNull(0) = false, want true")
	}
	if args.IsNull(1) || args.IsNull(2) {
		t.Error("IsNull on a value = true, want false")
	}
	if !args.IsNull(3) {
		t.Error("IsNull past the end = false, want true")
	}
}
