package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrArgs reports a missing or mistyped command argument.
var ErrArgs = errors.New("invalid argument")

// Args are the positional JSON arguments of a command.
type Args []json.RawMessage

func (a Args) at(i int) (json.RawMessage, error) {
	if i < 0 || i >= len(a) {
		return nil, fmt.Errorf("%w: index %d out of range (%d args)", ErrArgs, i, len(a))
	}
	return a[i], nil
}

// IsNull reports whether argument i is missing or JSON null.
func (a Args) IsNull(i int) bool {
	raw, err := a.at(i)
	if err != nil {
		return true
	}
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Int returns argument i as an int. Numeric strings are accepted and
// fractional values are truncated.
func (a Args) Int(i int) (int, error) {
	raw, err := a.at(i)
	if err != nil {
		return 0, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: arg %d is not a number: %s", ErrArgs, i, raw)
	}
	if v, err := n.Int64(); err == nil {
		return int(v), nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: arg %d is not a number: %s", ErrArgs, i, raw)
	}
	return int(f), nil
}

// String returns argument i as a string. Numbers and booleans are rendered
// in their JSON form.
func (a Args) String(i int) (string, error) {
	raw, err := a.at(i)
	if err != nil {
		return "", err
	}
	if a.IsNull(i) {
		return "", fmt.Errorf("%w: arg %d is null", ErrArgs, i)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: arg %d: %v", ErrArgs, i, err)
	}
	switch v.(type) {
	case float64, bool:
		return string(bytes.TrimSpace(raw)), nil
	default:
		return "", fmt.Errorf("%w: arg %d is not a string: %s", ErrArgs, i, raw)
	}
}
