package bridge

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
)

// ErrInvalidURL is returned for recording URLs that are not local file URLs.
var ErrInvalidURL = errors.New("invalid file URL")

// filePathFromURL resolves an absolute file: URL such as file:///tmp/a.wav to
// a local path. URLs with an authority, query or fragment are rejected.
func filePathFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch {
	case u.Scheme != "file":
		return "", fmt.Errorf("%w: scheme %q is not file", ErrInvalidURL, u.Scheme)
	case u.Opaque != "":
		return "", fmt.Errorf("%w: %q is not hierarchical", ErrInvalidURL, raw)
	case u.Host != "" || u.User != nil:
		return "", fmt.Errorf("%w: %q has an authority component", ErrInvalidURL, raw)
	case u.RawQuery != "" || u.ForceQuery:
		return "", fmt.Errorf("%w: %q has a query component", ErrInvalidURL, raw)
	case u.Fragment != "":
		return "", fmt.Errorf("%w: %q has a fragment component", ErrInvalidURL, raw)
	case u.Path == "" || u.Path[0] != '/':
		return "", fmt.Errorf("%w: %q has no absolute path", ErrInvalidURL, raw)
	}
	return filepath.FromSlash(u.Path), nil
}
