package docstore

import (
	"fmt"
	"strings"
)

// CleanPath validates p and strips leading and trailing slashes. Segments
// may contain letters, digits, '-', '_' and '.', but may not be "." or "..".
func CleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		for _, r := range seg {
			if !validRune(r) {
				return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
			}
		}
	}
	return p, nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent path and last segment of a clean path. The
// parent of a top-level path is "".
func Split(p string) (parent, key string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

func validRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}
