// Package security keeps report files inside the configured output directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape indicates the resolved path would escape the output directory.
	ErrPathEscape = errors.New("path escapes base directory")
	// ErrUnsafeName indicates a file name that is empty, reserved or contains separators.
	ErrUnsafeName = errors.New("unsafe file name")
)

// ResolveWithin joins name under base and returns the absolute path, or
// ErrPathEscape when the result would leave base.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", errors.New("base directory is required")
	}

	root, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}

	target := filepath.Join(append([]string{root}, elems...)...)
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}

	return target, nil
}

// ValidateFileName accepts a bare file name such as a report name and
// rejects anything that could address another directory.
func ValidateFileName(name string) error {
	switch name {
	case "", ".", "..":
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}

// SanitizeFileComponent turns an arbitrary value such as a tenant host
// ("tenant.example.com:8443") into a token safe to embed in a file name.
func SanitizeFileComponent(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
