// Package upload checks product attachments before they reach storage.
package upload

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Skotchmaster/product_catalog/internal/domain"
)

const (
	DefaultMaxBytes int64 = 16 << 20
	maxNameLen            = 200
)

var DefaultExtensions = []string{"txt", "pdf", "png", "jpg", "jpeg", "gif", "mp4", "avi", "mov", "wmv"}

type Validator struct {
	allowed  map[string]struct{}
	maxBytes int64
}

// NewValidator accepts extensions with or without a leading dot, in any case.
// A non-positive maxBytes falls back to DefaultMaxBytes.
func NewValidator(extensions []string, maxBytes int64) *Validator {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{allowed: allowed, maxBytes: maxBytes}
}

func (v *Validator) MaxBytes() int64 { return v.maxBytes }

func (v *Validator) Allows(ext string) bool {
	_, ok := v.allowed[strings.ToLower(ext)]
	return ok
}

// Validate returns a sanitized name for filename that is safe to use as a storage key.
func (v *Validator) Validate(filename string, size int64) (string, error) {
	base := baseName(filename)
	ext := Extension(base)
	if ext == "" || !v.Allows(ext) {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedExtension, ext)
	}
	if size < 0 || size > v.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", domain.ErrFileTooLarge, size, v.maxBytes)
	}
	return Sanitize(base), nil
}

func baseName(filename string) string {
	name := strings.ReplaceAll(filename, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Extension is the lower-cased text after the last dot of the base name.
func Extension(filename string) string {
	base := baseName(filename)
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// Sanitize strips directories, folds the name to ASCII and keeps only [A-Za-z0-9._-].
// Runs of dots collapse to one, so the result never contains "..".
func Sanitize(filename string) string {
	base := baseName(filename)
	ext := Extension(base)
	stem := base
	if ext != "" {
		stem = base[:len(base)-len(ext)-1]
	}

	stem = strings.Trim(clean(stem), "._")
	if len(stem) > maxNameLen {
		stem = strings.TrimRight(stem[:maxNameLen], "._")
	}
	if stem == "" {
		stem = "file"
	}
	if ext == "" {
		return stem
	}
	return stem + "." + clean(ext)
}

func clean(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	out := b.String()
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	return out
}
