// Package storage keeps uploaded product files under flat keys.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/Skotchmaster/product_catalog/internal/domain"
)

const maxKeyLen = 255

var ErrInvalidKey = errors.New("invalid storage key")

// Staged is an upload written to a temporary location. It becomes visible under
// its key only after Commit.
type Staged interface {
	Key() string
	Size() int64
	Commit(ctx context.Context) error
	// Discard drops an uncommitted upload; after Commit it does nothing.
	Discard() error
}

type Object struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

type Store interface {
	Stage(ctx context.Context, key string, r io.Reader) (Staged, error)
	// Open returns domain.ErrNotFound for missing or invalid keys.
	Open(ctx context.Context, key string) (*Object, error)
	// Remove is a no-op for keys that do not exist.
	Remove(ctx context.Context, key string) error
}

// ValidKey accepts a single path element made of [A-Za-z0-9._-] that does not start with a dot.
func ValidKey(key string) bool {
	if key == "" || len(key) > maxKeyLen || key[0] == '.' || strings.Contains(key, "..") {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

func notFound(key string) error {
	return &keyError{key: key, err: domain.ErrNotFound}
}

type keyError struct {
	key string
	err error
}

func (e *keyError) Error() string { return e.err.Error() + ": " + e.key }
func (e *keyError) Unwrap() error { return e.err }
