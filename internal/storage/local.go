package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Local stores files in one flat directory. Every read and write goes through
// os.Root, so no key can reach outside it.
type Local struct {
	dir  string
	root *os.Root
}

func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open upload dir: %w", err)
	}
	return &Local{dir: abs, root: root}, nil
}

func (s *Local) Dir() string { return s.dir }

func (s *Local) Close() error { return s.root.Close() }

func (s *Local) Stage(ctx context.Context, key string, r io.Reader) (Staged, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	tmp := "." + key + ".tmp-" + uuid.NewString()[:8]
	f, err := s.root.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.root.Remove(tmp)
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	return &localStaged{store: s, key: key, tmp: tmp, size: n}, nil
}

func (s *Local) Open(_ context.Context, key string) (*Object, error) {
	if !ValidKey(key) {
		return nil, notFound(key)
	}
	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(key)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, notFound(key)
	}
	return &Object{ReadSeekCloser: f, Name: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *Local) Remove(_ context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := s.root.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type localStaged struct {
	store     *Local
	key       string
	tmp       string
	size      int64
	committed bool
	discarded bool
}

func (st *localStaged) Key() string { return st.key }
func (st *localStaged) Size() int64 { return st.size }

// Commit renames the temp file into place. Both names are single validated path
// elements inside the root directory.
func (st *localStaged) Commit(ctx context.Context) error {
	if st.discarded {
		return errors.New("staged upload already discarded")
	}
	if st.committed {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(filepath.Join(st.store.dir, st.tmp), filepath.Join(st.store.dir, st.key)); err != nil {
		return fmt.Errorf("commit %s: %w", st.key, err)
	}
	st.committed = true
	return nil
}

func (st *localStaged) Discard() error {
	if st.committed || st.discarded {
		return nil
	}
	st.discarded = true
	if err := st.store.root.Remove(st.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
