package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/chunglabmit/blockfs/errors"
)

// LocalProvider implements Provider against the local filesystem.
type LocalProvider struct{}

// NewLocalProvider returns a Provider backed by the local filesystem.
func NewLocalProvider() LocalProvider { return LocalProvider{} }

func (LocalProvider) Create(_ context.Context, name string) (Writer, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0777); err != nil {
		return nil, errors.E(errors.Unavailable, "create", name, err)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0666)
	if err != nil {
		return nil, errors.E(errors.Unavailable, "create", name, err)
	}
	return &localWriter{f: f}, nil
}

func (LocalProvider) OpenWriter(_ context.Context, name string, maxLen uint64) (Writer, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, "open", name, err)
		}
		return nil, errors.E(errors.Unavailable, "open", name, err)
	}
	if err := f.Truncate(int64(maxLen)); err != nil {
		f.Close()
		return nil, errors.E(errors.Unavailable, "truncate", name, err)
	}
	if _, err := f.Seek(int64(maxLen), 0); err != nil {
		f.Close()
		return nil, errors.E(errors.Unavailable, "seek", name, err)
	}
	return &localWriter{f: f, size: maxLen}, nil
}

func (LocalProvider) OpenReader(_ context.Context, name string) (Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, "open", name, err)
		}
		return nil, errors.E(errors.Unavailable, "open", name, err)
	}
	return &localReader{f: f}, nil
}

func (LocalProvider) Rename(_ context.Context, oldName, newName string) error {
	if err := os.MkdirAll(filepath.Dir(newName), 0777); err != nil {
		return errors.E(errors.Unavailable, "rename", err)
	}
	if err := os.Rename(oldName, newName); err != nil {
		return errors.E(errors.Unavailable, "rename", err)
	}
	return nil
}

func (LocalProvider) Remove(_ context.Context, name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.E(errors.Unavailable, "remove", err)
	}
	return nil
}

type localWriter struct {
	mu   sync.Mutex
	f    *os.File
	size uint64
}

func (w *localWriter) Append(_ context.Context, p []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	offset := w.size
	n, err := w.f.Write(p)
	w.size += uint64(n)
	if err != nil {
		return offset, errors.E(errors.Unavailable, "append", err)
	}
	return offset, nil
}

func (w *localWriter) Size() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *localWriter) Close(_ context.Context) error {
	if err := w.f.Sync(); err != nil {
		return errors.E(errors.Unavailable, "sync", err)
	}
	return w.f.Close()
}

type localReader struct {
	f *os.File
}

func (r *localReader) ReadAt(_ context.Context, p []byte, off uint64) (int, error) {
	n, err := r.f.ReadAt(p, int64(off))
	if err != nil {
		return n, errors.E(errors.Unavailable, "read", err)
	}
	return n, nil
}

func (r *localReader) Size(_ context.Context) (uint64, error) {
	info, err := r.f.Stat()
	if err != nil {
		return 0, errors.E(errors.Unavailable, "stat", err)
	}
	return uint64(info.Size()), nil
}

func (r *localReader) Close() error {
	return r.f.Close()
}
