package authstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	dirMode   = 0o700
	fileMode  = 0o600
	credsFile = "creds.json"
)

// FileStore keeps one directory per session under root.
type FileStore struct {
	root  string
	locks *keyedMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates root when missing and returns a store rooted there.
func NewFileStore(root string) (*FileStore, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("create auth state root: %w", err)
	}
	return &FileStore{root: root, locks: newKeyedMutex()}, nil
}

// Root returns the directory holding the partitions.
func (f *FileStore) Root() string {
	return f.root
}

func (f *FileStore) Load(ctx context.Context, id string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	unlock := f.locks.Lock(id)
	defer unlock()

	data, err := os.ReadFile(f.credsPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read auth state %q: %w", id, err)
	}
	return Unmarshal(data)
}

func (f *FileStore) Save(ctx context.Context, id string, s *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	if s == nil {
		return ErrNilState
	}

	c := s.Clone()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	data, err := Marshal(c)
	if err != nil {
		return err
	}

	unlock := f.locks.Lock(id)
	defer unlock()

	if err := os.MkdirAll(f.partition(id), dirMode); err != nil {
		return fmt.Errorf("create auth state partition %q: %w", id, err)
	}
	if err := writeFile(f.credsPath(id), data, fileMode); err != nil {
		return fmt.Errorf("write auth state %q: %w", id, err)
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}

	unlock := f.locks.Lock(id)
	defer unlock()

	if err := os.RemoveAll(f.partition(id)); err != nil {
		return fmt.Errorf("delete auth state partition %q: %w", id, err)
	}
	return nil
}

func (f *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("list auth state partitions: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || ValidateID(e.Name()) != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *FileStore) partition(id string) string {
	return filepath.Join(f.root, id)
}

func (f *FileStore) credsPath(id string) string {
	return filepath.Join(f.root, id, credsFile)
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}
