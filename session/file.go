package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FilePersistence stores slots in a single JSON document on local disk. Writes go to a
// temporary file in the same directory and are renamed into place.
type FilePersistence struct {
	path string
	mu   sync.Mutex
}

// NewFilePersistence returns a [FilePersistence] rooted at path. The file is created on the
// first Save.
func NewFilePersistence(path string) (*FilePersistence, error) {
	if path == "" {
		return nil, errors.New("file persistence requires a path")
	}
	return &FilePersistence{path: filepath.Clean(path)}, nil
}

// Path returns the backing file path.
func (f *FilePersistence) Path() string {
	return f.path
}

func (f *FilePersistence) Load(_ context.Context, slots ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(slots))
	for _, slot := range slots {
		if v, ok := doc[slot]; ok {
			out[slot] = v
		}
	}
	return out, nil
}

func (f *FilePersistence) Save(_ context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	for k, v := range values {
		doc[k] = v
	}
	return f.write(doc)
}

func (f *FilePersistence) Erase(_ context.Context, slots ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	changed := false
	for _, slot := range slots {
		if _, ok := doc[slot]; ok {
			delete(doc, slot)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(doc)
}

func (f *FilePersistence) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	doc := map[string]string{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: corrupt session file: %v", ErrPersistenceUnavailable, err)
	}
	return doc, nil
}

func (f *FilePersistence) write(doc map[string]string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}
