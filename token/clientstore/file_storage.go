package clientstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

var _ Storage = (*FileStorage)(nil)

// FileStorage keeps all items in a single JSON object on disk. It may be
// shared by several processes: every read-modify-write holds an exclusive
// lock on a sibling ".lock" file, and each write goes to a unique temp file
// that is renamed over the original, so a reader never sees a partial file.
type FileStorage struct {
	path     string
	lock     sync.Mutex
	fileLock *flock.Flock
}

func NewFileStorage(path string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[FileStorage New] create dir: %w", err)
	}
	return &FileStorage{path: path, fileLock: flock.New(path + ".lock")}, nil
}

// Path is the file backing the storage.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) GetItem(key string) (string, bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.fileLock.RLock(); err != nil {
		return "", false, fmt.Errorf("[FileStorage GetItem] lock: %w", err)
	}
	defer f.unlock()

	items, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (f *FileStorage) SetItem(key, value string) error {
	return f.update(func(items map[string]string) bool {
		items[key] = value
		return true
	})
}

func (f *FileStorage) RemoveItem(key string) error {
	return f.update(func(items map[string]string) bool {
		if _, ok := items[key]; !ok {
			return false
		}
		delete(items, key)
		return true
	})
}

// update applies fn to the current items under the exclusive lock and
// writes them back if fn reports a change.
func (f *FileStorage) update(fn func(items map[string]string) bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.fileLock.Lock(); err != nil {
		return fmt.Errorf("[FileStorage update] lock: %w", err)
	}
	defer f.unlock()

	items, err := f.read()
	if err != nil {
		return err
	}
	if !fn(items) {
		return nil
	}
	return f.write(items)
}

func (f *FileStorage) unlock() {
	_ = f.fileLock.Unlock()
}

func (f *FileStorage) read() (map[string]string, error) {
	items := map[string]string{}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileStorage read] %w", err)
	}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("[FileStorage read] corrupt %s: %w", f.path, err)
	}
	return items, nil
}

func (f *FileStorage) write(items map[string]string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("[FileStorage write] marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("[FileStorage write] %w", errors.Join(writeErr, closeErr))
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("[FileStorage write] chmod: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("[FileStorage write] rename: %w", err)
	}
	return nil
}
