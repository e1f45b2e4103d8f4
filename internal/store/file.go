package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultStorageDir is the directory used by the file store when none is
// configured, relative to the user's home directory.
const DefaultStorageDir = ".config/authkit/tokens"

// File is a Store persisting each value as a JSON file.
//
// Files are created with 0600 permissions inside a 0700 directory; the store
// holds credentials and must not be readable by other users. A read cache
// avoids hitting the filesystem on every lookup, and an fsnotify watcher
// drops cache entries when another process (for example the CLI) rewrites a
// token file.
type File struct {
	mu      sync.RWMutex
	dir     string
	cache   map[string][]byte // keyed by file name
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFile creates a file store rooted at dir. An empty dir selects
// DefaultStorageDir under the user's home directory.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: no home directory: %v", ErrUnavailable, err)
		}
		dir = filepath.Join(homeDir, DefaultStorageDir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating storage directory: %v", ErrUnavailable, err)
	}

	f := &File{
		dir:   dir,
		cache: make(map[string][]byte),
		done:  make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// The store still works without the watcher, it just reads the
		// filesystem on every Get for uncached keys.
		slog.Warn("file token store: watcher unavailable", "error", err.Error())
		return f, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		slog.Warn("file token store: cannot watch storage directory",
			"dir", dir,
			"error", err.Error(),
		)
		return f, nil
	}

	f.watcher = watcher
	go f.watch()
	return f, nil
}

// watch invalidates cache entries for files touched by other processes.
func (f *File) watch() {
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			f.mu.Lock()
			delete(f.cache, name)
			f.mu.Unlock()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file token store: watch error", "error", err.Error())
		}
	}
}

// Close stops the directory watcher.
func (f *File) Close() error {
	select {
	case <-f.done:
		return nil
	default:
	}
	close(f.done)
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}

// fileName maps a storage key to a filesystem-safe name.
func fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + ".json"
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	name := fileName(key)

	f.mu.RLock()
	if value, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	}
	f.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	f.mu.Lock()
	f.cache[name] = data
	f.mu.Unlock()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (f *File) Put(_ context.Context, key string, value []byte) error {
	name := fileName(key)

	if err := os.WriteFile(filepath.Join(f.dir, name), value, 0o600); err != nil {
		slog.Warn("SECURITY_AUDIT: token persistence failed",
			"event", "token_store_failed",
			"error", err.Error(),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	f.mu.Lock()
	f.cache[name] = stored
	f.mu.Unlock()
	return nil
}

func (f *File) Remove(_ context.Context, key string) error {
	name := fileName(key)

	f.mu.Lock()
	delete(f.cache, name)
	f.mu.Unlock()

	err := os.Remove(filepath.Join(f.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
