// Package ratelimit implements a persistent, cross-process sliding-window
// request counter. The store is a single JSON file shared by independent OS
// processes (separate CI jobs, the serve loop, ad-hoc CLI runs); every check
// round-trips through disk so concurrent processes observe each other.
package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Store maps "principal:action" keys to ordered request timestamps
// (unix seconds, float precision).
type Store map[string][]float64

// LockedStore abstracts the locking/retry/atomic-rename mechanics away from
// the limiter logic so it can be tested against an in-memory backend.
type LockedStore interface {
	Load() (Store, error)
	Save(Store) error
}

// ErrLockContention is returned by Save when the exclusive lock could not be
// acquired within the bounded retry budget. Load never returns it: read
// contention degrades to an empty store instead.
var ErrLockContention = errors.New("rate limit store locked by another process")

const (
	lockAttempts = 3
	lockBackoff  = 100 * time.Millisecond
)

// FileStore persists the Store as a JSON document with an advisory flock
// sidecar. The store file is created 0600 inside a 0700 parent directory.
// Locks are non-blocking with bounded retries so a stuck lock degrades
// gracefully instead of hanging a CI job.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path, ensuring the parent
// directory exists with 0700 permissions.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the backing store file.
func (f *FileStore) Path() string { return f.path }

// Load reads the store under a shared lock. A missing file, unreadable
// content, or exhausted lock retries all yield an empty store: reads fail
// open so lock starvation cannot deadlock the whole pipeline.
func (f *FileStore) Load() (Store, error) {
	lock, err := f.acquire(syscall.LOCK_SH)
	if err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("rate_limit_read_lock_timeout")
		return Store{}, nil
	}
	defer lock.release()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading rate limit store: %w", err)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("rate_limit_store_corrupt")
		return Store{}, nil
	}
	if store == nil {
		store = Store{}
	}
	return store, nil
}

// Save persists the store atomically: write to a temp file, fsync, chmod
// 0600, rename over the real file — a crash mid-write can never leave a
// partial document. The exclusive lock is held for the whole write. Returns
// ErrLockContention when retries are exhausted.
func (f *FileStore) Save(store Store) error {
	lock, err := f.acquire(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer lock.release()

	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("encoding rate limit store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".ratelimit-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp store file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting store permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp store file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing rate limit store: %w", err)
	}
	return nil
}

// fileLock holds an acquired advisory lock on the sidecar lock file. A
// sidecar is used rather than the store file itself because Save replaces
// the store's inode on every write.
type fileLock struct {
	file *os.File
}

func (l *fileLock) release() {
	if l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
}

// acquire takes a non-blocking advisory lock (LOCK_SH or LOCK_EX) with
// bounded retries and linear backoff (100ms × attempt).
func (f *FileStore) acquire(how int) (*fileLock, error) {
	lockFile, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	for attempt := 1; attempt <= lockAttempts; attempt++ {
		if err := syscall.Flock(int(lockFile.Fd()), how|syscall.LOCK_NB); err == nil {
			return &fileLock{file: lockFile}, nil
		}
		if attempt < lockAttempts {
			time.Sleep(lockBackoff * time.Duration(attempt))
		}
	}

	lockFile.Close()
	return nil, ErrLockContention
}

// MemStore is an in-memory LockedStore for tests and single-process use.
type MemStore struct {
	mu    sync.Mutex
	store Store
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{store: Store{}}
}

// Load returns a deep copy so callers cannot mutate shared state.
func (m *MemStore) Load() (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Store, len(m.store))
	for k, v := range m.store {
		out[k] = append([]float64(nil), v...)
	}
	return out, nil
}

// Save replaces the stored document.
func (m *MemStore) Save(store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
	return nil
}
