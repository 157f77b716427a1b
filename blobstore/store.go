// Package blobstore keeps custom character assets (voice lines, images,
// intro and background music, sound effects, fonts) in a single keyed
// container file.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store is an in-memory view of a container file. Reads never touch the disk;
// Save writes the whole container back.
type Store struct {
	path    string
	mu      sync.RWMutex
	order   []Key
	entries map[Key][]byte
	dirty   bool
}

// New returns an empty store that saves to path.
func New(path string) *Store {
	return &Store{path: path, entries: make(map[Key][]byte)}
}

// Open loads the container at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	entries, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	for _, e := range entries {
		s.put(e.Key, e.Data)
	}
	s.dirty = false
	return s, nil
}

// Path returns the file the store saves to.
func (s *Store) Path() string { return s.path }

// Get returns the blob stored under key.
func (s *Store) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[key]
	return b, ok, nil
}

// Put stores data under key, replacing any previous blob.
func (s *Store) Put(key Key, data []byte) {
	s.mu.Lock()
	s.put(key, append([]byte(nil), data...))
	s.mu.Unlock()
}

func (s *Store) put(key Key, data []byte) {
	if _, ok := s.entries[key]; !ok {
		s.order = append(s.order, key)
	}
	s.entries[key] = data
	s.dirty = true
}

// Delete removes one blob.
func (s *Store) Delete(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	s.compact()
	return true
}

// DeleteOwner removes every blob owned by owner and returns how many went.
func (s *Store) DeleteOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if k.Owner == owner {
			delete(s.entries, k)
			n++
		}
	}
	if n > 0 {
		s.compact()
	}
	return n
}

// compact drops deleted keys from order. Callers hold s.mu.
func (s *Store) compact() {
	kept := s.order[:0]
	for _, k := range s.order {
		if _, ok := s.entries[k]; ok {
			kept = append(kept, k)
		}
	}
	s.order = kept
	s.dirty = true
}

// Keys lists the keys of owner with the given kind, sorted by name.
func (s *Store) Keys(owner string, kind Kind) []Key {
	s.mu.RLock()
	var keys []Key
	for _, k := range s.order {
		if k.Owner == owner && k.Kind == kind {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// Len returns the number of blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Size returns the total payload size in bytes.
func (s *Store) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n uint64
	for _, b := range s.entries {
		n += uint64(len(b))
	}
	return n
}

// Import merges the container at path into the store. Blobs in the imported
// file replace existing ones with the same key.
func (s *Store) Import(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	entries, err := parse(data)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	s.mu.Lock()
	for _, e := range entries {
		s.put(e.Key, e.Data)
	}
	s.mu.Unlock()
	return len(entries), nil
}

// Save writes the container if anything changed since it was loaded.
func (s *Store) Save() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	entries := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		entries = append(entries, Entry{Key: k, Data: s.entries[k]})
	}
	s.dirty = false
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, Build(entries), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
