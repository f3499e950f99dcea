package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileStore keeps one JSON document per namespace inside a directory
type FileStore struct {
	dir    string
	mu     sync.Mutex
	closed bool

	// change notification
	watcher  *fsnotify.Watcher
	subs     map[int]subscription
	subSeq   int
	timers   map[string]*time.Timer
	debounce time.Duration
	stopCh   chan struct{}
}

type subscription struct {
	namespace string
	fn        func()
}

// namespaceDoc is the on-disk layout of a namespace file
type namespaceDoc struct {
	Version string                     `json:"version"`
	SavedAt int64                      `json:"savedAt"`
	Entries map[string]json.RawMessage `json:"entries"`
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStore{
		dir:      dir,
		subs:     make(map[int]subscription),
		timers:   make(map[string]*time.Timer),
		debounce: 100 * time.Millisecond,
	}, nil
}

// Dir returns the store directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(namespace string) string {
	return filepath.Join(s.dir, namespace+".json")
}

// Get implements Store
func (s *FileStore) Get(ctx context.Context, namespace, key string, out interface{}) (bool, error) {
	if err := validateName("namespace", namespace); err != nil {
		return false, err
	}
	if err := validateName("key", key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	doc, err := s.readLocked(namespace)
	if err != nil {
		return false, err
	}

	raw, ok := doc.Entries[key]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", namespace, key, err)
	}

	return true, nil
}

// Put implements Store
func (s *FileStore) Put(ctx context.Context, namespace, key string, value interface{}) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}
	if err := validateName("key", key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", namespace, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	doc, err := s.readLocked(namespace)
	if err != nil {
		return err
	}
	doc.Entries[key] = data

	return s.writeLocked(namespace, doc)
}

// Delete implements Store
func (s *FileStore) Delete(ctx context.Context, namespace, key string) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	doc, err := s.readLocked(namespace)
	if err != nil {
		return err
	}
	if _, ok := doc.Entries[key]; !ok {
		return nil
	}
	delete(doc.Entries, key)

	return s.writeLocked(namespace, doc)
}

// Clear implements Store
func (s *FileStore) Clear(ctx context.Context, namespace string) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := os.Remove(s.path(namespace)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear namespace %s: %w", namespace, err)
	}
	return nil
}

// readLocked loads a namespace document; a missing file is an empty document
func (s *FileStore) readLocked(namespace string) (*namespaceDoc, error) {
	doc := &namespaceDoc{Entries: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(s.path(namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read namespace %s: %w", namespace, err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		// A torn or hand-edited file must not wedge the pipeline
		log.Warn().
			Str("namespace", namespace).
			Err(err).
			Msg("Corrupt namespace file, starting empty")
		return &namespaceDoc{Entries: make(map[string]json.RawMessage)}, nil
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]json.RawMessage)
	}

	return doc, nil
}

// writeLocked performs atomic write using temp file + rename
func (s *FileStore) writeLocked(namespace string, doc *namespaceDoc) error {
	doc.Version = "1"
	doc.SavedAt = time.Now().UnixMilli()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal namespace %s: %w", namespace, err)
	}

	target := s.path(namespace)
	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Close implements Store
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for ns, timer := range s.timers {
		timer.Stop()
		delete(s.timers, ns)
	}

	if s.watcher != nil {
		close(s.stopCh)
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}

	return nil
}
