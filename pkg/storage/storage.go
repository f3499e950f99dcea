package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Namespaces owned by the pipeline
const (
	NamespaceConsent     = "consent"
	NamespaceSession     = "session"
	NamespaceAttribution = "attribution"
	NamespaceQueue       = "queue"
)

// Supported drivers
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

var (
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("storage: store is closed")
	// ErrUnavailable is returned when the backend cannot serve the request
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Interrupted reports whether err comes from a cancelled or expired context
// rather than from the backend itself.
func Interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Store is a namespaced key/value store holding JSON documents
type Store interface {
	// Get decodes the value stored under namespace/key into out.
	// It reports false when the key is absent.
	Get(ctx context.Context, namespace, key string, out interface{}) (bool, error)
	// Put encodes value and stores it under namespace/key
	Put(ctx context.Context, namespace, key string, value interface{}) error
	// Delete removes namespace/key; deleting a missing key is not an error
	Delete(ctx context.Context, namespace, key string) error
	// Clear removes every key in namespace
	Clear(ctx context.Context, namespace string) error
	// Close releases the backend
	Close() error
}

// Watcher is implemented by stores that can report namespace changes,
// including changes written by another process.
type Watcher interface {
	Watch(namespace string, fn func()) (stop func(), err error)
}

// Open creates a store for the given driver
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

// validateName keeps namespace and key names path-safe
func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%s cannot contain '..'", kind)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%s cannot contain path separators or null bytes", kind)
	}
	return nil
}
