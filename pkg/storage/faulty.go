package storage

import (
	"context"
	"sync/atomic"
)

// Faulty wraps a Store and fails operations on demand. It stands in for a
// full disk or a read-only data directory.
type Faulty struct {
	Store

	failWrites atomic.Bool
	failReads  atomic.Bool
	writes     atomic.Int64
}

// NewFaulty wraps inner
func NewFaulty(inner Store) *Faulty {
	return &Faulty{Store: inner}
}

// SetFailWrites toggles failure of Put, Delete and Clear
func (f *Faulty) SetFailWrites(fail bool) {
	f.failWrites.Store(fail)
}

// SetFailReads toggles failure of Get
func (f *Faulty) SetFailReads(fail bool) {
	f.failReads.Store(fail)
}

// Writes returns the number of write attempts seen, failed or not
func (f *Faulty) Writes() int64 {
	return f.writes.Load()
}

// Get implements Store
func (f *Faulty) Get(ctx context.Context, namespace, key string, out interface{}) (bool, error) {
	if f.failReads.Load() {
		return false, ErrUnavailable
	}
	return f.Store.Get(ctx, namespace, key, out)
}

// Put implements Store
func (f *Faulty) Put(ctx context.Context, namespace, key string, value interface{}) error {
	f.writes.Add(1)
	if f.failWrites.Load() {
		return ErrUnavailable
	}
	return f.Store.Put(ctx, namespace, key, value)
}

// Delete implements Store
func (f *Faulty) Delete(ctx context.Context, namespace, key string) error {
	f.writes.Add(1)
	if f.failWrites.Load() {
		return ErrUnavailable
	}
	return f.Store.Delete(ctx, namespace, key)
}

// Clear implements Store
func (f *Faulty) Clear(ctx context.Context, namespace string) error {
	f.writes.Add(1)
	if f.failWrites.Load() {
		return ErrUnavailable
	}
	return f.Store.Clear(ctx, namespace)
}

// Watch forwards to the wrapped store when it supports change notification
func (f *Faulty) Watch(namespace string, fn func()) (func(), error) {
	w, ok := f.Store.(Watcher)
	if !ok {
		return func() {}, nil
	}
	return w.Watch(namespace, fn)
}
