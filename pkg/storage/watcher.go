package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch calls fn after the namespace file changes on disk, whoever wrote it.
// Bursts of events are debounced into a single call.
func (s *FileStore) Watch(namespace string, fn func()) (func(), error) {
	if err := validateName("namespace", namespace); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("watch callback is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	if s.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Add(s.dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch storage directory: %w", err)
		}
		s.watcher = w
		s.stopCh = make(chan struct{})
		go s.watchLoop(w, s.stopCh)
	}

	s.subSeq++
	id := s.subSeq
	s.subs[id] = subscription{namespace: namespace, fn: fn}

	stop := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}

	return stop, nil
}

// watchLoop processes file system events
func (s *FileStore) watchLoop(w *fsnotify.Watcher, stopCh chan struct{}) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}

			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}

			name := filepath.Base(event.Name)
			if filepath.Ext(name) != ".json" {
				continue
			}
			namespace := name[:len(name)-len(".json")]

			log.Debug().
				Str("namespace", namespace).
				Str("op", event.Op.String()).
				Msg("Namespace change detected")

			s.scheduleNotify(namespace)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Storage watcher error")

		case <-stopCh:
			return
		}
	}
}

// scheduleNotify debounces notifications per namespace
func (s *FileStore) scheduleNotify(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if timer, ok := s.timers[namespace]; ok {
		timer.Stop()
	}

	s.timers[namespace] = time.AfterFunc(s.debounce, func() {
		s.notify(namespace)
	})
}

func (s *FileStore) notify(namespace string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, namespace)
	var fns []func()
	for _, sub := range s.subs {
		if sub.namespace == namespace {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
