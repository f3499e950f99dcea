package dispatch

import "sync"

// DefaultDedupSize is the number of delivered event ids remembered
const DefaultDedupSize = 1024

// dedupSet remembers the most recent delivered event ids. When full the
// oldest id is forgotten first.
type dedupSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	next  int
	size  int
}

func newDedupSet(size int) *dedupSet {
	if size <= 0 {
		size = DefaultDedupSize
	}
	return &dedupSet{
		ids:   make(map[string]struct{}, size),
		order: make([]string, size),
		size:  size,
	}
}

// Contains reports whether id was delivered recently
func (d *dedupSet) Contains(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ids[id]
	return ok
}

// Add records id, evicting the oldest entry when the set is full
func (d *dedupSet) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.ids[id]; ok {
		return
	}

	if old := d.order[d.next]; old != "" {
		delete(d.ids, old)
	}
	d.order[d.next] = id
	d.ids[id] = struct{}{}
	d.next = (d.next + 1) % d.size
}

// Len returns the number of remembered ids
func (d *dedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}
