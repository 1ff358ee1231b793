// Package invalidate fans mutation completions out to the caches that depend on them.
package invalidate

import (
	"sort"
	"sync"

	"github.com/golang/glog"
)

// Key names a cached query, usually an RPC procedure such as "threads.getThreads".
type Key string

// Handler is called with the key that was invalidated.
type Handler func(Key)

// Bus is a small synchronous pub/sub keyed by query.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[Key]map[int]Handler
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: map[Key]map[int]Handler{}}
}

// Subscribe registers fn for key. The returned func removes the subscription and is safe to
// call more than once.
func (b *Bus) Subscribe(key Key, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if b.subs[key] == nil {
		b.subs[key] = map[int]Handler{}
	}
	b.subs[key][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[key], id)
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
	}
}

// Publish invalidates keys and returns how many handlers ran. Handlers run on the caller's
// goroutine, in subscription order, after the bus lock is released.
func (b *Bus) Publish(keys ...Key) int {
	type call struct {
		id  int
		key Key
		fn  Handler
	}
	b.mu.Lock()
	var calls []call
	seen := map[Key]bool{}
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		for id, fn := range b.subs[key] {
			calls = append(calls, call{id: id, key: key, fn: fn})
		}
	}
	b.mu.Unlock()

	sort.SliceStable(calls, func(i, j int) bool { return calls[i].id < calls[j].id })
	for _, c := range calls {
		c.fn(c.key)
	}
	glog.V(1).Infof("[invalidate] %v -> %d handler(s)", keys, len(calls))
	return len(calls)
}

// Subscribers reports how many handlers are registered for key.
func (b *Bus) Subscribers(key Key) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}
