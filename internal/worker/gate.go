package worker

import "sync"

// Gate serializes work per key. The stores rewrite a user's whole
// snapshot on every mutation, so two requests for the same user must
// never interleave; requests for different users run freely.
type Gate struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewGate() *Gate {
	return &Gate{locks: make(map[string]*entry)}
}

// Do runs fn while holding the key's lock.
func (g *Gate) Do(key string, fn func()) {
	e := g.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		g.release(key, e)
	}()
	fn()
}

func (g *Gate) acquire(key string) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.locks[key]
	if !ok {
		e = &entry{}
		g.locks[key] = e
	}
	e.refs++
	return e
}

// release drops the entry once nobody is waiting, so the map does not
// grow with every user id ever seen.
func (g *Gate) release(key string, e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(g.locks, key)
	}
}
