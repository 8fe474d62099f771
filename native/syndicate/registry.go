package syndicate

import "sync"

// Registry indexes live ledgers by address. Ledgers are never removed.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[[20]byte]*Ledger
	order   [][20]byte
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[[20]byte]*Ledger)}
}

// Register adds ledgers to the index. Re-registering an address is a no-op.
func (r *Registry) Register(ledgers ...*Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range ledgers {
		if l == nil {
			continue
		}
		addr := l.Address()
		if _, ok := r.ledgers[addr]; ok {
			continue
		}
		r.ledgers[addr] = l
		r.order = append(r.order, addr)
	}
}

// Get returns the ledger at addr.
func (r *Registry) Get(addr [20]byte) (*Ledger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[addr]
	return l, ok
}

// List returns every ledger in registration order.
func (r *Registry) List() []*Ledger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Ledger, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.ledgers[addr])
	}
	return out
}

// Len reports the number of registered ledgers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
