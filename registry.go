package flaxkv

import "sync"

// registry tracks every open *Store process-wide so a host program can
// shut all of them down together (e.g. from a signal handler) without
// threading store references through every layer that might open one.
type registry struct {
	mu     sync.Mutex
	stores []*Store // open order; closed in reverse
}

var globalRegistry = &registry{}

func (r *registry) add(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores = append(r.stores, s)
}

func (r *registry) remove(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, st := range r.stores {
		if st == s {
			r.stores = append(r.stores[:i], r.stores[i+1:]...)

			return
		}
	}
}

// CloseAll closes every currently open store, in reverse open order, and
// returns the first error encountered (later errors are dropped). Intended for use from a signal handler or
// test teardown; a store closed this way is also removed from the
// registry, so calling CloseAll twice is harmless.
func CloseAll() error {
	globalRegistry.mu.Lock()
	stores := append([]*Store(nil), globalRegistry.stores...)
	globalRegistry.mu.Unlock()

	var firstErr error

	for i := len(stores) - 1; i >= 0; i-- {
		if err := stores[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
