package datastore

import (
	"fmt"
	"sync"
)

// Constructor builds an unconnected Store for a backend kind.
type Constructor func(cfg Config) Store

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]Constructor)
)

// Register registers a backend constructor. Adapter packages call this
// from init(); registering the same kind twice replaces the previous
// constructor.
func Register(kind Kind, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = ctor
}

// Registered returns the kinds with a registered constructor.
func Registered() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsRegistered checks if a constructor is registered for the given kind.
func IsRegistered(kind Kind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}

// New constructs the adapter for the given backend kind. It performs no
// I/O; the returned Store is unusable until Initialize. Unrecognized
// kinds fail with ErrUnknownBackend.
func New(kind Kind, cfg Config) (Store, error) {
	registryMu.RLock()
	ctor, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
	return ctor(cfg), nil
}

// NewByName resolves a backend name (including aliases) and constructs
// its adapter.
func NewByName(name string, cfg Config) (Store, error) {
	kind, ok := ParseKind(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return New(kind, cfg)
}
