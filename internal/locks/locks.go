// Package locks provides lockers that can be switched off when their owner is externally
// synchronized.
package locks

import "sync"

// RWLocker is the subset of sync.RWMutex the heap needs
type RWLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

type noLock struct{}

func (noLock) Lock()    {}
func (noLock) Unlock()  {}
func (noLock) RLock()   {}
func (noLock) RUnlock() {}

// New returns a fresh mutex, or a locker that does nothing if enabled is false
func New(enabled bool) sync.Locker {
	if !enabled {
		return noLock{}
	}
	return &sync.Mutex{}
}

// NewRW returns a fresh reader/writer mutex, or a locker that does nothing if enabled is false
func NewRW(enabled bool) RWLocker {
	if !enabled {
		return noLock{}
	}
	return &sync.RWMutex{}
}
