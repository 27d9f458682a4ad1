// Package hybrid routes collection calls to local or remote storage
// depending on configuration, backend reachability and sign-in state.
package hybrid

import "sync/atomic"

// StorageMode names where a collection reads and writes.
type StorageMode int

const (
	Local StorageMode = iota
	Remote
)

func (m StorageMode) String() string {
	if m == Remote {
		return "remote"
	}
	return "local"
}

// ResolveMode is the single storage policy: remote only when a backend is
// configured, reachable and a user is signed in.
func ResolveMode(configured, reachable, authenticated bool) StorageMode {
	if configured && reachable && authenticated {
		return Remote
	}
	return Local
}

// Availability records whether the backend answered its last health probe.
type Availability struct {
	reachable atomic.Bool
}

func (a *Availability) Set(reachable bool) {
	a.reachable.Store(reachable)
}

func (a *Availability) Reachable() bool {
	return a.reachable.Load()
}
