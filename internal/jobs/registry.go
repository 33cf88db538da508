// Package jobs guards printer destinations against overlapping jobs.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned by Admit while another job holds the destination.
var ErrBusy = errors.New("destination busy")

// Policy selects how destinations are shared.
type Policy string

const (
	// Exclusive allows one in-flight job per destination.
	Exclusive Policy = "exclusive"
	// Disabled admits every job and leaves ordering to the OS spooler.
	Disabled Policy = "disabled"
)

// ParsePolicy maps a config value to a Policy, defaulting to Exclusive.
func ParsePolicy(s string) Policy {
	if Policy(s) == Disabled {
		return Disabled
	}
	return Exclusive
}

// Lease is the right to print on a destination until released.
type Lease struct {
	Destination string
	Token       string
	AcquiredAt  time.Time
}

// Registry records the in-flight lease of each destination.
type Registry struct {
	policy Policy
	mu     sync.Mutex
	leases map[string]Lease
}

// NewRegistry creates a Registry with the given policy.
func NewRegistry(policy Policy) *Registry {
	return &Registry{
		policy: policy,
		leases: make(map[string]Lease),
	}
}

// Policy returns the registry's policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Admit issues a lease for destination, or ErrBusy when one is held.
// Under the Disabled policy a lease is always issued and never recorded.
func (r *Registry) Admit(destination string) (Lease, error) {
	lease := Lease{
		Destination: destination,
		Token:       destination + ":" + uuid.NewString(),
		AcquiredAt:  time.Now(),
	}
	if r.policy == Disabled {
		return lease, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.leases[destination]; held {
		return Lease{}, ErrBusy
	}
	r.leases[destination] = lease
	return lease, nil
}

// Release frees the destination if lease is still the recorded one. A
// stale lease is ignored so it cannot clear a newer job.
func (r *Registry) Release(lease Lease) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, held := r.leases[lease.Destination]
	if !held || current.Token != lease.Token {
		return false
	}
	delete(r.leases, lease.Destination)
	return true
}

// InFlight returns the number of held leases.
func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leases)
}

// Held reports whether destination currently has a lease.
func (r *Registry) Held(destination string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.leases[destination]
	return held
}
