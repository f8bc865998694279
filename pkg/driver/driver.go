// Package driver defines the Driver Registry contract: the interface every
// resource-class adapter implements, and a compile-time name->constructor
// registry that replaces the source lineage's importutils class loading.
package driver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// ErrPrepareUnsupported is returned by Prepare when a driver has no way to
// synthesize a new resource on its own (it can only adopt ones a client
// hands it explicitly via Validate). The Unused Set treats this as "stop
// trying to auto-provision", not as a failure.
var ErrPrepareUnsupported = errors.New("driver does not support auto-provisioning")

// Driver adapts one resource class to the pool-maintenance engine. Drivers
// are stateless apart from their own configuration: all mutable state lives
// on the Resource record they're handed.
type Driver interface {
	// Init provisions resource and waits until it's healthy. May take
	// minutes; updates resource.Data (address, instance id, ...). Returns
	// an error on provisioning failure or boot timeout.
	Init(resource *types.Resource) error

	// Stop tears resource down. Idempotent on an already-stopped resource.
	Stop(resource *types.Resource) error

	// Wipe returns resource to a pristine state without decommissioning it.
	Wipe(resource *types.Resource) error

	// Check probes resource's health. Returns an error when unreachable.
	Check(resource *types.Resource) error

	// Validate shape-checks user-supplied fields at add time.
	Validate(values map[string]interface{}) error

	// Schema returns a descriptor clients use to build valid add requests.
	Schema() types.Schema

	// Prepare materializes the non-persistent fields of a new resource in
	// the requested initial state. values is nil for auto-provisioned
	// resources (balancer-driven) and non-nil for client-requested adds.
	Prepare(state types.Status, values map[string]interface{}) (map[string]interface{}, error)
}

// Registry resolves a driver name to a Driver implementation.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register binds name to d. A later Register for the same name replaces it,
// matching the teacher lineage's "re-registering a singleton reconfigures
// it" convention rather than panicking.
func (r *Registry) Register(name string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = d
}

// Get resolves name to its Driver, or returns an error if unregistered.
func (r *Registry) Get(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", name)
	}
	return d, nil
}

// Names returns every registered driver name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	return names
}
