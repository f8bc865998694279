package storage

import "github.com/cloudkeep/poolkeeper/pkg/types"

// Store is the sole authoritative persistence layer for resources. All
// cross-component coordination between the balancer, workers, and the
// Resource Manager is expressed as operations on this interface.
type Store interface {
	// Create assigns an id and inserts a new resource with the supplied
	// driver and values plus the standard defaults (status=STOPPED,
	// processing=false, allocated=false, deleted=false).
	Create(driver string, values map[string]interface{}) (*types.Resource, error)

	// Get returns the resource with the given id, or a NotFoundError.
	Get(id string) (*types.Resource, error)

	// Update merges values into the record addressed by id. Keys matching
	// a known top-level field are set there; unknown keys are merged into
	// Data. Returns NotFoundError if the row is absent.
	Update(id string, values map[string]interface{}) (*types.Resource, error)

	// Delete removes the row with the given id, or fails with NotFoundError.
	Delete(id string) error

	// Find returns resources matching search's filter, paginated by
	// limit/offset.
	Find(search types.Search) ([]*types.Resource, error)

	// Count returns the number of resources matching filter.
	Count(filter types.Filter) (int, error)

	// CompareAndSet atomically checks that the row addressed by id matches
	// filter, and if so applies values and returns the updated row. If the
	// row doesn't match (or doesn't exist), it returns (nil, nil) — no
	// error, just "the compare-and-set did not apply". The check-then-set
	// must be serializable at the row level: this is the only primitive
	// strong enough to implement the task-push gate.
	CompareAndSet(id string, filter types.Filter, values map[string]interface{}) (*types.Resource, error)

	// Close releases any resources held by the store.
	Close() error
}
