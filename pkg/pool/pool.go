// Package pool implements the Pool View (C5) and Unused Set (C6): the two
// read/write query surfaces a Balancer operates over, both backed by the
// Store and expressed as attribute filters rather than a separate index.
package pool

import (
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// Pool is the view of resources currently assigned to a named pool and
// not allocated to a client: `driver`'s bounded "ready to hand out" set.
type Pool struct {
	name  string
	store storage.Store
}

// New returns the Pool view named name over store.
func New(name string, store storage.Store) *Pool {
	return &Pool{name: name, store: store}
}

// Name returns the pool's name.
func (p *Pool) Name() string { return p.name }

func (p *Pool) filter() types.Filter {
	return types.Filter{Pool: types.StringPtr(p.name), Allocated: types.BoolPtr(false)}
}

// Push places resource into the pool: pool=name, processing=false. Pushed
// resources are expected to already be in a ready state (STARTED); Push
// does not itself check status.
func (p *Pool) Push(resourceID string) error {
	_, err := p.store.Update(resourceID, map[string]interface{}{
		"pool":       p.name,
		"processing": false,
	})
	return err
}

// Pop removes up to count resources from the pool (all of them if count is
// 0), clearing their pool membership and setting processing to the given
// value. processing is true for the balancer's own overflow handling (the
// resource is about to get a Stop task pushed) and false when a caller
// just wants the resources detached from the pool without marking them
// busy (e.g. draining a pool during shutdown).
func (p *Pool) Pop(count int, processing bool) ([]*types.Resource, error) {
	resources, err := p.store.Find(types.Search{Filter: p.filter(), Limit: count})
	if err != nil {
		return nil, err
	}
	popped := make([]*types.Resource, 0, len(resources))
	for _, r := range resources {
		updated, err := p.store.Update(r.ID, map[string]interface{}{
			"pool":       nil,
			"processing": processing,
		})
		if err != nil {
			return popped, err
		}
		popped = append(popped, updated)
	}
	return popped, nil
}

// List returns every resource currently in the pool.
func (p *Pool) List() ([]*types.Resource, error) {
	return p.store.Find(types.Search{Filter: p.filter()})
}

// Count returns the number of resources currently in the pool.
func (p *Pool) Count() (int, error) {
	return p.store.Count(p.filter())
}
