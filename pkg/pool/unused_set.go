package pool

import (
	"errors"

	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// UnusedSet is the set of a driver's resources not yet placed in any pool:
// `driver = name ∧ pool unset ∧ allocated = false ∧ deleted = false`,
// further narrowed by state and, for Count, by the processing flag.
type UnusedSet struct {
	driverName string
	store      storage.Store
	drv        driver.Driver
}

// NewUnusedSet returns the UnusedSet for driverName, backed by store and
// able to auto-provision new resources through drv when Get runs short.
func NewUnusedSet(driverName string, store storage.Store, drv driver.Driver) *UnusedSet {
	return &UnusedSet{driverName: driverName, store: store, drv: drv}
}

func (u *UnusedSet) baseFilter() types.Filter {
	return types.Filter{
		Driver:    u.driverName,
		Unused:    types.BoolPtr(true),
		Allocated: types.BoolPtr(false),
		Deleted:   types.BoolPtr(false),
	}
}

// List returns up to count resources (all of them if count is 0) of the
// given state, read-only.
func (u *UnusedSet) List(state types.Status, count int) ([]*types.Resource, error) {
	filter := u.baseFilter()
	filter.Statuses = []types.Status{state}
	filter.Processing = types.BoolPtr(false)
	return u.store.Find(types.Search{Filter: filter, Limit: count})
}

// Count returns the number of resources in any of states, restricted to
// the given processing value. The balancer's active-reserve computation
// passes ACTIVE_STATES here; every other caller passes a single state.
func (u *UnusedSet) Count(states []types.Status, processing bool) (int, error) {
	filter := u.baseFilter()
	filter.Statuses = states
	filter.Processing = types.BoolPtr(processing)
	return u.store.Count(filter)
}

// Get materializes up to count resources of the given state and marks
// them processing=true. If fewer than count exist and state is STOPPED,
// it asks the driver to prepare the remainder and persists them already
// processing=true. Only STOPPED resources can be synthesized out of thin
// air: a STARTED one has a running backend instance behind it, which only
// a Start task can produce. A driver that returns
// driver.ErrPrepareUnsupported simply can't auto-provision; Get stops
// trying and returns what it already has rather than failing the whole
// call.
func (u *UnusedSet) Get(state types.Status, count int) ([]*types.Resource, error) {
	resources, err := u.List(state, count)
	if err != nil {
		return nil, err
	}

	claimed := make([]*types.Resource, 0, len(resources))
	for _, r := range resources {
		updated, err := u.store.Update(r.ID, map[string]interface{}{"processing": true})
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, updated)
	}

	if state != types.StatusStopped {
		return claimed, nil
	}

	residual := count - len(claimed)
	for i := 0; i < residual; i++ {
		data, err := u.drv.Prepare(state, nil)
		if err != nil {
			if errors.Is(err, driver.ErrPrepareUnsupported) {
				break
			}
			return claimed, err
		}
		data["status"] = state
		data["processing"] = true
		created, err := u.store.Create(u.driverName, data)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, created)
	}
	return claimed, nil
}
