package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

type fakePrepareDriver struct {
	unsupported bool
	prepared    int
}

func (d *fakePrepareDriver) Init(*types.Resource) error                  { return nil }
func (d *fakePrepareDriver) Stop(*types.Resource) error                  { return nil }
func (d *fakePrepareDriver) Wipe(*types.Resource) error                  { return nil }
func (d *fakePrepareDriver) Check(*types.Resource) error                 { return nil }
func (d *fakePrepareDriver) Validate(map[string]interface{}) error       { return nil }
func (d *fakePrepareDriver) Schema() types.Schema                        { return types.Schema{} }
func (d *fakePrepareDriver) Prepare(state types.Status, values map[string]interface{}) (map[string]interface{}, error) {
	if d.unsupported {
		return nil, driver.ErrPrepareUnsupported
	}
	d.prepared++
	return map[string]interface{}{}, nil
}

func TestUnusedSetGetClaimsExistingThenAutoProvisions(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.Create("sample", map[string]interface{}{"status": types.StatusStopped})
	require.NoError(t, err)

	d := &fakePrepareDriver{}
	u := NewUnusedSet("sample", store, d)

	got, err := u.Get(types.StatusStopped, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 2, d.prepared)
	for _, r := range got {
		assert.True(t, r.Processing)
		assert.Equal(t, types.StatusStopped, r.Status)
	}
}

func TestUnusedSetGetStopsWhenPrepareUnsupported(t *testing.T) {
	store := storage.NewMemoryStore()
	d := &fakePrepareDriver{unsupported: true}
	u := NewUnusedSet("sample", store, d)

	got, err := u.Get(types.StatusStopped, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnusedSetCountAcrossActiveStates(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.Create("sample", map[string]interface{}{"status": types.StatusStarted})
	require.NoError(t, err)
	_, err = store.Create("sample", map[string]interface{}{"status": types.StatusStarting})
	require.NoError(t, err)
	_, err = store.Create("sample", map[string]interface{}{"status": types.StatusStopped})
	require.NoError(t, err)

	d := &fakePrepareDriver{}
	u := NewUnusedSet("sample", store, d)

	count, err := u.Count(types.ActiveStates, false)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUnusedSetListExcludesProcessing(t *testing.T) {
	store := storage.NewMemoryStore()
	r, err := store.Create("sample", map[string]interface{}{"status": types.StatusStopped})
	require.NoError(t, err)
	_, err = store.Update(r.ID, map[string]interface{}{"processing": true})
	require.NoError(t, err)

	d := &fakePrepareDriver{}
	u := NewUnusedSet("sample", store, d)

	listed, err := u.List(types.StatusStopped, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUnusedSetGetNeverSynthesizesStarted(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.Create("sample", map[string]interface{}{"status": types.StatusStarted})
	require.NoError(t, err)

	d := &fakePrepareDriver{}
	u := NewUnusedSet("sample", store, d)

	got, err := u.Get(types.StatusStarted, 3)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 0, d.prepared)
}
