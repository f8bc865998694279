package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/poolkeeper/pkg/pool"
	"github.com/cloudkeep/poolkeeper/pkg/queue"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

type fakeDriver struct{}

func (fakeDriver) Init(*types.Resource) error            { return nil }
func (fakeDriver) Stop(*types.Resource) error             { return nil }
func (fakeDriver) Wipe(*types.Resource) error             { return nil }
func (fakeDriver) Check(*types.Resource) error            { return nil }
func (fakeDriver) Validate(map[string]interface{}) error { return nil }
func (fakeDriver) Schema() types.Schema                   { return types.Schema{} }
func (fakeDriver) Prepare(types.Status, map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func newBalancer(t *testing.T, store storage.Store, low, high int) (*Balancer, *queue.Queue) {
	t.Helper()
	q := queue.New(store, 16)
	p := pool.New("test-pool", store)
	u := pool.NewUnusedSet("sample", store, fakeDriver{})
	return New("sample", p, u, q, types.Watermarks{Low: low, High: high}), q
}

func TestBalancerEliminatesDeficitByAutoProvisioning(t *testing.T) {
	store := storage.NewMemoryStore()
	b, q := newBalancer(t, store, 2, 5)

	require.NoError(t, b.Balance())

	assert.Equal(t, 2, q.Depth())
	count, err := store.Count(types.Filter{Driver: "sample", Statuses: []types.Status{types.StatusStarting}})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBalancerEliminatesOverflow(t *testing.T) {
	store := storage.NewMemoryStore()
	for i := 0; i < 6; i++ {
		_, err := store.Create("sample", map[string]interface{}{
			"status": types.StatusStarted,
			"pool":   "test-pool",
		})
		require.NoError(t, err)
	}
	b, q := newBalancer(t, store, 2, 5)

	require.NoError(t, b.Balance())

	assert.Equal(t, 1, q.Depth())
	p := pool.New("test-pool", store)
	count, err := p.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestBalancerStopsUnusedStarted(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.Create("sample", map[string]interface{}{"status": types.StatusStarted})
	require.NoError(t, err)
	b, q := newBalancer(t, store, 0, 100)

	require.NoError(t, b.Balance())

	assert.Equal(t, 1, q.Depth())
	count, err := store.Count(types.Filter{Statuses: []types.Status{types.StatusStopping}})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBalancerReusesStartedUnusedBeforeProvisioning(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.Create("sample", map[string]interface{}{"status": types.StatusStarted})
	require.NoError(t, err)
	b, q := newBalancer(t, store, 3, 5)

	require.NoError(t, b.Balance())

	p := pool.New("test-pool", store)
	poolCount, err := p.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, poolCount)
	// Residual deficit of 2 covered by auto-provisioned Start tasks.
	assert.Equal(t, 2, q.Depth())
}
