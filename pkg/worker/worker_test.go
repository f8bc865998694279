package worker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/queue"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

type fakeDriver struct {
	initErr error
	stopErr error
}

func (d *fakeDriver) Init(r *types.Resource) error { r.Data["booted"] = true; return d.initErr }
func (d *fakeDriver) Stop(r *types.Resource) error  { return d.stopErr }
func (d *fakeDriver) Wipe(r *types.Resource) error  { return nil }
func (d *fakeDriver) Check(r *types.Resource) error { return nil }
func (d *fakeDriver) Validate(map[string]interface{}) error { return nil }
func (d *fakeDriver) Schema() types.Schema          { return types.Schema{} }
func (d *fakeDriver) Prepare(types.Status, map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func newFixture(t *testing.T, d driver.Driver) (storage.Store, *queue.Queue, *Pool) {
	t.Helper()
	store := storage.NewMemoryStore()
	registry := driver.NewRegistry()
	registry.Register("fake", d)
	q := queue.New(store, 4)
	p := New(store, q, registry, 50*time.Millisecond)
	return store, q, p
}

func awaitStatus(t *testing.T, store storage.Store, id string, want types.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, err := store.Get(id)
		require.NoError(t, err)
		if r.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("resource never reached status %s", want)
}

func TestWorkerStartSuccessWritesStartedAndData(t *testing.T) {
	store, q, p := newFixture(t, &fakeDriver{})
	r, err := store.Create("fake", map[string]interface{}{"status": types.StatusStopped})
	require.NoError(t, err)

	p.Start(1)
	defer p.Stop()

	require.NoError(t, q.Push(queue.NewStartTask(r)))
	awaitStatus(t, store, r.ID, types.StatusStarted)

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing)
	assert.Equal(t, true, got.Data["booted"])
}

func TestWorkerStartFailureWritesError(t *testing.T) {
	store, q, p := newFixture(t, &fakeDriver{initErr: fmt.Errorf("boot failed")})
	r, err := store.Create("fake", map[string]interface{}{"status": types.StatusStopped})
	require.NoError(t, err)

	p.Start(1)
	defer p.Stop()

	require.NoError(t, q.Push(queue.NewStartTask(r)))
	awaitStatus(t, store, r.ID, types.StatusError)

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing)
}

func TestWorkerForcedDeleteSwallowsDriverFailure(t *testing.T) {
	store, q, p := newFixture(t, &fakeDriver{stopErr: fmt.Errorf("teardown refused")})
	r, err := store.Create("fake", map[string]interface{}{"status": types.StatusError})
	require.NoError(t, err)

	p.Start(1)
	defer p.Stop()

	require.NoError(t, q.Push(queue.NewDeleteTask(r, true)))
	awaitStatus(t, store, r.ID, types.StatusDeleted)
}

func TestWorkerNonForcedDeleteFailurePropagatesToError(t *testing.T) {
	store, q, p := newFixture(t, &fakeDriver{stopErr: fmt.Errorf("teardown refused")})
	r, err := store.Create("fake", map[string]interface{}{"status": types.StatusStopped})
	require.NoError(t, err)

	p.Start(1)
	defer p.Stop()

	require.NoError(t, q.Push(queue.NewDeleteTask(r, false)))
	awaitStatus(t, store, r.ID, types.StatusError)
}

func TestWorkerPoolStopWaitsForInFlightTask(t *testing.T) {
	store, q, p := newFixture(t, &fakeDriver{})
	r, err := store.Create("fake", map[string]interface{}{"status": types.StatusStopped})
	require.NoError(t, err)

	p.Start(2)
	require.NoError(t, q.Push(queue.NewStartTask(r)))
	awaitStatus(t, store, r.ID, types.StatusStarted)
	p.Stop() // should return promptly, no deadlock
}
