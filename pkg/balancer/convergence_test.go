package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/pool"
	"github.com/cloudkeep/poolkeeper/pkg/queue"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
	"github.com/cloudkeep/poolkeeper/pkg/worker"
)

// TestBalancerConvergesFromColdStart runs the full engine loop (balancer
// ticks plus real workers) from an empty store and checks the pool fills
// to the low watermark: tick one auto-provisions and starts two
// resources, tick two moves them into the pool.
func TestBalancerConvergesFromColdStart(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := driver.NewRegistry()
	registry.Register("sample", fakeDriver{})

	q := queue.New(store, 16)
	workers := worker.New(store, q, registry, 20*time.Millisecond)
	workers.Start(2)
	defer workers.Stop()

	p := pool.New("sample", store)
	u := pool.NewUnusedSet("sample", store, fakeDriver{})
	b := New("sample", p, u, q, types.Watermarks{Low: 2, High: 5})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, b.Balance())
		count, err := p.Count()
		require.NoError(t, err)
		if count == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	count, err := p.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Quiescent state: nothing left mid-flight, everything in the pool is
	// STARTED and unallocated.
	inFlight, err := store.Count(types.Filter{Processing: types.BoolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 0, inFlight)
	pooled, err := p.List()
	require.NoError(t, err)
	for _, r := range pooled {
		assert.Equal(t, types.StatusStarted, r.Status)
		assert.False(t, r.Allocated)
	}
}

// TestBalancerRefillsAfterAllocation simulates a client allocating a
// pooled resource and checks the next passes restore the pool to the low
// watermark.
func TestBalancerRefillsAfterAllocation(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := driver.NewRegistry()
	registry.Register("sample", fakeDriver{})

	q := queue.New(store, 16)
	workers := worker.New(store, q, registry, 20*time.Millisecond)
	workers.Start(2)
	defer workers.Stop()

	p := pool.New("sample", store)
	u := pool.NewUnusedSet("sample", store, fakeDriver{})
	b := New("sample", p, u, q, types.Watermarks{Low: 2, High: 5})

	awaitPoolCount := func(want int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			require.NoError(t, b.Balance())
			count, err := p.Count()
			require.NoError(t, err)
			if count == want {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("pool never reached %d resources", want)
	}

	awaitPoolCount(2)

	// A client allocates one: it leaves the pool.
	pooled, err := p.List()
	require.NoError(t, err)
	require.NotEmpty(t, pooled)
	_, err = store.Update(pooled[0].ID, map[string]interface{}{
		"pool":      nil,
		"allocated": true,
	})
	require.NoError(t, err)

	awaitPoolCount(2)
}
