package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/poolkeeper/pkg/pool"
	"github.com/cloudkeep/poolkeeper/pkg/queue"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

func TestManagerRejectsDuplicateBalancer(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(time.Second)
	b, _ := newBalancer(t, store, 1, 2)

	require.NoError(t, m.AddBalancer(b))
	err := m.AddBalancer(b)
	assert.Error(t, err)
}

func TestManagerBalancePoolsRunsEveryBalancer(t *testing.T) {
	storeA := storage.NewMemoryStore()
	storeB := storage.NewMemoryStore()
	m := NewManager(time.Second)

	qA := queue.New(storeA, 16)
	balA := New("driver-a", pool.New("pool-a", storeA), pool.NewUnusedSet("driver-a", storeA, fakeDriver{}), qA, types.Watermarks{Low: 1, High: 2})
	qB := queue.New(storeB, 16)
	balB := New("driver-b", pool.New("pool-b", storeB), pool.NewUnusedSet("driver-b", storeB, fakeDriver{}), qB, types.Watermarks{Low: 1, High: 2})

	require.NoError(t, m.AddBalancer(balA))
	require.NoError(t, m.AddBalancer(balB))

	m.BalancePools()

	assert.Equal(t, 1, qA.Depth())
	assert.Equal(t, 1, qB.Depth())
}

func TestManagerRunAndKillStopsTickLoop(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	m.Run()
	time.Sleep(20 * time.Millisecond)
	m.Kill()
}
