package storage_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

func newStore(t *testing.T) storage.Store {
	t.Helper()
	return storage.NewMemoryStore()
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newStore(t)
	r, err := s.Create("stub", map[string]interface{}{"class": "L3", "address": "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, r.Status)
	assert.Equal(t, "10.0.0.1", r.Data["address"])

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func TestGetNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Get("missing")
	assert.Error(t, err)
}

func TestUpdateMergesUnknownKeysIntoData(t *testing.T) {
	s := newStore(t)
	r, err := s.Create("stub", nil)
	require.NoError(t, err)

	updated, err := s.Update(r.ID, map[string]interface{}{"status": "STARTED", "instance_id": "i-123"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusStarted, updated.Status)
	assert.Equal(t, "i-123", updated.Data["instance_id"])
}

func TestCompareAndSetSucceedsOnMatch(t *testing.T) {
	s := newStore(t)
	r, err := s.Create("stub", nil)
	require.NoError(t, err)

	updated, err := s.CompareAndSet(r.ID, types.Filter{Statuses: []types.Status{types.StatusStopped}},
		map[string]interface{}{"status": "STARTING", "processing": true})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, types.StatusStarting, updated.Status)
	assert.True(t, updated.Processing)
}

func TestCompareAndSetFailsOnMismatch(t *testing.T) {
	s := newStore(t)
	r, err := s.Create("stub", nil)
	require.NoError(t, err)

	updated, err := s.CompareAndSet(r.ID, types.Filter{Statuses: []types.Status{types.StatusStarted}},
		map[string]interface{}{"status": "STOPPING"})
	require.NoError(t, err)
	assert.Nil(t, updated)

	unchanged, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, unchanged.Status)
}

// TestCompareAndSetIsExclusive is the push-gate-correctness law from §8:
// of two concurrent CAS attempts against the same STOPPED resource,
// exactly one succeeds.
func TestCompareAndSetIsExclusive(t *testing.T) {
	s := newStore(t)
	r, err := s.Create("stub", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*types.Resource, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			updated, _ := s.CompareAndSet(r.ID, types.Filter{Statuses: []types.Status{types.StatusStopped}},
				map[string]interface{}{"status": "STARTING", "processing": true})
			results[idx] = updated
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, res := range results {
		if res != nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestFindFiltersByUnusedAndStatus(t *testing.T) {
	s := newStore(t)
	a, err := s.Create("stub", map[string]interface{}{"status": "STARTED"})
	require.NoError(t, err)
	_, err = s.Create("stub", map[string]interface{}{"status": "STOPPED"})
	require.NoError(t, err)
	_, err = s.Update(a.ID, map[string]interface{}{"pool": "edge"})
	require.NoError(t, err)

	unused, err := s.Find(types.Search{Filter: types.Filter{Driver: "stub", Unused: types.BoolPtr(true)}})
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, types.StatusStopped, unused[0].Status)
}

func TestDeleteRemovesRow(t *testing.T) {
	s := newStore(t)
	r, err := s.Create("stub", nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete(r.ID))
	_, err = s.Get(r.ID)
	assert.Error(t, err)
}
