package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

func newBoltStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltCreateGetUpdateDelete(t *testing.T) {
	s := newBoltStore(t)

	r, err := s.Create("stub", map[string]interface{}{"class": "L3", "address": "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, r.Status)

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", got.Data["address"])

	updated, err := s.Update(r.ID, map[string]interface{}{"status": "STARTED", "instance_id": "i-9"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusStarted, updated.Status)
	assert.Equal(t, "i-9", updated.Data["instance_id"])

	require.NoError(t, s.Delete(r.ID))
	_, err = s.Get(r.ID)
	assert.Error(t, err)
}

func TestBoltCompareAndSet(t *testing.T) {
	s := newBoltStore(t)
	r, err := s.Create("stub", nil)
	require.NoError(t, err)

	// Matching filter applies the update.
	updated, err := s.CompareAndSet(r.ID, types.Filter{Statuses: []types.Status{types.StatusStopped}},
		map[string]interface{}{"status": "STARTING", "processing": true})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, types.StatusStarting, updated.Status)

	// Mismatching filter returns nil, nil and leaves the row unchanged.
	rejected, err := s.CompareAndSet(r.ID, types.Filter{Statuses: []types.Status{types.StatusStopped}},
		map[string]interface{}{"status": "STARTING"})
	require.NoError(t, err)
	assert.Nil(t, rejected)

	// Missing row is a rejection, not an error.
	missing, err := s.CompareAndSet("missing", types.Filter{}, map[string]interface{}{"processing": true})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBoltFindFiltersAndPaginates(t *testing.T) {
	s := newBoltStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Create("stub", map[string]interface{}{"status": types.StatusStarted})
		require.NoError(t, err)
	}
	_, err := s.Create("other", nil)
	require.NoError(t, err)

	all, err := s.Find(types.Search{Filter: types.Filter{Driver: "stub"}})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := s.Find(types.Search{Filter: types.Filter{Driver: "stub"}, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	count, err := s.Count(types.Filter{Statuses: []types.Status{types.StatusStarted}})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.NewBoltStore(dir)
	require.NoError(t, err)
	r, err := s.Create("stub", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := storage.NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}
