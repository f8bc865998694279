package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/cloudkeep/poolkeeper/pkg/poolerr"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

var bucketResources = []byte("resources")

// BoltStore implements Store using an embedded bbolt database: one bucket
// holding every resource, JSON-marshaled and keyed by id. CompareAndSet
// runs the filter check and the write inside a single db.Update
// transaction, which bbolt serializes against every other writer, giving
// the row-level atomicity the push gate requires.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "poolkeeper.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResources)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Create(driver string, values map[string]interface{}) (*types.Resource, error) {
	now := time.Now().UTC()
	r := &types.Resource{
		ID:         uuid.NewString(),
		Driver:     driver,
		Status:     types.StatusStopped,
		Processing: false,
		Allocated:  false,
		Deleted:    false,
		Data:       map[string]interface{}{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyValues(r, values)

	err := s.db.Update(func(tx *bolt.Tx) error {
		return putResource(tx.Bucket(bucketResources), r)
	})
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func (s *BoltStore) Get(id string) (*types.Resource, error) {
	var r *types.Resource
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		r, err = getResource(tx.Bucket(bucketResources), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *BoltStore) Update(id string, values map[string]interface{}) (*types.Resource, error) {
	var result *types.Resource
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResources)
		r, err := getResource(b, id)
		if err != nil {
			return err
		}
		applyValues(r, values)
		r.UpdatedAt = time.Now().UTC()
		if err := putResource(b, r); err != nil {
			return err
		}
		result = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BoltStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResources)
		if b.Get([]byte(id)) == nil {
			return poolerr.NotFound("resource", id)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) Find(search types.Search) ([]*types.Resource, error) {
	var matches []*types.Resource
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResources).ForEach(func(k, v []byte) error {
			var r types.Resource
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if search.Filter.Matches(&r) {
				matches = append(matches, &r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// bbolt's ForEach is key-ordered (lexicographic over the UUID string),
	// which is an implementation-defined but stable order for pagination.
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	if search.Offset > 0 {
		if search.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[search.Offset:]
	}
	if search.Limit > 0 && search.Limit < len(matches) {
		matches = matches[:search.Limit]
	}
	return matches, nil
}

func (s *BoltStore) Count(filter types.Filter) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResources).ForEach(func(k, v []byte) error {
			var r types.Resource
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if filter.Matches(&r) {
				count++
			}
			return nil
		})
	})
	return count, err
}

func (s *BoltStore) CompareAndSet(id string, filter types.Filter, values map[string]interface{}) (*types.Resource, error) {
	var result *types.Resource
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResources)
		r, err := getResource(b, id)
		if err != nil {
			if _, ok := err.(*poolerr.NotFoundError); ok {
				return nil
			}
			return err
		}
		if !filter.Matches(r) {
			return nil
		}
		applyValues(r, values)
		r.UpdatedAt = time.Now().UTC()
		if err := putResource(b, r); err != nil {
			return err
		}
		result = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func getResource(b *bolt.Bucket, id string) (*types.Resource, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, poolerr.NotFound("resource", id)
	}
	var r types.Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func putResource(b *bolt.Bucket, r *types.Resource) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.Put([]byte(r.ID), data)
}

// ApplyValues merges values into r: known top-level fields are set
// directly, everything else is merged into r.Data. Exported so other
// Store implementations (e.g. the in-memory test store) share the exact
// same merge semantics.
func ApplyValues(r *types.Resource, values map[string]interface{}) {
	applyValues(r, values)
}

func applyValues(r *types.Resource, values map[string]interface{}) {
	for k, v := range values {
		if !types.IsKnownField(k) {
			if r.Data == nil {
				r.Data = map[string]interface{}{}
			}
			r.Data[k] = v
			continue
		}
		switch k {
		case "driver":
			if s, ok := v.(string); ok {
				r.Driver = s
			}
		case "class":
			if s, ok := v.(string); ok {
				r.Class = s
			}
		case "status":
			switch s := v.(type) {
			case types.Status:
				r.Status = s
			case string:
				r.Status = types.Status(s)
			}
		case "pool":
			switch p := v.(type) {
			case nil:
				r.Pool = ""
			case string:
				r.Pool = p
			}
		case "processing":
			if b, ok := v.(bool); ok {
				r.Processing = b
			}
		case "allocated":
			if b, ok := v.(bool); ok {
				r.Allocated = b
			}
		case "deleted":
			if b, ok := v.(bool); ok {
				r.Deleted = b
			}
		}
	}
}
