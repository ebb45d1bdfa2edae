package repository

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/symphonyoss/integration-maintenance/internal/creatorid"
	"github.com/symphonyoss/integration-maintenance/internal/instance"
)

// MemoryRepo is an in-memory repository used for unit tests and local dry runs.
// It applies the same matching rule as the Mongo filter via creatorid.NeedsFix.
type MemoryRepo struct {
	mu    sync.RWMutex
	field string
	docs  []bson.M
}

// NewMemoryRepo copies docs into a new repository operating on field.
func NewMemoryRepo(field string, docs ...bson.M) *MemoryRepo {
	if field == "" {
		field = creatorid.Field
	}
	m := &MemoryRepo{field: field, docs: make([]bson.M, 0, len(docs))}
	for _, d := range docs {
		m.docs = append(m.docs, copyDoc(d))
	}
	return m
}

func copyDoc(d bson.M) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (m *MemoryRepo) NormalizeCreator(ctx context.Context, value string) (instance.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res instance.UpdateResult
	for _, d := range m.docs {
		if !creatorid.NeedsFix(d, m.field) {
			continue
		}
		res.Matched++
		if cur, ok := d[m.field]; ok && cur == value {
			continue
		}
		d[m.field] = value
		res.Modified++
	}
	return res, nil
}

func (m *MemoryRepo) CountNonConforming(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, d := range m.docs {
		if creatorid.NeedsFix(d, m.field) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) FindNonConforming(ctx context.Context) ([]instance.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []instance.Snapshot{}
	for _, d := range m.docs {
		if !creatorid.NeedsFix(d, m.field) {
			continue
		}
		v, ok := d[m.field]
		out = append(out, instance.Snapshot{ID: d["_id"], CreatorID: v, Present: ok})
	}
	return out, nil
}

func (m *MemoryRepo) SampleNonConforming(ctx context.Context, limit int64) ([]instance.ConfigInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []instance.ConfigInstance{}
	for _, d := range m.docs {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		if !creatorid.NeedsFix(d, m.field) {
			continue
		}
		b, err := bson.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encode instance: %w", err)
		}
		var ci instance.ConfigInstance
		if err := bson.Unmarshal(b, &ci); err != nil {
			return nil, fmt.Errorf("decode instance: %w", err)
		}
		out = append(out, ci)
	}
	return out, nil
}

func (m *MemoryRepo) RestoreCreators(ctx context.Context, snaps []instance.Snapshot, value string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range snaps {
		for _, d := range m.docs {
			if !reflect.DeepEqual(d["_id"], s.ID) || d[m.field] != value {
				continue
			}
			if s.Present {
				d[m.field] = s.CreatorID
			} else {
				delete(d, m.field)
			}
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the document with the given _id, or nil.
func (m *MemoryRepo) Get(id interface{}) bson.M {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if reflect.DeepEqual(d["_id"], id) {
			return copyDoc(d)
		}
	}
	return nil
}
