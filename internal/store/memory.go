package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps collections in process memory. It exists for tests and
// local development; production deployments use the MySQL or Mongo backend.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Document)}
}

// clone round-trips through JSON so callers never share references with
// stored documents and numeric types match what the real backends return.
func clone(doc Document) Document {
	raw, _ := json.Marshal(doc)
	var out Document
	_ = json.Unmarshal(raw, &out)
	return out
}

// equalValues compares a stored value against a query value, treating all
// numeric types as equivalent the way a JSON store would.
func equalValues(stored, queried any) bool {
	if stored == queried {
		return true
	}
	a, okA := asFloat(stored)
	b, okB := asFloat(queried)
	if okA && okB {
		return a == b
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

func matches(doc Document, query Query) bool {
	for k, v := range query {
		if !equalValues(doc[k], v) {
			return false
		}
	}
	return true
}

func (s *MemoryStore) InsertOne(_ context.Context, collection string, doc Document) (string, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], clone(doc))
	return id, nil
}

func (s *MemoryStore) FindOne(_ context.Context, collection string, query Query) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.collections[collection] {
		if matches(doc, query) {
			return clone(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindMany(_ context.Context, collection string, query Query, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Document, 0)
	for _, doc := range s.collections[collection] {
		if matches(doc, query) {
			out = append(out, clone(doc))
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateOne(_ context.Context, collection string, query Query, update Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.collections[collection] {
		if matches(doc, query) {
			merged := clone(doc)
			for k, v := range clone(update) {
				merged[k] = v
			}
			s.collections[collection][i] = merged
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) DeleteOne(_ context.Context, collection string, query Query) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	for i, doc := range docs {
		if matches(doc, query) {
			s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AdjustOne(_ context.Context, collection string, query Query, field string, delta int64, boundField string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.collections[collection] {
		if !matches(doc, query) {
			continue
		}
		cur, ok := asFloat(doc[field])
		if !ok {
			return false, nil
		}
		if delta > 0 {
			bound, ok := asFloat(doc[boundField])
			if !ok || cur >= bound {
				return false, nil
			}
		} else if cur+float64(delta) < 0 {
			return false, nil
		}
		updated := clone(doc)
		updated[field] = cur + float64(delta)
		s.collections[collection][i] = updated
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }
