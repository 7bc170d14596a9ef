package complaint

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists complaints. Update is conditional on the stored version
// matching expectedVersion and bumps the version on success.
type Store interface {
	Insert(ctx context.Context, c Complaint) (Complaint, error)
	Get(ctx context.Context, id string) (Complaint, error)
	List(ctx context.Context, f Filter) ([]Complaint, error)
	Update(ctx context.Context, c Complaint, expectedVersion int64) (Complaint, error)
}

// MemoryStore keeps complaints in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Complaint
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Complaint), now: time.Now}
}

// Insert adds a complaint with version 1.
func (s *MemoryStore) Insert(_ context.Context, c Complaint) (Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[c.ID]; exists {
		return Complaint{}, ErrConflict
	}
	c.Version = 1
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.SubmittedAt
	}
	s.items[c.ID] = c.clone()
	return c.clone(), nil
}

// Get returns a copy of the complaint with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	if !ok {
		return Complaint{}, ErrNotFound
	}
	return c.clone(), nil
}

// List returns matching complaints, most recent first.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Complaint, error) {
	s.mu.RLock()
	out := make([]Complaint, 0, len(s.items))
	for _, c := range s.items {
		if f.Match(c) {
			out = append(out, c.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return Newer(out[i], out[j]) })
	return page(out, f.Limit, f.Offset), nil
}

// Update replaces the mutable fields of a stored complaint when its version
// still equals expectedVersion.
func (s *MemoryStore) Update(_ context.Context, c Complaint, expectedVersion int64) (Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[c.ID]
	if !ok {
		return Complaint{}, ErrNotFound
	}
	if cur.Version != expectedVersion {
		return Complaint{}, ErrConflict
	}
	cur.Status = c.Status
	cur.ResolvedAt = c.clone().ResolvedAt
	cur.Version++
	cur.UpdatedAt = s.now().UTC()
	s.items[c.ID] = cur
	return cur.clone(), nil
}

func page(in []Complaint, limit, offset int) []Complaint {
	if offset > 0 {
		if offset >= len(in) {
			return []Complaint{}
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
