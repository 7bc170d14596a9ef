// Package history keeps an append-only audit trail of complaint status
// changes, fed from the complaint event queue.
package history

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"hostel/internal/complaint"
	"hostel/internal/queue"
)

// Entry is one immutable status change. From is empty for creation.
type Entry struct {
	ID          string           `json:"id"`
	ComplaintID string           `json:"complaintId"`
	From        complaint.Status `json:"from,omitempty"`
	To          complaint.Status `json:"to"`
	Actor       string           `json:"actor"`
	At          time.Time        `json:"at"`
}

var entryNamespace = uuid.MustParse("5b0d3c7e-2f61-4a8e-9c57-1d4be0a6f2a3")

// EntryID names the entry for a complaint reaching version. Every committed
// change bumps the version, so redelivered events map to the same id.
func EntryID(complaintID string, version int64) string {
	return uuid.NewSHA1(entryNamespace, []byte(complaintID+"/"+strconv.FormatInt(version, 10))).String()
}

// FromEvent converts a complaint event into an entry.
func FromEvent(evt complaint.Event) Entry {
	return Entry{
		ID:          EntryID(evt.Complaint.ID, evt.Complaint.Version),
		ComplaintID: evt.Complaint.ID,
		From:        evt.From,
		To:          evt.To,
		Actor:       evt.Actor,
		At:          evt.At.UTC(),
	}
}

// Store appends and lists entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, complaintID string) ([]Entry, error)
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	seen    map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry), seen: make(map[string]struct{})}
}

// Append ignores entries whose id is already stored.
func (m *MemoryStore) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[e.ID]; dup {
		return nil
	}
	m.seen[e.ID] = struct{}{}
	m.entries[e.ComplaintID] = append(m.entries[e.ComplaintID], e)
	return nil
}

// List returns entries oldest first.
func (m *MemoryStore) List(_ context.Context, complaintID string) ([]Entry, error) {
	m.mu.RLock()
	out := append([]Entry{}, m.entries[complaintID]...)
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// Repository persists entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO complaint_history (id, complaint_id, from_status, to_status, actor, at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.ComplaintID, string(e.From), string(e.To), e.Actor, e.At)
	return err
}

// List returns entries oldest first.
func (r *Repository) List(ctx context.Context, complaintID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, complaint_id, from_status, to_status, actor, at
		FROM complaint_history WHERE complaint_id = $1
		ORDER BY at ASC
	`, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ComplaintID, &e.From, &e.To, &e.Actor, &e.At); err != nil {
			return nil, err
		}
		e.At = e.At.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Recorder drains complaint events from a queue into a store.
type Recorder struct {
	q     queue.Queue
	store Store
}

// NewRecorder creates a recorder.
func NewRecorder(q queue.Queue, store Store) *Recorder {
	return &Recorder{q: q, store: store}
}

// Run consumes until ctx is cancelled or the queue closes.
func (r *Recorder) Run(ctx context.Context) error {
	messages, err := r.q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		evt, err := queue.DecodeEvent(msg)
		if err != nil {
			log.Printf("history: skipping message: %v", err)
			continue
		}
		if err := r.store.Append(ctx, FromEvent(evt)); err != nil {
			log.Printf("history: append for complaint %s failed: %v", evt.Complaint.ID, err)
			continue
		}
	}
	return nil
}
