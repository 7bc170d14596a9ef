// Package feedback stores general feedback and suggestions from students.
package feedback

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hostel/internal/validation"
)

// Kind classifies a feedback entry.
type Kind string

const (
	KindGeneral             Kind = "general"
	KindSuggestion          Kind = "suggestion"
	KindServiceQuality      Kind = "service-quality"
	KindFacilityImprovement Kind = "facility-improvement"
)

// Kinds lists every feedback kind.
var Kinds = []Kind{KindGeneral, KindSuggestion, KindServiceQuality, KindFacilityImprovement}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func init() {
	validation.Register("feedbackkind", func(v string) bool { return Kind(v).Valid() })
}

// Feedback is a single submission. Anonymous entries carry no submitter.
type Feedback struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"type"`
	Message     string    `json:"message"`
	Anonymous   bool      `json:"anonymous"`
	StudentRef  string    `json:"studentRef,omitempty"`
	Name        string    `json:"name,omitempty"`
	RoomNumber  string    `json:"roomNumber,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Input is what a student submits.
type Input struct {
	Type       Kind   `validate:"required,feedbackkind"`
	Message    string `validate:"required,max=4000"`
	Anonymous  bool
	StudentRef string `validate:"required"`
	Name       string
	RoomNumber string
}

// ValidationError reports field-level input problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "invalid feedback" }

// Store persists feedback.
type Store interface {
	Insert(ctx context.Context, f Feedback) error
	List(ctx context.Context, kind Kind) ([]Feedback, error)
}

// Service validates and records feedback.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit records a feedback entry, stripping the submitter when anonymous.
func (s *Service) Submit(ctx context.Context, in Input) (Feedback, error) {
	in.Message = strings.TrimSpace(in.Message)
	if in.Type == "" {
		in.Type = KindGeneral
	}
	if fields := validation.Struct(in); fields != nil {
		return Feedback{}, &ValidationError{Fields: fields}
	}
	f := Feedback{
		ID:          uuid.NewString(),
		Kind:        in.Type,
		Message:     in.Message,
		Anonymous:   in.Anonymous,
		SubmittedAt: s.now().UTC(),
	}
	if !in.Anonymous {
		f.StudentRef, f.Name, f.RoomNumber = in.StudentRef, in.Name, in.RoomNumber
	}
	if err := s.store.Insert(ctx, f); err != nil {
		return Feedback{}, err
	}
	return f, nil
}

// List returns feedback newest first, optionally of one kind.
func (s *Service) List(ctx context.Context, kind Kind) ([]Feedback, error) {
	if kind != "" && !kind.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"type": "is not a valid feedback type"}}
	}
	return s.store.List(ctx, kind)
}

// MemoryStore keeps feedback in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Feedback
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Insert(_ context.Context, f Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, f)
	return nil
}

func (m *MemoryStore) List(_ context.Context, kind Kind) ([]Feedback, error) {
	m.mu.RLock()
	out := make([]Feedback, 0, len(m.items))
	for _, f := range m.items {
		if kind == "" || f.Kind == kind {
			out = append(out, f)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

// Repository persists feedback in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Insert(ctx context.Context, f Feedback) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback (id, kind, message, anonymous, student_ref, name, room_number, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, f.ID, string(f.Kind), f.Message, f.Anonymous, f.StudentRef, f.Name, f.RoomNumber, f.SubmittedAt)
	return err
}

func (r *Repository) List(ctx context.Context, kind Kind) ([]Feedback, error) {
	query := `SELECT id, kind, message, anonymous, student_ref, name, room_number, submitted_at FROM feedback`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY submitted_at DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Feedback{}
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.Kind, &f.Message, &f.Anonymous, &f.StudentRef, &f.Name, &f.RoomNumber, &f.SubmittedAt); err != nil {
			return nil, err
		}
		f.SubmittedAt = f.SubmittedAt.UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
