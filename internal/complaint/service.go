package complaint

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened to a complaint.
type EventType string

const (
	EventCreated      EventType = "complaint.created"
	EventTransitioned EventType = "complaint.transitioned"
)

// Event describes a committed change.
type Event struct {
	Type      EventType `json:"type"`
	Complaint Complaint `json:"complaint"`
	From      Status    `json:"from,omitempty"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}

// Listener is told about every committed change.
type Listener interface {
	Notify(ctx context.Context, evt Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, evt Event) error

func (f ListenerFunc) Notify(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Service coordinates validation, the lifecycle policy and the store.
type Service struct {
	store     Store
	listeners []Listener
	now       func() time.Time
	newID     func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides id generation.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a service backed by a store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a listener for subsequent changes.
func (s *Service) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Create validates input and records a new pending complaint.
func (s *Service) Create(ctx context.Context, in Input) (Complaint, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Complaint{}, err
	}
	now := s.now().UTC()
	c, err := s.store.Insert(ctx, Complaint{
		ID:            s.newID(),
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		Priority:      in.Priority,
		Status:        StatusPending,
		SubmittedAt:   now,
		StudentRef:    in.StudentRef,
		StudentName:   in.StudentName,
		RoomNumber:    in.RoomNumber,
		AttachmentURL: in.AttachmentURL,
		UpdatedAt:     now,
	})
	if err != nil {
		return Complaint{}, err
	}
	s.publish(ctx, Event{Type: EventCreated, Complaint: c, To: c.Status, Actor: c.StudentRef, At: now})
	return c, nil
}

// Get returns a complaint by id.
func (s *Service) Get(ctx context.Context, id string) (Complaint, error) {
	return s.store.Get(ctx, id)
}

// List returns matching complaints, most recent first.
func (s *Service) List(ctx context.Context, f Filter) ([]Complaint, error) {
	return s.store.List(ctx, f)
}

// Transition moves a complaint to a new status. A lost version race is
// retried once against a fresh read before ErrConflict is returned.
func (s *Service) Transition(ctx context.Context, id string, to Status, actor string) (Complaint, error) {
	if err := validTarget(to); err != nil {
		return Complaint{}, err
	}
	c, err := s.transitionOnce(ctx, id, to, actor)
	if errors.Is(err, ErrConflict) {
		log.Printf("complaint %s: version conflict, retrying", id)
		c, err = s.transitionOnce(ctx, id, to, actor)
	}
	return c, err
}

// TransitionAt is Transition guarded by the version the caller last saw; a
// stale version is reported as ErrConflict without retrying.
func (s *Service) TransitionAt(ctx context.Context, id string, to Status, actor string, version int64) (Complaint, error) {
	if err := validTarget(to); err != nil {
		return Complaint{}, err
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return Complaint{}, err
	}
	if cur.Version != version {
		return Complaint{}, ErrConflict
	}
	return s.apply(ctx, cur, to, actor)
}

// validTarget rejects statuses outside the lifecycle as bad input rather
// than as a disallowed move.
func validTarget(to Status) error {
	if !to.Valid() {
		return &ValidationError{Fields: map[string]string{"status": "is not a valid status"}}
	}
	return nil
}

func (s *Service) transitionOnce(ctx context.Context, id string, to Status, actor string) (Complaint, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return Complaint{}, err
	}
	return s.apply(ctx, cur, to, actor)
}

func (s *Service) apply(ctx context.Context, cur Complaint, to Status, actor string) (Complaint, error) {
	now := s.now().UTC()
	next, changed, err := Apply(cur, to, now)
	if err != nil || !changed {
		return next, err
	}
	updated, err := s.store.Update(ctx, next, cur.Version)
	if err != nil {
		return Complaint{}, err
	}
	s.publish(ctx, Event{Type: EventTransitioned, Complaint: updated, From: cur.Status, To: updated.Status, Actor: actor, At: now})
	return updated, nil
}

func (s *Service) publish(ctx context.Context, evt Event) {
	for _, l := range s.listeners {
		if err := l.Notify(ctx, evt); err != nil {
			log.Printf("complaint %s: listener failed for %s: %v", evt.Complaint.ID, evt.Type, err)
		}
	}
}
