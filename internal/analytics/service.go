package analytics

import (
	"context"
	"errors"
	"log"
	"time"

	"hostel/internal/complaint"
)

// MaxWindow bounds the monthly trend length.
const MaxWindow = 24

// ErrWindow is returned for a trend window outside 1..MaxWindow.
var ErrWindow = errors.New("analytics: months must be between 1 and 24")

// Source lists complaints; complaint.Service satisfies it.
type Source interface {
	List(ctx context.Context, f complaint.Filter) ([]complaint.Complaint, error)
}

// Service recomputes projections on demand from the complaint source.
type Service struct {
	source Source
	cache  Cache
	now    func() time.Time
}

// NewService creates an analytics service. A nil cache disables caching.
func NewService(source Source, cache Cache) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{source: source, cache: cache, now: time.Now}
}

// Summary returns the admin dashboard projections for a trend window.
func (s *Service) Summary(ctx context.Context, window int) (Summary, error) {
	if window < 1 || window > MaxWindow {
		return Summary{}, ErrWindow
	}
	cached, gen, err := s.cache.Get(ctx, window)
	if err == nil {
		return cached, nil
	}
	// Only a clean miss tells us which generation to fill.
	fill := errors.Is(err, ErrCacheMiss)
	if !fill {
		log.Printf("analytics cache read failed: %v", err)
	}

	all, err := s.source.List(ctx, complaint.Filter{})
	if err != nil {
		return Summary{}, err
	}
	sum := Summarize(all, window, s.now())
	if fill {
		if err := s.cache.Set(ctx, gen, window, sum); err != nil {
			log.Printf("analytics cache write failed: %v", err)
		}
	}
	return sum, nil
}

// ForStudent returns status counts over one student's complaints.
func (s *Service) ForStudent(ctx context.Context, studentRef string) (StudentSummary, error) {
	mine, err := s.source.List(ctx, complaint.Filter{StudentRef: studentRef})
	if err != nil {
		return StudentSummary{}, err
	}
	return StudentSummary{Total: len(mine), ByStatus: CountsByStatus(mine)}, nil
}

// Notify drops cached summaries after any complaint change.
func (s *Service) Notify(ctx context.Context, _ complaint.Event) error {
	return s.cache.Invalidate(ctx)
}
