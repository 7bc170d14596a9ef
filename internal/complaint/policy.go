package complaint

import (
	"fmt"
	"time"
)

// transitions lists the permitted moves between distinct statuses. Every
// status can reach every other one; reopening is an ordinary transition.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusResolved},
	StatusInProgress: {StatusResolved, StatusPending},
	StatusResolved:   {StatusInProgress, StatusPending},
}

// CanTransition reports whether a complaint in status from may move to to.
// Staying in the same known status is always allowed.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply moves c to status to at time now and reports whether anything changed.
// Entering resolved stamps ResolvedAt, leaving it clears ResolvedAt, and no
// other field is touched.
func Apply(c Complaint, to Status, now time.Time) (Complaint, bool, error) {
	if !CanTransition(c.Status, to) {
		return c, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	if c.Status == to {
		return c, false, nil
	}
	c = c.clone()
	c.Status = to
	if to == StatusResolved {
		at := now.UTC()
		if at.Before(c.SubmittedAt) {
			at = c.SubmittedAt
		}
		c.ResolvedAt = &at
	} else {
		c.ResolvedAt = nil
	}
	return c, true, nil
}
