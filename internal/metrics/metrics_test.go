package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel/internal/complaint"
)

func TestRecorderCountsEvents(t *testing.T) {
	created := ComplaintsCreated.WithLabelValues(string(complaint.CategoryMess))
	moved := Transitions.WithLabelValues(string(complaint.StatusPending), string(complaint.StatusResolved))
	beforeCreated, beforeMoved := testutil.ToFloat64(created), testutil.ToFloat64(moved)

	var r Recorder
	ctx := context.Background()
	require.NoError(t, r.Notify(ctx, complaint.Event{
		Type:      complaint.EventCreated,
		Complaint: complaint.Complaint{Category: complaint.CategoryMess},
	}))
	require.NoError(t, r.Notify(ctx, complaint.Event{
		Type: complaint.EventTransitioned,
		From: complaint.StatusPending,
		To:   complaint.StatusResolved,
	}))

	assert.Equal(t, beforeCreated+1, testutil.ToFloat64(created))
	assert.Equal(t, beforeMoved+1, testutil.ToFloat64(moved))
}
