package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAnonymousDropsSubmitter(t *testing.T) {
	svc := NewService(NewMemoryStore())

	f, err := svc.Submit(context.Background(), Input{
		Type: KindSuggestion, Message: "  Extend library hours  ", Anonymous: true,
		StudentRef: "2021A7PS0001P", Name: "Arjun", RoomNumber: "A-101",
	})
	require.NoError(t, err)
	assert.Equal(t, "Extend library hours", f.Message)
	assert.Empty(t, f.StudentRef)
	assert.Empty(t, f.Name)
	assert.Empty(t, f.RoomNumber)
	assert.True(t, f.Anonymous)
}

func TestSubmitDefaultsKindAndKeepsSubmitter(t *testing.T) {
	svc := NewService(NewMemoryStore())
	f, err := svc.Submit(context.Background(), Input{Message: "Mess food improved", StudentRef: "s1", Name: "N"})
	require.NoError(t, err)
	assert.Equal(t, KindGeneral, f.Kind)
	assert.Equal(t, "s1", f.StudentRef)
}

func TestSubmitValidation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	_, err := svc.Submit(context.Background(), Input{Type: "rant", Message: " ", StudentRef: "s1"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "type")
	assert.Contains(t, verr.Fields, "message")
}

func TestListNewestFirstByKind(t *testing.T) {
	svc := NewService(NewMemoryStore())
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	svc.now = func() time.Time { i++; return base.Add(time.Duration(i) * time.Hour) }
	ctx := context.Background()
	for _, k := range []Kind{KindGeneral, KindServiceQuality, KindGeneral} {
		_, err := svc.Submit(ctx, Input{Type: k, Message: "m", StudentRef: "s1"})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].SubmittedAt.After(all[1].SubmittedAt))

	general, err := svc.List(ctx, KindGeneral)
	require.NoError(t, err)
	assert.Len(t, general, 2)

	_, err = svc.List(ctx, "rant")
	assert.Error(t, err)
}
