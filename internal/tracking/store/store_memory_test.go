package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
	"edueasy/pkg/platform/sentinel"
)

func TestInMemoryCounter_ConcurrentNext(t *testing.T) {
	ctx := context.Background()
	counter := NewInMemoryCounter(0)
	const goroutines = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines)
	var errs []error

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := counter.Next(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seen[v] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Len(t, seen, goroutines, "every increment must observe a distinct value")

	cur, err := counter.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines), cur)
}

func TestInMemoryCounter_AdvanceTo(t *testing.T) {
	ctx := context.Background()
	counter := NewInMemoryCounter(10)

	require.NoError(t, counter.AdvanceTo(ctx, 40))
	cur, err := counter.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), cur)

	// Never lowers.
	require.NoError(t, counter.AdvanceTo(ctx, 5))
	cur, err = counter.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), cur)
}

func TestInMemoryAssignments(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	newAssignment := func(seq int64) tracking.Assignment {
		return tracking.Assignment{
			UserID:     id.UserID(uuid.New()),
			TrackingID: tracking.Format(now, seq),
			Method:     tracking.MethodAutomatic,
			AssignedAt: now,
		}
	}

	t.Run("get missing returns not found", func(t *testing.T) {
		s := NewInMemoryAssignments()
		_, err := s.Get(ctx, id.UserID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("create then get round trips", func(t *testing.T) {
		s := NewInMemoryAssignments()
		a := newAssignment(1)
		require.NoError(t, s.Create(ctx, a))

		got, err := s.Get(ctx, a.UserID)
		require.NoError(t, err)
		assert.Equal(t, a, *got)
	})

	t.Run("duplicate user conflicts", func(t *testing.T) {
		s := NewInMemoryAssignments()
		a := newAssignment(1)
		require.NoError(t, s.Create(ctx, a))

		b := newAssignment(2)
		b.UserID = a.UserID
		assert.ErrorIs(t, s.Create(ctx, b), sentinel.ErrConflict)
	})

	t.Run("duplicate tracking id conflicts", func(t *testing.T) {
		s := NewInMemoryAssignments()
		a := newAssignment(1)
		require.NoError(t, s.Create(ctx, a))

		b := newAssignment(1) // same sequence, same tracking id
		assert.ErrorIs(t, s.Create(ctx, b), sentinel.ErrConflict)
	})
}
