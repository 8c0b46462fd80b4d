package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"edueasy/internal/audit"
	"edueasy/internal/tracking"
	"edueasy/internal/tracking/store"
	id "edueasy/pkg/domain"
	dErrors "edueasy/pkg/domain-errors"
	"edueasy/pkg/requestcontext"
)

var trackingIDPattern = regexp.MustCompile(`^EDU-ZA-\d{2}-\d{6}$`)

type AllocatorSuite struct {
	suite.Suite
	counter     *store.InMemoryCounter
	assignments *store.InMemoryAssignments
	auditStore  *audit.InMemoryStore
	service     *Service
	ctx         context.Context
}

func TestAllocatorSuite(t *testing.T) {
	suite.Run(t, new(AllocatorSuite))
}

func (s *AllocatorSuite) SetupTest() {
	s.counter = store.NewInMemoryCounter(0)
	s.assignments = store.NewInMemoryAssignments()
	s.auditStore = audit.NewInMemoryStore()

	var err error
	s.service, err = New(s.counter, s.assignments, audit.NewPublisher(s.auditStore))
	s.Require().NoError(err)

	// Pin the clock so year suffixes are stable.
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC))
}

func newUser() id.UserID { return id.UserID(uuid.New()) }

func (s *AllocatorSuite) TestNew() {
	s.Run("nil counter rejected", func() {
		_, err := New(nil, s.assignments, audit.NewPublisher(s.auditStore))
		s.Error(err)
	})
	s.Run("nil assignments rejected", func() {
		_, err := New(s.counter, nil, audit.NewPublisher(s.auditStore))
		s.Error(err)
	})
	s.Run("nil auditor rejected", func() {
		_, err := New(s.counter, s.assignments, nil)
		s.Error(err)
	})
}

func (s *AllocatorSuite) TestAllocate() {
	s.Run("first allocation gets sequence one", func() {
		got, err := s.service.Allocate(s.ctx, newUser())
		s.Require().NoError(err)
		s.Equal(tracking.ID("EDU-ZA-25-000001"), got)
	})

	s.Run("sequences increase across users", func() {
		a, err := s.service.Allocate(s.ctx, newUser())
		s.Require().NoError(err)
		b, err := s.service.Allocate(s.ctx, newUser())
		s.Require().NoError(err)
		s.Greater(b.Sequence(), a.Sequence())
	})

	s.Run("nil user rejected", func() {
		_, err := s.service.Allocate(s.ctx, id.UserID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("second allocation for same user conflicts", func() {
		user := newUser()
		_, err := s.service.Allocate(s.ctx, user)
		s.Require().NoError(err)

		_, err = s.service.Allocate(s.ctx, user)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("appends one automatic audit entry", func() {
		before := len(s.auditStore.All())
		user := newUser()
		got, err := s.service.Allocate(s.ctx, user)
		s.Require().NoError(err)

		all := s.auditStore.All()
		s.Require().Len(all, before+1)
		last := all[len(all)-1]
		s.Equal(got, last.TrackingID)
		s.Equal(user, last.UserID)
		s.Equal(tracking.MethodAutomatic, last.Method)
		s.False(last.Timestamp.IsZero())
	})
}

func (s *AllocatorSuite) TestAllocate_CounterExhausted() {
	s.Require().NoError(s.counter.AdvanceTo(s.ctx, tracking.MaxSequence))

	_, err := s.service.Allocate(s.ctx, newUser())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Contains(err.Error(), "exhausted")

	_, err = s.service.PeekNext(s.ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "exhausted")
}

func (s *AllocatorSuite) TestAllocate_Concurrent() {
	const users = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := make([]tracking.ID, 0, users)
	errs := make([]error, 0, users)

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.service.Allocate(s.ctx, newUser())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids = append(ids, got)
		}()
	}
	wg.Wait()

	s.Require().Empty(errs)
	s.Require().Len(ids, users)

	seen := make(map[tracking.ID]struct{}, users)
	seqs := make([]int64, 0, users)
	for _, got := range ids {
		s.Regexp(trackingIDPattern, got.String())
		seen[got] = struct{}{}
		seqs = append(seqs, got.Sequence())
	}
	s.Len(seen, users, "no two users may receive the same tracking id")

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		s.Equal(int64(i+1), seq, "sequences must be dense and strictly increasing")
	}
}

func (s *AllocatorSuite) TestPeekNext() {
	s.Run("peek then allocate agree", func() {
		peeked, err := s.service.PeekNext(s.ctx)
		s.Require().NoError(err)

		allocated, err := s.service.Allocate(s.ctx, newUser())
		s.Require().NoError(err)
		s.Equal(peeked, allocated)
	})

	s.Run("peek does not consume", func() {
		first, err := s.service.PeekNext(s.ctx)
		s.Require().NoError(err)
		second, err := s.service.PeekNext(s.ctx)
		s.Require().NoError(err)
		s.Equal(first, second)
	})
}

func (s *AllocatorSuite) TestAssignManually_FormatInvalid() {
	user := newUser()
	for _, raw := range []string{"", "EDU-ZA-25-1", "TRACK-25-000001", "EDU-ZA-25-000001x"} {
		err := s.service.AssignManually(s.ctx, user, raw)
		s.Require().Error(err, raw)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), raw)
	}
	// Nothing was assigned and no audit entry appeared.
	s.Empty(s.auditStore.All())
	_, err := s.service.Allocate(s.ctx, user)
	s.NoError(err, "user must still be assignable")
}

func (s *AllocatorSuite) TestAssignManually_RecordsManualAuditEntry() {
	user := newUser()
	ctx := requestcontext.WithActorID(s.ctx, "admin@edueasy")

	s.Require().NoError(s.service.AssignManually(ctx, user, "EDU-ZA-24-000900"))

	entries, err := audit.NewPublisher(s.auditStore).List(ctx, tracking.ID("EDU-ZA-24-000900"))
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(tracking.MethodManual, entries[0].Method)
	s.Equal("admin@edueasy", entries[0].ActorID)
}

func (s *AllocatorSuite) TestAssignManually_AdvancesCounter() {
	s.Require().NoError(s.service.AssignManually(s.ctx, newUser(), "EDU-ZA-25-000500"))

	next, err := s.service.PeekNext(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(501), next.Sequence(),
		"automatic allocation must skip past manually assigned sequences")
}

func (s *AllocatorSuite) TestAssignManually_DuplicateTrackingID() {
	s.Require().NoError(s.service.AssignManually(s.ctx, newUser(), "EDU-ZA-25-000700"))

	err := s.service.AssignManually(s.ctx, newUser(), "EDU-ZA-25-000700")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AllocatorSuite) TestAssignManually_UserAlreadyAssigned() {
	user := newUser()
	_, err := s.service.Allocate(s.ctx, user)
	s.Require().NoError(err)

	err = s.service.AssignManually(s.ctx, user, "EDU-ZA-25-000800")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

type failOnceAuditor struct {
	mu     sync.Mutex
	failed bool
	inner  *audit.Publisher
}

func (f *failOnceAuditor) Emit(ctx context.Context, e audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.failed {
		f.failed = true
		return dErrors.New(dErrors.CodeInternal, "audit append failed")
	}
	return f.inner.Emit(ctx, e)
}

// A sequence drawn by an allocation that fails at the audit step is burned:
// the failed caller gets an error, and the next allocation moves on to a
// fresh sequence rather than re-issuing the burned one.
func (s *AllocatorSuite) TestAllocate_AuditFailureBurnsSequence() {
	auditor := &failOnceAuditor{inner: audit.NewPublisher(s.auditStore)}
	svc, err := New(s.counter, s.assignments, auditor)
	s.Require().NoError(err)

	_, err = svc.Allocate(s.ctx, newUser())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	got, err := svc.Allocate(s.ctx, newUser())
	s.Require().NoError(err)
	s.Equal(int64(2), got.Sequence(), "sequence 1 was burned and must never be issued")
}

func ExampleService_Allocate() {
	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC))

	svc, _ := New(
		store.NewInMemoryCounter(416),
		store.NewInMemoryAssignments(),
		audit.NewPublisher(audit.NewInMemoryStore()),
	)

	trackingID, _ := svc.Allocate(ctx, id.UserID(uuid.New()))
	fmt.Println(trackingID)
	// Output: EDU-ZA-25-000417
}
