package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventosacademicos/campus-agenda/internal/cache"
	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
)

func newTestEvents(backend *stubBackend, auth Authenticator, retries int) (*Events, cache.Cache) {
	c := cache.NewMemory(time.Minute, 0)
	return NewEvents(backend, auth, c, time.Minute, retries, zerolog.Nop()), c
}

// ---------------------------------------------------------------------------
// Cached reads
// ---------------------------------------------------------------------------

func TestListUserEventsCachesAcrossCalls(t *testing.T) {
	fetches := 0
	backend := &stubBackend{
		userEventsFn: func(context.Context) ([]domain.Event, error) {
			fetches++
			return []domain.Event{testEvent(1, "Midterm", domain.TypeExam)}, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		events, err := e.ListUserEvents(ctx)
		if err != nil {
			t.Fatalf("list failed on call %d: %v", i+1, err)
		}
		if len(events) != 1 || events[0].Title != "Midterm" {
			t.Fatalf("unexpected events on call %d: %+v", i+1, events)
		}
	}
	if fetches != 1 {
		t.Fatalf("backend fetched %d times, want 1", fetches)
	}
}

func TestCachedReadsRequireAuthentication(t *testing.T) {
	backend := &stubBackend{}
	e, _ := newTestEvents(backend, neverAuthed{}, 0)

	if _, err := e.ListUserEvents(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := e.GetEvent(context.Background(), 1); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("unauthenticated reads reached the backend: %v", backend.calls)
	}
}

func TestGetEventCachesPerID(t *testing.T) {
	fetches := 0
	backend := &stubBackend{
		eventByIDFn: func(_ context.Context, id int64) (*domain.Event, error) {
			fetches++
			ev := testEvent(id, "Seminar", domain.TypeMeeting)
			return &ev, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ev, err := e.GetEvent(ctx, 42)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if ev.ID != 42 {
			t.Fatalf("event id = %d, want 42", ev.ID)
		}
	}
	if fetches != 1 {
		t.Fatalf("backend fetched %d times, want 1", fetches)
	}
}

func TestReloadEventBypassesCache(t *testing.T) {
	titles := []string{"Draft", "Final"}
	fetches := 0
	backend := &stubBackend{
		eventByIDFn: func(_ context.Context, id int64) (*domain.Event, error) {
			ev := testEvent(id, titles[fetches], domain.TypeOther)
			fetches++
			return &ev, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	if _, err := e.GetEvent(ctx, 5); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	ev, err := e.ReloadEvent(ctx, 5)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if ev.Title != "Final" {
		t.Fatalf("reload returned %q, want Final", ev.Title)
	}
	// The reload repopulates the per-id entry, so the next read is a hit.
	cached, err := e.GetEvent(ctx, 5)
	if err != nil {
		t.Fatalf("get after reload failed: %v", err)
	}
	if cached.Title != "Final" || fetches != 2 {
		t.Fatalf("cached title %q after %d fetches, want Final after 2", cached.Title, fetches)
	}
}

func TestEventsByTypeRejectsUnknownType(t *testing.T) {
	e, _ := newTestEvents(&stubBackend{}, alwaysAuthed{}, 0)

	if _, err := e.EventsByType(context.Background(), "CONCERT"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

func TestReadRetriesOnTransportFailureOnly(t *testing.T) {
	attempts := 0
	backend := &stubBackend{
		userEventsFn: func(context.Context) ([]domain.Event, error) {
			attempts++
			if attempts < 3 {
				return nil, domain.ErrUnavailable
			}
			return []domain.Event{testEvent(1, "Recovered", domain.TypeWork)}, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 2)

	events, err := e.ListUserEvents(context.Background())
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if len(events) != 1 || attempts != 3 {
		t.Fatalf("got %d events after %d attempts, want 1 after 3", len(events), attempts)
	}
}

func TestReadDoesNotRetryServerRejection(t *testing.T) {
	attempts := 0
	backend := &stubBackend{
		eventByIDFn: func(context.Context, int64) (*domain.Event, error) {
			attempts++
			return nil, domain.ErrEventNotFound
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 2)

	if _, err := e.GetEvent(context.Background(), 9); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("backend called %d times for a rejection, want 1", attempts)
	}
}

// ---------------------------------------------------------------------------
// Mutations and invalidation
// ---------------------------------------------------------------------------

func TestCreateEventInvalidatesListsAndFiresCallback(t *testing.T) {
	fetches := 0
	created := testEvent(9, "Workshop", domain.TypeOther)
	backend := &stubBackend{
		userEventsFn: func(context.Context) ([]domain.Event, error) {
			fetches++
			return []domain.Event{testEvent(1, "Old", domain.TypeExam)}, nil
		},
		createEventFn: func(_ context.Context, in ports.EventInput) (*domain.Event, error) {
			if in.Title != "Workshop" {
				t.Fatalf("create input title = %q", in.Title)
			}
			return &created, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	if _, err := e.ListUserEvents(ctx); err != nil {
		t.Fatalf("warm-up list failed: %v", err)
	}

	var gotSuccess *domain.Event
	in := ports.EventInput{
		Title:     "Workshop",
		EventType: domain.TypeOther,
		Date:      domain.NewTimestamp(time.Date(2026, 9, 1, 18, 0, 0, 0, time.Local)),
	}
	ev, err := e.CreateEvent(ctx, in, &EventCallbacks{OnSuccess: func(ev *domain.Event) { gotSuccess = ev }})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if ev.ID != 9 || gotSuccess == nil || gotSuccess.ID != 9 {
		t.Fatalf("create result = %+v, callback = %+v", ev, gotSuccess)
	}

	// The user-events key was invalidated, so the next list refetches.
	if _, err := e.ListUserEvents(ctx); err != nil {
		t.Fatalf("list after create failed: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("backend list fetched %d times, want 2", fetches)
	}
}

func TestCreateEventRejectsInvalidInputBeforeSubmitting(t *testing.T) {
	backend := &stubBackend{}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	var gotErr error
	cb := &EventCallbacks{OnError: func(err error) { gotErr = err }}
	in := ports.EventInput{Title: "", EventType: domain.TypeExam, Date: domain.NewTimestamp(time.Now())}
	if _, err := e.CreateEvent(context.Background(), in, cb); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !errors.Is(gotErr, domain.ErrValidation) {
		t.Fatalf("error callback got %v", gotErr)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("invalid input reached the backend: %v", backend.calls)
	}

	in = ports.EventInput{Title: "No date", EventType: domain.TypeExam}
	if _, err := e.CreateEvent(context.Background(), in, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing date, got %v", err)
	}
}

func TestUpdateEventInvalidatesEventKey(t *testing.T) {
	fetches := 0
	backend := &stubBackend{
		eventByIDFn: func(_ context.Context, id int64) (*domain.Event, error) {
			fetches++
			ev := testEvent(id, "Before", domain.TypeMeeting)
			return &ev, nil
		},
		updateEventFn: func(_ context.Context, id int64, in ports.EventInput) (*domain.Event, error) {
			ev := testEvent(id, in.Title, in.EventType)
			return &ev, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	if _, err := e.GetEvent(ctx, 3); err != nil {
		t.Fatalf("warm-up get failed: %v", err)
	}
	in := ports.EventInput{
		Title:     "After",
		EventType: domain.TypeMeeting,
		Date:      domain.NewTimestamp(time.Now()),
	}
	if _, err := e.UpdateEvent(ctx, 3, in); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := e.GetEvent(ctx, 3); err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("backend fetched %d times, want 2 (cache entry dropped by update)", fetches)
	}
}

func TestMutationFailureLeavesCacheIntact(t *testing.T) {
	fetches := 0
	backend := &stubBackend{
		userEventsFn: func(context.Context) ([]domain.Event, error) {
			fetches++
			return []domain.Event{testEvent(1, "Kept", domain.TypeParty)}, nil
		},
		deleteEventFn: func(context.Context, int64) error {
			return domain.ErrForbidden
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	if _, err := e.ListUserEvents(ctx); err != nil {
		t.Fatalf("warm-up list failed: %v", err)
	}
	if err := e.DeleteEvent(ctx, 1); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := e.ListUserEvents(ctx); err != nil {
		t.Fatalf("list after failed delete: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("backend fetched %d times, want 1 (failed mutation must not invalidate)", fetches)
	}
}

// ---------------------------------------------------------------------------
// Membership reconciliation
// ---------------------------------------------------------------------------

func TestSaveMembershipsAppliesRemovalsThenAdditions(t *testing.T) {
	backend := &stubBackend{
		membersFn: func(context.Context, int64) ([]domain.EventMember, error) {
			return []domain.EventMember{member(1, "organizer"), member(2, "bruno"), member(3, "carla")}, nil
		},
		removeMemberFn: func(_ context.Context, eventID, userID int64) error {
			if userID != 3 {
				return errors.New("unexpected removal")
			}
			return nil
		},
		addMemberFn: func(_ context.Context, eventID, userID int64) (*domain.Event, error) {
			if userID != 4 {
				return nil, errors.New("unexpected addition")
			}
			ev := testEvent(eventID, "Study group", domain.TypeWork)
			return &ev, nil
		},
		eventByIDFn: func(_ context.Context, id int64) (*domain.Event, error) {
			ev := testEvent(id, "Study group", domain.TypeWork)
			ev.Members = []domain.EventMember{member(1, "organizer"), member(2, "bruno"), member(4, "dani")}
			return &ev, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ev, err := e.SaveMemberships(context.Background(), 10, []int64{1, 2, 4})
	if err != nil {
		t.Fatalf("save memberships failed: %v", err)
	}

	var mutations []string
	for _, c := range backend.calls {
		if c == "addMember" || c == "removeMember" {
			mutations = append(mutations, c)
		}
	}
	want := []string{"removeMember", "addMember"}
	if len(mutations) != len(want) {
		t.Fatalf("mutation calls = %v, want %v", mutations, want)
	}
	for i := range want {
		if mutations[i] != want[i] {
			t.Fatalf("mutation calls = %v, want %v", mutations, want)
		}
	}
	ids := ev.MemberIDs()
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 4 {
		t.Fatalf("reconciled member ids = %v, want [1 2 4]", ids)
	}
}

func TestSaveMembershipsStopsAtFirstFailure(t *testing.T) {
	backend := &stubBackend{
		membersFn: func(context.Context, int64) ([]domain.EventMember, error) {
			return []domain.EventMember{member(1, "organizer"), member(2, "bruno")}, nil
		},
		removeMemberFn: func(context.Context, int64, int64) error {
			return domain.ErrUnavailable
		},
	}
	e, c := newTestEvents(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	// Seed a cached list; a failed reconcile must not touch it.
	lists := cache.NewTyped[[]domain.Event](c, time.Minute)
	if err := lists.Set(ctx, KeyUserEvents, []domain.Event{testEvent(10, "Kept", domain.TypeWork)}); err != nil {
		t.Fatalf("seeding cache failed: %v", err)
	}

	_, err := e.SaveMemberships(ctx, 10, []int64{1, 3})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	for _, call := range backend.calls {
		if call == "addMember" {
			t.Fatal("additions ran after a failed removal")
		}
	}
	if _, ok := lists.Get(ctx, KeyUserEvents); !ok {
		t.Fatal("cached list invalidated by a failed reconcile")
	}
}

func TestSaveMembershipsNoopDiffStillReconciles(t *testing.T) {
	backend := &stubBackend{
		membersFn: func(context.Context, int64) ([]domain.EventMember, error) {
			return []domain.EventMember{member(1, "organizer")}, nil
		},
		eventByIDFn: func(_ context.Context, id int64) (*domain.Event, error) {
			ev := testEvent(id, "Solo", domain.TypeOther)
			ev.Members = []domain.EventMember{member(1, "organizer")}
			return &ev, nil
		},
	}
	e, _ := newTestEvents(backend, alwaysAuthed{}, 0)

	ev, err := e.SaveMemberships(context.Background(), 10, []int64{1})
	if err != nil {
		t.Fatalf("save memberships failed: %v", err)
	}
	for _, call := range backend.calls {
		if call == "addMember" || call == "removeMember" {
			t.Fatalf("empty diff issued mutation %q", call)
		}
	}
	if got := ev.MemberIDs(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("member ids = %v, want [1]", got)
	}
}
