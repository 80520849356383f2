package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventosacademicos/campus-agenda/internal/cache"
	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
	"github.com/eventosacademicos/campus-agenda/internal/metrics"
	"github.com/eventosacademicos/campus-agenda/internal/validate"
)

// Authenticator gates cached queries on a live session.
type Authenticator interface {
	Authenticated() bool
}

// EventCallbacks are optional notifications for a create mutation,
// invoked after the cache invalidation has run.
type EventCallbacks struct {
	OnSuccess func(*domain.Event)
	OnError   func(error)
}

// eventForm is the client-side validation shape for create/update input.
type eventForm struct {
	Title     string           `validate:"required"`
	EventType domain.EventType `validate:"required,oneof=EXAM WORK PARTY MEETING OTHER"`
}

// Events is the event query layer: reads go through the shared query
// cache with a per-key staleness window and limited retry; writes
// invalidate exactly the key set they own.
type Events struct {
	backend ports.Backend
	auth    Authenticator
	cache   cache.Cache
	lists   *cache.Typed[[]domain.Event]
	single  *cache.Typed[domain.Event]
	retries int
	log     zerolog.Logger
	keys    keyedMutex
}

// NewEvents wires the event query layer. ttl is the staleness window for
// cached reads; retries is the number of extra attempts made for reads
// that fail on transport (not server rejection).
func NewEvents(backend ports.Backend, auth Authenticator, c cache.Cache, ttl time.Duration, retries int, log zerolog.Logger) *Events {
	if retries < 0 {
		retries = 0
	}
	return &Events{
		backend: backend,
		auth:    auth,
		cache:   c,
		lists:   cache.NewTyped[[]domain.Event](c, ttl),
		single:  cache.NewTyped[domain.Event](c, ttl),
		retries: retries,
		log:     log,
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// ListUserEvents returns the authenticated user's events (organized plus
// member-of). Does not fetch while unauthenticated.
func (e *Events) ListUserEvents(ctx context.Context) ([]domain.Event, error) {
	return e.listCached(ctx, KeyUserEvents, e.backend.UserEvents)
}

// AllEvents returns every event visible to the account.
func (e *Events) AllEvents(ctx context.Context) ([]domain.Event, error) {
	return e.listCached(ctx, KeyAllEvents, e.backend.AllEvents)
}

// AcademicEvents returns exam and assignment events.
func (e *Events) AcademicEvents(ctx context.Context) ([]domain.Event, error) {
	return e.listCached(ctx, KeyAcademicEvents, e.backend.AcademicEvents)
}

// PartyEvents returns party events.
func (e *Events) PartyEvents(ctx context.Context) ([]domain.Event, error) {
	return e.listCached(ctx, KeyPartyEvents, e.backend.PartyEvents)
}

// EventsByType returns events of one type from the backend, cached per type.
func (e *Events) EventsByType(ctx context.Context, t domain.EventType) ([]domain.Event, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, t)
	}
	return e.listCached(ctx, eventTypeKey(t), func(ctx context.Context) ([]domain.Event, error) {
		return e.backend.EventsByType(ctx, t)
	})
}

// GetEvent returns a single event, cached per id.
func (e *Events) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	if !e.auth.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	key := eventKey(id)
	if ev, ok := e.single.Get(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return &ev, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	return e.ReloadEvent(ctx, id)
}

// ReloadEvent bypasses the cache, fetches the canonical event, and
// repopulates the per-id entry. Backs the detail view's manual reload.
func (e *Events) ReloadEvent(ctx context.Context, id int64) (*domain.Event, error) {
	if !e.auth.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	unlock := e.keys.lock(eventKey(id))
	defer unlock()

	ev, err := e.fetchWithRetry(ctx, func(ctx context.Context) (*domain.Event, error) {
		return e.backend.EventByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if err := e.single.Set(ctx, eventKey(id), *ev); err != nil {
		e.log.Warn().Err(err).Int64("event_id", id).Msg("caching event failed")
	}
	return ev, nil
}

// RefreshUserEvents drops the cached user-events entry and refetches,
// ignoring the staleness window. Backs the watch loop.
func (e *Events) RefreshUserEvents(ctx context.Context) ([]domain.Event, error) {
	if !e.auth.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if err := e.lists.Delete(ctx, KeyUserEvents); err != nil {
		e.log.Warn().Err(err).Msg("dropping cached events failed")
	}
	return e.listCached(ctx, KeyUserEvents, e.backend.UserEvents)
}

// Members returns the current member list straight from the backend.
// Uncached: the membership diff must start from canonical state.
func (e *Events) Members(ctx context.Context, eventID int64) ([]domain.EventMember, error) {
	if !e.auth.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	return e.backend.EventMembers(ctx, eventID)
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// CreateEvent submits a new event. On success the user-events key set is
// invalidated so dependent views refetch; callbacks fire afterwards.
func (e *Events) CreateEvent(ctx context.Context, in ports.EventInput, cb *EventCallbacks) (*domain.Event, error) {
	if err := e.checkInput(in); err != nil {
		if cb != nil && cb.OnError != nil {
			cb.OnError(err)
		}
		return nil, err
	}
	created, err := e.backend.CreateEvent(ctx, in)
	if err != nil {
		if cb != nil && cb.OnError != nil {
			cb.OnError(err)
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	invalidate(ctx, e.cache, e.log, MutCreateEvent)
	if cb != nil && cb.OnSuccess != nil {
		cb.OnSuccess(created)
	}
	return created, nil
}

// UpdateEvent submits changed fields for an event the caller organizes.
func (e *Events) UpdateEvent(ctx context.Context, id int64, in ports.EventInput) (*domain.Event, error) {
	if err := e.checkInput(in); err != nil {
		return nil, err
	}
	updated, err := e.backend.UpdateEvent(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update event %d: %w", id, err)
	}
	invalidate(ctx, e.cache, e.log, MutUpdateEvent, eventKey(id))
	return updated, nil
}

// DeleteEvent removes an event the caller organizes.
func (e *Events) DeleteEvent(ctx context.Context, id int64) error {
	if err := e.backend.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	invalidate(ctx, e.cache, e.log, MutDeleteEvent, eventKey(id))
	return nil
}

// AddMember adds one user to an event.
func (e *Events) AddMember(ctx context.Context, eventID, userID int64) (*domain.Event, error) {
	ev, err := e.backend.AddEventMember(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("add member %d to event %d: %w", userID, eventID, err)
	}
	invalidate(ctx, e.cache, e.log, MutAddMember, eventKey(eventID))
	return ev, nil
}

// RemoveMember removes one user from an event.
func (e *Events) RemoveMember(ctx context.Context, eventID, userID int64) error {
	if err := e.backend.RemoveEventMember(ctx, eventID, userID); err != nil {
		return fmt.Errorf("remove member %d from event %d: %w", userID, eventID, err)
	}
	invalidate(ctx, e.cache, e.log, MutRemoveMember, eventKey(eventID))
	return nil
}

// SaveMemberships reconciles an event's member list to desired as a
// two-phase operation: compute the diff against the canonical list, apply
// removals then additions sequentially, and only after every step
// succeeds reload the canonical event and invalidate dependent keys. On
// any failure the local cached state is left untouched and the error is
// surfaced; changes already applied server-side are not rolled back.
func (e *Events) SaveMemberships(ctx context.Context, eventID int64, desired []int64) (*domain.Event, error) {
	current, err := e.Members(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("save memberships: load members: %w", err)
	}

	currentIDs := make(map[int64]bool, len(current))
	for _, m := range current {
		currentIDs[m.User.ID] = true
	}
	desiredIDs := make(map[int64]bool, len(desired))
	for _, id := range desired {
		desiredIDs[id] = true
	}

	for _, m := range current {
		if desiredIDs[m.User.ID] {
			continue
		}
		if err := e.backend.RemoveEventMember(ctx, eventID, m.User.ID); err != nil {
			return nil, fmt.Errorf("save memberships: remove member %d: %w", m.User.ID, err)
		}
	}
	for _, id := range desired {
		if currentIDs[id] {
			continue
		}
		if _, err := e.backend.AddEventMember(ctx, eventID, id); err != nil {
			return nil, fmt.Errorf("save memberships: add member %d: %w", id, err)
		}
	}

	ev, err := e.ReloadEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("save memberships: reload: %w", err)
	}
	invalidate(ctx, e.cache, e.log, MutAddMember)
	return ev, nil
}

// ---------------------------------------------------------------------------
// Fetch plumbing
// ---------------------------------------------------------------------------

func (e *Events) checkInput(in ports.EventInput) error {
	if err := validate.Struct(eventForm{Title: in.Title, EventType: in.EventType}); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	return nil
}

// listCached serves a list query from the cache, refetching on a miss
// under a per-key lock with limited retry on transport failure.
func (e *Events) listCached(ctx context.Context, key string, fetch func(context.Context) ([]domain.Event, error)) ([]domain.Event, error) {
	if !e.auth.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if events, ok := e.lists.Get(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return events, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	unlock := e.keys.lock(key)
	defer unlock()

	// Another caller may have refilled the key while we waited.
	if events, ok := e.lists.Get(ctx, key); ok {
		return events, nil
	}

	var events []domain.Event
	err := e.retryRead(ctx, func(ctx context.Context) error {
		var ferr error
		events, ferr = fetch(ctx)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if err := e.lists.Set(ctx, key, events); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("caching query result failed")
	}
	return events, nil
}

func (e *Events) fetchWithRetry(ctx context.Context, fetch func(context.Context) (*domain.Event, error)) (*domain.Event, error) {
	var ev *domain.Event
	err := e.retryRead(ctx, func(ctx context.Context) error {
		var ferr error
		ev, ferr = fetch(ctx)
		return ferr
	})
	return ev, err
}

// retryRead runs a read, retrying only transport failures up to the
// configured count. Server rejections (auth, not found, validation) are
// returned on the first attempt.
func (e *Events) retryRead(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrUnavailable) {
			return err
		}
		if attempt < e.retries {
			e.log.Debug().Err(err).Int("attempt", attempt+1).Msg("read failed, retrying")
		}
	}
	return err
}
