package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eventosacademicos/campus-agenda/internal/cache"
	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
)

// Query cache keys. Every cached fetch and every invalidation goes
// through these; nothing else may touch the cache by string.
const (
	KeyUserEvents     = "events:user"
	KeyAllEvents      = "events:all"
	KeyAcademicEvents = "events:academic"
	KeyPartyEvents    = "events:party"
	KeyUserSummaries  = "users:summary"
	KeyPendingUsers   = "users:pending"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func eventKey(id int64) string        { return "events:id:" + itoa(id) }
func eventTypeKey(t domain.EventType) string { return "events:type:" + string(t) }
func userKey(id int64) string         { return "users:id:" + itoa(id) }
func userTypeKey(t domain.UserType) string   { return "users:type:" + string(t) }

// Mutation identifies a cache-owning write operation.
type Mutation string

const (
	MutCreateEvent  Mutation = "create_event"
	MutUpdateEvent  Mutation = "update_event"
	MutDeleteEvent  Mutation = "delete_event"
	MutAddMember    Mutation = "add_member"
	MutRemoveMember Mutation = "remove_member"
	MutApproveUser  Mutation = "approve_user"
	MutUpdateUser   Mutation = "update_user"
	MutDeleteUser   Mutation = "delete_user"
)

// invalidations maps each mutation to the static key set it owns. Keys
// derived from an entity id are appended by invalidate. Only the owning
// mutation may invalidate its keys.
var invalidations = map[Mutation][]string{
	MutCreateEvent:  {KeyUserEvents, KeyAllEvents, KeyAcademicEvents, KeyPartyEvents},
	MutUpdateEvent:  {KeyUserEvents, KeyAllEvents, KeyAcademicEvents, KeyPartyEvents},
	MutDeleteEvent:  {KeyUserEvents, KeyAllEvents, KeyAcademicEvents, KeyPartyEvents},
	MutAddMember:    {KeyUserEvents},
	MutRemoveMember: {KeyUserEvents},
	MutApproveUser:  {KeyUserSummaries, KeyPendingUsers},
	MutUpdateUser:   {KeyUserSummaries},
	MutDeleteUser:   {KeyUserSummaries, KeyPendingUsers},
}

// invalidate drops every key owned by the mutation, plus any id-derived
// extras (a touched event or user).
func invalidate(ctx context.Context, c cache.Cache, log zerolog.Logger, m Mutation, extra ...string) {
	keys := append(append([]string(nil), invalidations[m]...), extra...)
	for _, k := range keys {
		if err := c.Delete(ctx, k); err != nil {
			log.Warn().Err(err).Str("key", k).Str("mutation", string(m)).Msg("cache invalidation failed")
		}
	}
	log.Debug().Str("mutation", string(m)).Strs("keys", keys).Msg("cache invalidated")
}

// keyedMutex serializes refetches of the same query key so concurrent
// readers do not stampede the backend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
