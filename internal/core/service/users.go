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

// UserForm is the client-side validation shape for a profile update.
type UserForm struct {
	Username           string          `validate:"required"`
	Email              string          `validate:"required,email"`
	Phone              string          `validate:"required"`
	RegistrationNumber string          `validate:"required"`
	UserType           domain.UserType `validate:"required,oneof=STUDENT TEACHER ADMIN"`
}

// Users is the user/admin query layer: directory listings, pending
// registration approval, profile updates. Authorization is enforced
// server-side; this layer only caches and invalidates.
type Users struct {
	backend ports.Backend
	auth    Authenticator
	cache   cache.Cache
	lists   *cache.Typed[[]domain.User]
	single  *cache.Typed[domain.User]
	retries int
	log     zerolog.Logger
	keys    keyedMutex
}

// NewUsers wires the user query layer.
func NewUsers(backend ports.Backend, auth Authenticator, c cache.Cache, ttl time.Duration, retries int, log zerolog.Logger) *Users {
	if retries < 0 {
		retries = 0
	}
	return &Users{
		backend: backend,
		auth:    auth,
		cache:   c,
		lists:   cache.NewTyped[[]domain.User](c, ttl),
		single:  cache.NewTyped[domain.User](c, ttl),
		retries: retries,
		log:     log,
	}
}

// Summaries returns the user directory (id, username, email shapes).
func (u *Users) Summaries(ctx context.Context) ([]domain.User, error) {
	return u.listCached(ctx, KeyUserSummaries, u.backend.UserSummaries)
}

// Pending returns accounts awaiting administrator approval.
func (u *Users) Pending(ctx context.Context) ([]domain.User, error) {
	return u.listCached(ctx, KeyPendingUsers, u.backend.PendingUsers)
}

// ByType returns users of one account type, cached per type.
func (u *Users) ByType(ctx context.Context, t domain.UserType) ([]domain.User, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown user type %q", domain.ErrValidation, t)
	}
	return u.listCached(ctx, userTypeKey(t), func(ctx context.Context) ([]domain.User, error) {
		return u.backend.UsersByType(ctx, t)
	})
}

// ByID returns one user, cached per id.
func (u *Users) ByID(ctx context.Context, id int64) (*domain.User, error) {
	if !u.auth.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	key := userKey(id)
	if usr, ok := u.single.Get(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return &usr, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	unlock := u.keys.lock(key)
	defer unlock()

	var usr *domain.User
	err := u.retryRead(ctx, func(ctx context.Context) error {
		var ferr error
		usr, ferr = u.backend.UserByID(ctx, id)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if err := u.single.Set(ctx, key, *usr); err != nil {
		u.log.Warn().Err(err).Int64("user_id", id).Msg("caching user failed")
	}
	return usr, nil
}

// Approve confirms a pending registration.
func (u *Users) Approve(ctx context.Context, id int64) error {
	if err := u.backend.ApproveUser(ctx, id); err != nil {
		return fmt.Errorf("approve user %d: %w", id, err)
	}
	invalidate(ctx, u.cache, u.log, MutApproveUser, userKey(id))
	return nil
}

// Update submits a profile change after client-side validation.
func (u *Users) Update(ctx context.Context, id int64, form UserForm) (*domain.User, error) {
	if err := validate.Struct(form); err != nil {
		return nil, err
	}
	updated, err := u.backend.UpdateUser(ctx, id, ports.UserInput{
		Username:           form.Username,
		Email:              form.Email,
		Phone:              form.Phone,
		RegistrationNumber: form.RegistrationNumber,
		UserType:           form.UserType,
	})
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	invalidate(ctx, u.cache, u.log, MutUpdateUser, userKey(id))
	return updated, nil
}

// Delete removes an account.
func (u *Users) Delete(ctx context.Context, id int64) error {
	if err := u.backend.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	invalidate(ctx, u.cache, u.log, MutDeleteUser, userKey(id))
	return nil
}

func (u *Users) listCached(ctx context.Context, key string, fetch func(context.Context) ([]domain.User, error)) ([]domain.User, error) {
	if !u.auth.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if users, ok := u.lists.Get(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return users, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	unlock := u.keys.lock(key)
	defer unlock()

	if users, ok := u.lists.Get(ctx, key); ok {
		return users, nil
	}

	var users []domain.User
	err := u.retryRead(ctx, func(ctx context.Context) error {
		var ferr error
		users, ferr = fetch(ctx)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if err := u.lists.Set(ctx, key, users); err != nil {
		u.log.Warn().Err(err).Str("key", key).Msg("caching query result failed")
	}
	return users, nil
}

func (u *Users) retryRead(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= u.retries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrUnavailable) {
			return err
		}
	}
	return err
}
