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

func newTestUsers(backend *stubBackend, auth Authenticator, retries int) (*Users, cache.Cache) {
	c := cache.NewMemory(time.Minute, 0)
	return NewUsers(backend, auth, c, time.Minute, retries, zerolog.Nop()), c
}

func TestSummariesCacheAcrossCalls(t *testing.T) {
	fetches := 0
	backend := &stubBackend{
		summariesFn: func(context.Context) ([]domain.User, error) {
			fetches++
			return []domain.User{{ID: 1, Username: "ana"}}, nil
		},
	}
	u, _ := newTestUsers(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		users, err := u.Summaries(ctx)
		if err != nil {
			t.Fatalf("summaries failed: %v", err)
		}
		if len(users) != 1 || users[0].Username != "ana" {
			t.Fatalf("unexpected users: %+v", users)
		}
	}
	if fetches != 1 {
		t.Fatalf("backend fetched %d times, want 1", fetches)
	}
}

func TestUsersRequireAuthentication(t *testing.T) {
	backend := &stubBackend{}
	u, _ := newTestUsers(backend, neverAuthed{}, 0)

	if _, err := u.Summaries(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := u.ByID(context.Background(), 1); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("unauthenticated reads reached the backend: %v", backend.calls)
	}
}

func TestByTypeRejectsUnknownUserType(t *testing.T) {
	u, _ := newTestUsers(&stubBackend{}, alwaysAuthed{}, 0)

	if _, err := u.ByType(context.Background(), "ROBOT"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestApproveInvalidatesPendingList(t *testing.T) {
	pendingFetches := 0
	backend := &stubBackend{
		pendingFn: func(context.Context) ([]domain.User, error) {
			pendingFetches++
			return []domain.User{{ID: 5, Username: "new", Approved: false}}, nil
		},
		approveFn: func(_ context.Context, id int64) error {
			if id != 5 {
				t.Fatalf("approved id %d, want 5", id)
			}
			return nil
		},
	}
	u, _ := newTestUsers(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	if _, err := u.Pending(ctx); err != nil {
		t.Fatalf("warm-up pending failed: %v", err)
	}
	if err := u.Approve(ctx, 5); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := u.Pending(ctx); err != nil {
		t.Fatalf("pending after approve failed: %v", err)
	}
	if pendingFetches != 2 {
		t.Fatalf("pending fetched %d times, want 2 (approve drops the list)", pendingFetches)
	}
}

func TestUpdateValidatesFormFirst(t *testing.T) {
	backend := &stubBackend{}
	u, _ := newTestUsers(backend, alwaysAuthed{}, 0)

	form := UserForm{Username: "ana", Email: "not-an-email", Phone: "555", RegistrationNumber: "A-1", UserType: domain.UserStudent}
	if _, err := u.Update(context.Background(), 1, form); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("invalid form reached the backend: %v", backend.calls)
	}
}

func TestUpdateInvalidatesUserKey(t *testing.T) {
	fetches := 0
	backend := &stubBackend{
		userByIDFn: func(_ context.Context, id int64) (*domain.User, error) {
			fetches++
			return &domain.User{ID: id, Username: "before"}, nil
		},
		updateUserFn: func(_ context.Context, id int64, in ports.UserInput) (*domain.User, error) {
			return &domain.User{ID: id, Username: in.Username}, nil
		},
	}
	u, _ := newTestUsers(backend, alwaysAuthed{}, 0)

	ctx := context.Background()
	if _, err := u.ByID(ctx, 3); err != nil {
		t.Fatalf("warm-up get failed: %v", err)
	}
	form := UserForm{Username: "after", Email: "a@example.edu", Phone: "555", RegistrationNumber: "A-1", UserType: domain.UserStudent}
	if _, err := u.Update(ctx, 3, form); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := u.ByID(ctx, 3); err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("backend fetched %d times, want 2 (update drops the entry)", fetches)
	}
}

func TestDeleteUserFailurePropagates(t *testing.T) {
	backend := &stubBackend{
		deleteUserFn: func(context.Context, int64) error { return domain.ErrForbidden },
	}
	u, _ := newTestUsers(backend, alwaysAuthed{}, 0)

	if err := u.Delete(context.Background(), 2); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestByIDRetriesTransportFailure(t *testing.T) {
	attempts := 0
	backend := &stubBackend{
		userByIDFn: func(_ context.Context, id int64) (*domain.User, error) {
			attempts++
			if attempts == 1 {
				return nil, domain.ErrUnavailable
			}
			return &domain.User{ID: id, Username: "ana"}, nil
		},
	}
	u, _ := newTestUsers(backend, alwaysAuthed{}, 1)

	usr, err := u.ByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if usr.Username != "ana" || attempts != 2 {
		t.Fatalf("got %+v after %d attempts", usr, attempts)
	}
}
