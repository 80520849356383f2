// Command agenda is the terminal front-end for the campus event
// scheduling backend: log in, browse the calendar, manage events and
// participants, and (for administrators) approve pending registrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/eventosacademicos/campus-agenda/internal/cache"
	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/service"
	"github.com/eventosacademicos/campus-agenda/internal/infrastructure/config"
	"github.com/eventosacademicos/campus-agenda/internal/infrastructure/rest"
	"github.com/eventosacademicos/campus-agenda/internal/infrastructure/state"
	"github.com/eventosacademicos/campus-agenda/pkg/logger"
)

const usage = `usage: agenda <command> [flags]

commands:
  login      authenticate and persist the session
  logout     clear the session, local state and query cache
  register   request a new account (pending admin approval)
  whoami     show the current session
  events     list, show, create, update, delete events; manage members
  users      directory, pending approvals, profile admin
  watch      periodically refresh and render the user's events
`

type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *state.FileStore
	cache   cache.Cache
	session *service.Session
	events  *service.Events
	users   *service.Users
}

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "agenda:", err)
		os.Exit(1)
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	a, cleanup, err := newApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "agenda:", err)
		os.Exit(1)
	}
	defer cleanup()

	a.session.Initialize(ctx)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := a.dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "agenda:", renderError(err))
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, func(), error) {
	store, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, nil, err
	}

	var qcache cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		qcache, err = cache.NewRedis(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix, cfg.StaleTTL)
		if err != nil {
			return nil, nil, err
		}
	default:
		qcache = cache.NewMemory(cfg.StaleTTL, cfg.StaleTTL)
	}
	cleanup := func() { _ = qcache.Close() }

	// The session is both the token source for outbound requests and the
	// target of the forced-logout hook on 401 responses.
	var session *service.Session
	client := rest.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, rest.TokenFunc(func() string {
		return session.Token()
	}), log)
	session = service.NewSession(client, store, qcache, log)
	client.OnUnauthorized(session.ForceLogout)
	session.SetNavigate(func() {
		fmt.Fprintln(os.Stderr, "session ended, run `agenda login` to sign in again")
	})

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		cache:   qcache,
		session: session,
		events:  service.NewEvents(client, session, qcache, cfg.StaleTTL, cfg.ReadRetries, log),
		users:   service.NewUsers(client, session, qcache, cfg.StaleTTL, cfg.ReadRetries, log),
	}, cleanup, nil
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		a.session.Logout(ctx)
		return nil
	case "register":
		return a.cmdRegister(ctx, args)
	case "whoami":
		return a.cmdWhoami()
	case "events":
		return a.cmdEvents(ctx, args)
	case "users":
		return a.cmdUsers(ctx, args)
	case "watch":
		return a.cmdWatch(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// renderError maps sentinel errors to user-facing messages.
func renderError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "not logged in (run `agenda login`)"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, domain.ErrForbidden):
		return "not allowed: " + err.Error()
	case errors.Is(err, domain.ErrUnavailable):
		return "backend unreachable: " + err.Error()
	default:
		return err.Error()
	}
}
