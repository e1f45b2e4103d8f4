package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"authkit/internal/events"
)

// ErrUnauthorized is returned when an authenticated principal lacks a group
// required by the target route. It is distinct from ErrUnauthenticated so
// hosts can react differently to "log in first" and "you may not".
var ErrUnauthorized = errors.New("session: principal lacks required group")

// Requirements are the authentication demands a route declares.
type Requirements struct {
	// Authenticate requires a logged-in principal.
	Authenticate bool `yaml:"authenticate"`

	// Authorize requires membership in at least one of the named groups.
	// Implies Authenticate.
	Authorize []string `yaml:"authorize"`

	// WaitForUser loads the session before entering when it is unknown, but
	// never blocks navigation on the result.
	WaitForUser bool `yaml:"waitForUser"`
}

// Route is a navigation target with its declared requirements.
type Route struct {
	Name         string
	Requirements Requirements
}

// Outcome is the terminal result of a guarded transition.
type Outcome int

const (
	// OutcomeResumed lets the transition proceed to its target.
	OutcomeResumed Outcome = iota

	// OutcomeRedirected sends the transition to a different route.
	OutcomeRedirected

	// OutcomeCancelled stops the transition; the host reacts to the
	// emitted event, e.g. by showing a login prompt.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResumed:
		return "resumed"
	case OutcomeRedirected:
		return "redirected"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one transition.
type Decision struct {
	TransitionID uuid.UUID
	Outcome      Outcome

	// RedirectTo is the target route name when Outcome is
	// OutcomeRedirected.
	RedirectTo string

	// Reason is ErrUnauthenticated or ErrUnauthorized when Outcome is
	// OutcomeCancelled.
	Reason error
}

// TransitionEvent is the payload of guard-emitted events.
type TransitionEvent struct {
	TransitionID uuid.UUID
	Route        string
}

// GuardConfig configures a Guard.
type GuardConfig struct {
	// Sessions supplies the cached principal and whoami fetches.
	Sessions *Service

	// Bus receives unauthorized/unauthenticated events. Optional.
	Bus *events.Bus

	// LoginRoute is the route presenting the login form.
	LoginRoute string

	// DefaultPostLoginRoute is where already-authenticated users are sent
	// when they navigate to the login route.
	DefaultPostLoginRoute string
}

// Guard gates navigation transitions on session state. The guard itself is
// router-agnostic: Check produces a Decision, and thin adapters map a
// router's native hook onto Run.
type Guard struct {
	sessions              *Service
	bus                   *events.Bus
	loginRoute            string
	defaultPostLoginRoute string
}

// NewGuard creates a Guard.
func NewGuard(cfg GuardConfig) (*Guard, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session guard: session service is required")
	}
	return &Guard{
		sessions:              cfg.Sessions,
		bus:                   cfg.Bus,
		loginRoute:            cfg.LoginRoute,
		defaultPostLoginRoute: cfg.DefaultPostLoginRoute,
	}, nil
}

// Check evaluates a transition to the given route and returns exactly one
// terminal Decision. Blocking whoami fetches happen only when the declared
// requirements demand a principal that is not yet cached.
func (g *Guard) Check(ctx context.Context, route Route) Decision {
	id := uuid.New()
	req := route.Requirements
	needsAuth := req.Authenticate || len(req.Authorize) > 0
	principal, state := g.sessions.Current()

	switch {
	case needsAuth && state != StateAuthenticated:
		// Paused awaiting authentication.
		fetched, err := g.sessions.Fetch(ctx)
		if err != nil {
			g.emit(events.StateChangeUnauthenticated, id, route)
			return Decision{TransitionID: id, Outcome: OutcomeCancelled, Reason: ErrUnauthenticated}
		}
		if len(req.Authorize) > 0 && !fetched.HasAnyGroup(req.Authorize) {
			g.emit(events.StateChangeUnauthorized, id, route)
			return Decision{TransitionID: id, Outcome: OutcomeCancelled, Reason: ErrUnauthorized}
		}
		return Decision{TransitionID: id, Outcome: OutcomeResumed}

	case req.WaitForUser && state == StateUnknown:
		// Load the session but resume regardless of the result.
		if _, err := g.sessions.Fetch(ctx); err != nil {
			slog.Debug("waitForUser fetch failed, resuming anyway", "route", route.Name)
		}
		return Decision{TransitionID: id, Outcome: OutcomeResumed}

	case state == StateAuthenticated && len(req.Authorize) > 0:
		if !principal.HasAnyGroup(req.Authorize) {
			g.emit(events.StateChangeUnauthorized, id, route)
			return Decision{TransitionID: id, Outcome: OutcomeCancelled, Reason: ErrUnauthorized}
		}
		return Decision{TransitionID: id, Outcome: OutcomeResumed}

	case route.Name == g.loginRoute && g.loginRoute != "" && state != StateAnonymous:
		// Someone who is (or may be) logged in is heading to the login
		// form. Confirm session freshness, then send them onwards.
		if fetched, err := g.sessions.Fetch(ctx); err == nil && fetched != nil {
			return Decision{
				TransitionID: id,
				Outcome:      OutcomeRedirected,
				RedirectTo:   g.defaultPostLoginRoute,
			}
		}
		return Decision{TransitionID: id, Outcome: OutcomeResumed}

	default:
		return Decision{TransitionID: id, Outcome: OutcomeResumed}
	}
}

func (g *Guard) emit(t events.Type, id uuid.UUID, route Route) {
	if g.bus != nil {
		g.bus.Publish(t, TransitionEvent{TransitionID: id, Route: route.Name})
	}
}

// Transition is the adapter surface a router integration implements. Exactly
// one of Resume, Redirect or Cancel is invoked per transition.
type Transition interface {
	Route() Route
	Resume()
	Redirect(routeName string)
	Cancel(reason error)
}

// Run checks the transition's route and applies the decision through the
// adapter, guaranteeing a single terminal call even if Run itself is raced.
func (g *Guard) Run(ctx context.Context, tr Transition) Decision {
	once := &onceTransition{tr: tr}
	decision := g.Check(ctx, tr.Route())

	switch decision.Outcome {
	case OutcomeRedirected:
		once.Redirect(decision.RedirectTo)
	case OutcomeCancelled:
		once.Cancel(decision.Reason)
	default:
		once.Resume()
	}
	return decision
}

// onceTransition makes the terminal transition calls idempotent.
type onceTransition struct {
	once sync.Once
	tr   Transition
}

func (o *onceTransition) Resume()               { o.once.Do(o.tr.Resume) }
func (o *onceTransition) Redirect(route string) { o.once.Do(func() { o.tr.Redirect(route) }) }
func (o *onceTransition) Cancel(reason error)   { o.once.Do(func() { o.tr.Cancel(reason) }) }
