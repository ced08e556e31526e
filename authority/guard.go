package authority

import (
	"github.com/hupe1980/agentsquad/logging"
)

// RoleHolder exposes the role an actor is bound to. The role must be
// immutable for the actor's lifetime; the guard reads it at call time,
// not at guard construction time.
type RoleHolder interface {
	Role() string
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	// Logger receives authority check outcomes (defaults to NoOpLogger).
	Logger logging.Logger
}

// Guard wraps privileged operations with a role-map backed permission
// check. A Guard introduces no asynchrony of its own: whether the wrapped
// operation blocks or suspends, the check happens synchronously immediately
// before the operation body.
type Guard struct {
	roles  *RoleMap
	holder RoleHolder
	logger logging.Logger
}

// NewGuard binds a guard to a role map and a role holder.
func NewGuard(roles *RoleMap, holder RoleHolder, optFns ...func(o *GuardOptions)) *Guard {
	opts := GuardOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Guard{roles: roles, holder: holder, logger: opts.Logger}
}

// Check resolves the holder's role and verifies it grants the required
// authority. On failure it returns UnauthorizedError and the caller must
// not execute the protected body.
func (g *Guard) Check(required Authority) error {
	role := g.holder.Role()
	granted := g.roles.Has(role, required)
	if sl, ok := g.logger.(*logging.SquadLogger); ok {
		sl.LogAuthorityCheck(role, required.String(), granted)
	} else if !granted {
		g.logger.Warn("authority check failed", "role", role, "authority", required.String())
	}
	if !granted {
		return &UnauthorizedError{Role: role, Required: required}
	}
	return nil
}

// Guarded executes op only if the guard's holder has the required
// authority, returning the operation result unchanged. If the check fails
// the operation body never runs and the zero value is returned alongside
// UnauthorizedError.
func Guarded[T any](g *Guard, required Authority, op func() (T, error)) (T, error) {
	if err := g.Check(required); err != nil {
		var zero T
		return zero, err
	}
	return op()
}

// Do is the result-less form of Guarded.
func Do(g *Guard, required Authority, op func() error) error {
	if err := g.Check(required); err != nil {
		return err
	}
	return op()
}
