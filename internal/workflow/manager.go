// Package workflow runs the four request state machines of the club:
// player promotion, coach/player links, team proposals and coach
// assignments. Every transition runs in one store transaction; notifications
// are recorded in that transaction and delivered after it commits.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrNotPending    = domainerr.Conflict("request_not_pending", "request has already been decided")
	ErrNotDecider    = domainerr.Forbidden("not_decider", "actor may not decide on this request")
	ErrSportMismatch = domainerr.Precondition("sport_mismatch", "coach's primary sport does not match")
	ErrRoleRequired  = domainerr.Forbidden("role_required", "actor does not hold the required role")
)

// Manager drives the workflow state machines.
type Manager struct {
	store     *store.Store
	notifier  *notify.Notifier
	logger    *slog.Logger
	tracer    trace.Tracer
	decisions metric.Int64Counter
	clk       clock.Clock
}

// NewManager returns a new workflow Manager.
func NewManager(st *store.Store, notifier *notify.Notifier, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock) (*Manager, error) {
	decisions, err := mp.Meter("github.com/jensholdgaard/clubhub/internal/workflow").Int64Counter(
		"clubhub.workflow.decisions",
		metric.WithDescription("Workflow requests decided, by workflow and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decisions counter: %w", err)
	}
	return &Manager{
		store:     st,
		notifier:  notifier,
		logger:    logger,
		tracer:    tp.Tracer("github.com/jensholdgaard/clubhub/internal/workflow"),
		decisions: decisions,
		clk:       clk,
	}, nil
}

type outbox struct {
	msgs []notify.Message
}

func (o *outbox) add(userID, title, body, typ string) {
	if userID == "" {
		return
	}
	o.msgs = append(o.msgs, notify.Message{UserID: userID, Title: title, Body: body, Type: typ})
}

// transact runs fn in a transaction, records its notifications in the same
// transaction and delivers them once it has committed.
func (m *Manager) transact(ctx context.Context, fn func(ctx context.Context, tx *store.Repositories, out *outbox) error) error {
	var out outbox
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		out = outbox{}
		if err := fn(ctx, tx, &out); err != nil {
			return err
		}
		m.notifier.Record(ctx, tx.Notifications, out.msgs...)
		return nil
	})
	if err != nil {
		return err
	}
	m.notifier.Deliver(ctx, out.msgs...)
	return nil
}

func (m *Manager) decided(ctx context.Context, workflow string, status store.RequestStatus) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("outcome", string(status)),
	))
}

// checkDecision rejects actors that may not decide and requests that are no
// longer pending.
func checkDecision(actor authz.Actor, d authz.Decidable, current store.RequestStatus) error {
	if !authz.CanDecide(actor, d) {
		return ErrNotDecider
	}
	if current.IsTerminal() {
		return ErrNotPending.With("status", string(current))
	}
	return nil
}

func requireRole(actor authz.Actor, role store.Role) error {
	if actor.Role != role || actor.ProfileID == "" {
		return ErrRoleRequired.With("role", string(role))
	}
	return nil
}

func managerParties(ctx context.Context, tx *store.Repositories, sportID string) (authz.Parties, error) {
	managers, err := tx.Profiles.ListManagersForSport(ctx, sportID)
	if err != nil {
		return nil, fmt.Errorf("listing sport managers: %w", err)
	}
	parties := make(authz.Parties, 0, len(managers))
	for _, mgr := range managers {
		parties = append(parties, authz.Party{Role: store.RoleManager, ProfileID: mgr.ID})
	}
	return parties, nil
}

func coachUser(ctx context.Context, tx *store.Repositories, coachID string) string {
	c, err := tx.Profiles.GetCoach(ctx, coachID)
	if err != nil {
		return ""
	}
	return c.UserID
}

func playerUser(ctx context.Context, tx *store.Repositories, playerID string) string {
	p, err := tx.Profiles.GetPlayer(ctx, playerID)
	if err != nil {
		return ""
	}
	return p.UserID
}

func managerUser(ctx context.Context, tx *store.Repositories, managerID string) string {
	mgr, err := tx.Profiles.GetManager(ctx, managerID)
	if err != nil {
		return ""
	}
	return mgr.UserID
}

func sportName(ctx context.Context, tx *store.Repositories, sportID string) string {
	sp, err := tx.Sports.GetByID(ctx, sportID)
	if err != nil {
		return sportID
	}
	return sp.Name
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
