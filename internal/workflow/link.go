package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/identity"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

// linkParties names the invited side of a link: the player for coach
// invitations, the coach for player requests.
func linkParties(l *store.LinkRequest) authz.Parties {
	if l.Direction == store.CoachToPlayer {
		return authz.Parties{{Role: store.RolePlayer, ProfileID: l.PlayerID}}
	}
	return authz.Parties{{Role: store.RoleCoach, ProfileID: l.CoachID}}
}

// InvitePlayer lets the acting coach invite a player for sportID.
func (m *Manager) InvitePlayer(ctx context.Context, actor authz.Actor, playerID, sportID string) (*store.LinkRequest, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.InvitePlayer",
		trace.WithAttributes(
			attribute.String("player_id", playerID),
			attribute.String("sport_id", sportID),
		),
	)
	defer span.End()

	if err := requireRole(actor, store.RoleCoach); err != nil {
		return nil, err
	}
	return m.openLink(ctx, actor, actor.ProfileID, playerID, sportID, store.CoachToPlayer)
}

// RequestCoach lets the acting player ask a coach for sportID.
func (m *Manager) RequestCoach(ctx context.Context, actor authz.Actor, coachID, sportID string) (*store.LinkRequest, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RequestCoach",
		trace.WithAttributes(
			attribute.String("coach_id", coachID),
			attribute.String("sport_id", sportID),
		),
	)
	defer span.End()

	if err := requireRole(actor, store.RolePlayer); err != nil {
		return nil, err
	}
	return m.openLink(ctx, actor, coachID, actor.ProfileID, sportID, store.PlayerToCoach)
}

// openLink creates a pending link, or returns the pending one already open
// for the same coach, player and sport.
func (m *Manager) openLink(ctx context.Context, actor authz.Actor, coachID, playerID, sportID string, dir store.LinkDirection) (*store.LinkRequest, error) {
	var link *store.LinkRequest
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		coach, err := tx.Profiles.GetCoach(ctx, coachID)
		if err != nil {
			return fmt.Errorf("looking up coach: %w", err)
		}
		if coach.PrimarySportID != sportID {
			return ErrSportMismatch.With("coach_id", coachID).With("sport_id", sportID)
		}
		player, err := tx.Profiles.GetPlayer(ctx, playerID)
		if err != nil {
			return fmt.Errorf("looking up player: %w", err)
		}
		if _, err := identity.JoinSport(ctx, tx, playerID, sportID); err != nil {
			return err
		}

		existing, err := tx.Requests.FindPendingLink(ctx, coachID, playerID, sportID)
		if err == nil {
			link = existing
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("checking pending links: %w", err)
		}

		link = &store.LinkRequest{
			CoachID:   coachID,
			PlayerID:  playerID,
			SportID:   sportID,
			Direction: dir,
			Status:    store.StatusPending,
		}
		if err := tx.Requests.CreateLink(ctx, link); err != nil {
			return fmt.Errorf("creating link request: %w", err)
		}

		sport := sportName(ctx, tx, sportID)
		if dir == store.CoachToPlayer {
			out.add(player.UserID, "Coach invitation",
				fmt.Sprintf("Coach %s invited you to train %s.", coach.Code, sport), notify.TypeLink)
		} else {
			out.add(coach.UserID, "Coaching request",
				fmt.Sprintf("Player %s asked you to coach them in %s.", player.Code, sport), notify.TypeLink)
		}
		event.Record(ctx, tx.Events, m.logger, event.New(link.ID, event.LinkRequested, 1, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(link.Status),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening link: %w", err)
	}

	m.logger.InfoContext(ctx, "link requested",
		slog.String("link_id", link.ID),
		slog.String("direction", string(dir)),
	)
	return link, nil
}

// AcceptLink lets the invited party accept. The player's sport profile gets
// the coach and becomes active.
func (m *Manager) AcceptLink(ctx context.Context, actor authz.Actor, linkID string) (*store.LinkRequest, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.AcceptLink",
		trace.WithAttributes(attribute.String("link_id", linkID)),
	)
	defer span.End()

	var link *store.LinkRequest
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		var err error
		link, err = tx.Requests.GetLink(ctx, linkID)
		if err != nil {
			return fmt.Errorf("looking up link request: %w", err)
		}
		if err := checkDecision(actor, linkParties(link), link.Status); err != nil {
			return err
		}

		psp, err := identity.JoinSport(ctx, tx, link.PlayerID, link.SportID)
		if err != nil {
			return err
		}
		psp.CoachID = &link.CoachID
		psp.IsActive = true
		if err := tx.Memberships.Update(ctx, psp); err != nil {
			return fmt.Errorf("linking coach: %w", err)
		}

		now := m.clk.Now()
		link.Status = store.StatusAccepted
		link.DecidedBy = &actor.UserID
		link.DecidedAt = &now
		if err := tx.Requests.UpdateLink(ctx, link); err != nil {
			return fmt.Errorf("updating link request: %w", err)
		}

		m.notifyInitiator(ctx, tx, out, link, "Link accepted", "Your coaching link was accepted.")
		event.Record(ctx, tx.Events, m.logger, event.New(link.ID, event.LinkAccepted, 2, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(link.Status),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("accepting link: %w", err)
	}

	m.decided(ctx, "link", store.StatusAccepted)
	m.logger.InfoContext(ctx, "link accepted", slog.String("link_id", linkID))
	return link, nil
}

// RejectLink lets the invited party, or an admin, decline.
func (m *Manager) RejectLink(ctx context.Context, actor authz.Actor, linkID string) (*store.LinkRequest, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RejectLink",
		trace.WithAttributes(attribute.String("link_id", linkID)),
	)
	defer span.End()

	var link *store.LinkRequest
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		var err error
		link, err = tx.Requests.GetLink(ctx, linkID)
		if err != nil {
			return fmt.Errorf("looking up link request: %w", err)
		}
		if err := checkDecision(actor, linkParties(link), link.Status); err != nil {
			return err
		}

		now := m.clk.Now()
		link.Status = store.StatusRejected
		link.DecidedBy = &actor.UserID
		link.DecidedAt = &now
		if err := tx.Requests.UpdateLink(ctx, link); err != nil {
			return fmt.Errorf("updating link request: %w", err)
		}

		m.notifyInitiator(ctx, tx, out, link, "Link rejected", "Your coaching link was declined.")
		event.Record(ctx, tx.Events, m.logger, event.New(link.ID, event.LinkRejected, 2, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(link.Status),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rejecting link: %w", err)
	}

	m.decided(ctx, "link", store.StatusRejected)
	m.logger.InfoContext(ctx, "link rejected", slog.String("link_id", linkID))
	return link, nil
}

func (m *Manager) notifyInitiator(ctx context.Context, tx *store.Repositories, out *outbox, link *store.LinkRequest, title, body string) {
	if link.Direction == store.CoachToPlayer {
		out.add(coachUser(ctx, tx, link.CoachID), title, body, notify.TypeLink)
		return
	}
	out.add(playerUser(ctx, tx, link.PlayerID), title, body, notify.TypeLink)
}
