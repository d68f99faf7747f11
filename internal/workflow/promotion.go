package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/identity"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var ErrCoachExists = domainerr.Precondition("coach_exists", "user already has a coach profile")

// RequestPromotion asks the managers of sportID to promote the acting player
// to coach.
func (m *Manager) RequestPromotion(ctx context.Context, actor authz.Actor, sportID, remarks string) (*store.PromotionRequest, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RequestPromotion",
		trace.WithAttributes(
			attribute.String("user_id", actor.UserID),
			attribute.String("sport_id", sportID),
		),
	)
	defer span.End()

	if err := requireRole(actor, store.RolePlayer); err != nil {
		return nil, err
	}

	req := &store.PromotionRequest{
		UserID:   actor.UserID,
		PlayerID: &actor.ProfileID,
		SportID:  sportID,
		Status:   store.StatusPending,
		Remarks:  remarks,
	}
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		sport, err := tx.Sports.GetByID(ctx, sportID)
		if err != nil {
			return fmt.Errorf("looking up sport: %w", err)
		}
		if err := ensureNoCoach(ctx, tx, actor.UserID); err != nil {
			return err
		}
		if err := tx.Requests.CreatePromotion(ctx, req); err != nil {
			return fmt.Errorf("creating promotion request: %w", err)
		}

		user, err := tx.Users.GetByID(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("looking up user: %w", err)
		}
		managers, err := tx.Profiles.ListManagersForSport(ctx, sportID)
		if err != nil {
			return fmt.Errorf("listing sport managers: %w", err)
		}
		for _, mgr := range managers {
			out.add(mgr.UserID, "Promotion request",
				fmt.Sprintf("%s asked to become a %s coach.", user.Username, sport.Name), notify.TypePromotion)
		}
		out.add(actor.UserID, "Promotion requested",
			fmt.Sprintf("Your request to coach %s is awaiting a manager.", sport.Name), notify.TypePromotion)

		event.Record(ctx, tx.Events, m.logger, event.New(req.ID, event.PromotionRequested, 1, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(req.Status),
			Remarks: remarks,
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("requesting promotion: %w", err)
	}

	m.logger.InfoContext(ctx, "promotion requested",
		slog.String("request_id", req.ID),
		slog.String("user_id", actor.UserID),
		slog.String("sport_id", sportID),
	)
	return req, nil
}

func ensureNoCoach(ctx context.Context, tx *store.Repositories, userID string) error {
	_, err := tx.Profiles.GetCoachByUser(ctx, userID)
	switch {
	case err == nil:
		return ErrCoachExists.With("user_id", userID)
	case isNotFound(err):
		return nil
	default:
		return fmt.Errorf("checking coach profile: %w", err)
	}
}

// ApprovePromotion turns the requesting player into a coach of the
// requested sport. The player profile and all of its sport profiles are
// deactivated in the same transaction.
func (m *Manager) ApprovePromotion(ctx context.Context, actor authz.Actor, requestID string) (*store.Coach, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ApprovePromotion",
		trace.WithAttributes(attribute.String("request_id", requestID)),
	)
	defer span.End()

	var coach *store.Coach
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		req, err := tx.Requests.GetPromotion(ctx, requestID)
		if err != nil {
			return fmt.Errorf("looking up promotion request: %w", err)
		}
		deciders, err := managerParties(ctx, tx, req.SportID)
		if err != nil {
			return err
		}
		if err := checkDecision(actor, deciders, req.Status); err != nil {
			return err
		}
		if err := ensureNoCoach(ctx, tx, req.UserID); err != nil {
			return err
		}

		user, err := tx.Users.GetByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("looking up user: %w", err)
		}
		var player *store.Player
		if req.PlayerID != nil {
			player, err = tx.Profiles.GetPlayer(ctx, *req.PlayerID)
		} else {
			player, err = tx.Profiles.GetPlayerByUser(ctx, req.UserID)
		}
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("looking up player: %w", err)
		}

		opts := identity.ProvisionOptions{PrimarySportID: req.SportID, ActorID: &actor.UserID}
		if player != nil {
			opts.FromPlayerID = &player.ID
		}
		profile, err := identity.ProvisionProfileForRole(ctx, tx, m.clk, user, store.RoleCoach, opts)
		if err != nil {
			return err
		}
		coach = profile.Coach

		if player != nil {
			if err := retirePlayer(ctx, tx, player, coach.ID); err != nil {
				return err
			}
		}
		if user.Role != store.RolePlayer && user.Role != store.RoleCoach {
			if err := identity.DeactivateProfile(ctx, tx.Profiles, user.ID, user.Role); err != nil {
				return err
			}
		}

		now := m.clk.Now()
		if err := tx.Users.AppendRoleHistory(ctx, &store.RoleHistory{
			UserID:       user.ID,
			PreviousRole: user.Role,
			NewRole:      store.RoleCoach,
			ChangedBy:    &actor.UserID,
			ChangedAt:    now,
		}); err != nil {
			return fmt.Errorf("writing role history: %w", err)
		}
		if err := tx.Users.UpdateRole(ctx, user.ID, store.RoleCoach); err != nil {
			return fmt.Errorf("updating role: %w", err)
		}

		req.Status = store.StatusApproved
		req.DecidedBy = &actor.UserID
		req.DecidedAt = &now
		if err := tx.Requests.UpdatePromotion(ctx, req); err != nil {
			return fmt.Errorf("updating promotion request: %w", err)
		}

		out.add(user.ID, "Promotion approved",
			fmt.Sprintf("You are now a %s coach. Your coach ID is %s.", sportName(ctx, tx, req.SportID), coach.Code),
			notify.TypePromotion)

		event.Record(ctx, tx.Events, m.logger,
			event.New(req.ID, event.PromotionApproved, 2, event.DecisionData{ActorID: actor.UserID, Status: string(req.Status)}),
			event.New(user.ID, event.RoleChanged, 0, event.RoleChangedData{
				UserID:       user.ID,
				PreviousRole: string(user.Role),
				NewRole:      string(store.RoleCoach),
				ChangedBy:    actor.UserID,
			}),
		)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approving promotion: %w", err)
	}

	m.decided(ctx, "promotion", store.StatusApproved)
	m.logger.InfoContext(ctx, "promotion approved",
		slog.String("request_id", requestID),
		slog.String("coach_id", coach.ID),
		slog.String("coach_code", coach.Code),
	)
	return coach, nil
}

// retirePlayer deactivates a promoted player and all of its sport profiles.
func retirePlayer(ctx context.Context, tx *store.Repositories, player *store.Player, coachID string) error {
	player.IsActive = false
	player.TeamID = nil
	player.PromotedToCoachID = &coachID
	if err := tx.Profiles.UpdatePlayer(ctx, player); err != nil {
		return fmt.Errorf("deactivating player: %w", err)
	}
	profiles, err := tx.Memberships.ListByPlayer(ctx, player.ID)
	if err != nil {
		return fmt.Errorf("listing sport profiles: %w", err)
	}
	for i := range profiles {
		if !profiles[i].IsActive {
			continue
		}
		profiles[i].IsActive = false
		if err := tx.Memberships.Update(ctx, &profiles[i]); err != nil {
			return fmt.Errorf("deactivating sport profile: %w", err)
		}
	}
	return nil
}

// RejectPromotion closes a promotion request without touching identity.
func (m *Manager) RejectPromotion(ctx context.Context, actor authz.Actor, requestID, remarks string) (*store.PromotionRequest, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RejectPromotion",
		trace.WithAttributes(attribute.String("request_id", requestID)),
	)
	defer span.End()

	var req *store.PromotionRequest
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		var err error
		req, err = tx.Requests.GetPromotion(ctx, requestID)
		if err != nil {
			return fmt.Errorf("looking up promotion request: %w", err)
		}
		deciders, err := managerParties(ctx, tx, req.SportID)
		if err != nil {
			return err
		}
		if err := checkDecision(actor, deciders, req.Status); err != nil {
			return err
		}

		now := m.clk.Now()
		req.Status = store.StatusRejected
		req.DecidedBy = &actor.UserID
		req.DecidedAt = &now
		if remarks != "" {
			req.Remarks = remarks
		}
		if err := tx.Requests.UpdatePromotion(ctx, req); err != nil {
			return fmt.Errorf("updating promotion request: %w", err)
		}

		out.add(req.UserID, "Promotion rejected", rejectionBody("Your promotion request was rejected.", remarks), notify.TypePromotion)
		event.Record(ctx, tx.Events, m.logger, event.New(req.ID, event.PromotionRejected, 2, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(req.Status),
			Remarks: remarks,
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rejecting promotion: %w", err)
	}

	m.decided(ctx, "promotion", store.StatusRejected)
	m.logger.InfoContext(ctx, "promotion rejected", slog.String("request_id", requestID))
	return req, nil
}

func rejectionBody(base, remarks string) string {
	if remarks == "" {
		return base
	}
	return base + " Remarks: " + remarks
}
