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
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var ErrNotTeamManager = domainerr.Forbidden("not_team_manager", "only the team's manager may assign its coach")

func assignmentParties(r *store.TeamAssignmentRequest) authz.Parties {
	return authz.Parties{{Role: store.RoleCoach, ProfileID: r.CoachID}}
}

// CreateAssignment asks a coach to take over a team. With autoAccept an
// admin assigns the coach directly and records the request as accepted.
func (m *Manager) CreateAssignment(ctx context.Context, actor authz.Actor, coachID, teamID string, autoAccept bool) (*store.TeamAssignmentRequest, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.CreateAssignment",
		trace.WithAttributes(
			attribute.String("coach_id", coachID),
			attribute.String("team_id", teamID),
			attribute.Bool("auto_accept", autoAccept),
		),
	)
	defer span.End()

	if !actor.IsAdmin() {
		if err := requireRole(actor, store.RoleManager); err != nil {
			return nil, err
		}
	}

	var req *store.TeamAssignmentRequest
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		team, err := tx.Teams.Get(ctx, teamID)
		if err != nil {
			return fmt.Errorf("looking up team: %w", err)
		}
		owns := team.ManagerID != nil && *team.ManagerID == actor.ProfileID && actor.Role == store.RoleManager
		if !actor.IsAdmin() && !owns {
			return ErrNotTeamManager.With("team_id", teamID)
		}
		coach, err := tx.Profiles.GetCoach(ctx, coachID)
		if err != nil {
			return fmt.Errorf("looking up coach: %w", err)
		}
		if coach.PrimarySportID != team.SportID {
			return ErrSportMismatch.With("coach_id", coachID).With("team_id", teamID)
		}

		managerID := actor.ProfileID
		if team.ManagerID != nil {
			managerID = *team.ManagerID
		}

		if autoAccept && actor.IsAdmin() {
			if err := tx.Teams.SetCoach(ctx, team.ID, coach.ID); err != nil {
				return fmt.Errorf("assigning coach: %w", err)
			}
			now := m.clk.Now()
			req = &store.TeamAssignmentRequest{
				ManagerID: managerID,
				CoachID:   coach.ID,
				TeamID:    team.ID,
				Status:    store.StatusAccepted,
				Remarks:   "assigned by admin",
				DecidedBy: &actor.UserID,
				DecidedAt: &now,
			}
			if err := tx.Requests.CreateAssignment(ctx, req); err != nil {
				return fmt.Errorf("recording assignment: %w", err)
			}
			out.add(coach.UserID, "Assigned to team",
				fmt.Sprintf("An admin assigned you to coach %s.", team.Name), notify.TypeAssignment)
			event.Record(ctx, tx.Events, m.logger, event.New(req.ID, event.AssignmentAccepted, 1, event.DecisionData{
				ActorID: actor.UserID,
				Status:  string(req.Status),
				Remarks: req.Remarks,
			}))
			return nil
		}

		existing, err := tx.Requests.FindPendingAssignment(ctx, coach.ID, team.ID)
		if err == nil {
			req = existing
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("checking pending assignments: %w", err)
		}

		req = &store.TeamAssignmentRequest{
			ManagerID: managerID,
			CoachID:   coach.ID,
			TeamID:    team.ID,
			Status:    store.StatusPending,
		}
		if err := tx.Requests.CreateAssignment(ctx, req); err != nil {
			return fmt.Errorf("creating assignment: %w", err)
		}
		out.add(coach.UserID, "Team assignment",
			fmt.Sprintf("You have been asked to coach %s.", team.Name), notify.TypeAssignment)
		event.Record(ctx, tx.Events, m.logger, event.New(req.ID, event.AssignmentCreated, 1, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(req.Status),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating assignment: %w", err)
	}

	if req.Status == store.StatusAccepted {
		m.decided(ctx, "assignment", store.StatusAccepted)
	}
	m.logger.InfoContext(ctx, "team assignment created",
		slog.String("request_id", req.ID),
		slog.String("status", string(req.Status)),
	)
	return req, nil
}

// AcceptAssignment makes the named coach the team's coach.
func (m *Manager) AcceptAssignment(ctx context.Context, actor authz.Actor, requestID string) (*store.TeamAssignmentRequest, error) {
	return m.decideAssignment(ctx, "Manager.AcceptAssignment", actor, requestID, store.StatusAccepted, "")
}

// RejectAssignment declines a team assignment.
func (m *Manager) RejectAssignment(ctx context.Context, actor authz.Actor, requestID, remarks string) (*store.TeamAssignmentRequest, error) {
	return m.decideAssignment(ctx, "Manager.RejectAssignment", actor, requestID, store.StatusRejected, remarks)
}

func (m *Manager) decideAssignment(ctx context.Context, spanName string, actor authz.Actor, requestID string, status store.RequestStatus, remarks string) (*store.TeamAssignmentRequest, error) {
	ctx, span := m.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("request_id", requestID)),
	)
	defer span.End()

	var req *store.TeamAssignmentRequest
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		var err error
		req, err = tx.Requests.GetAssignment(ctx, requestID)
		if err != nil {
			return fmt.Errorf("looking up assignment: %w", err)
		}
		if err := checkDecision(actor, assignmentParties(req), req.Status); err != nil {
			return err
		}
		team, err := tx.Teams.Get(ctx, req.TeamID)
		if err != nil {
			return fmt.Errorf("looking up team: %w", err)
		}

		typ := event.AssignmentRejected
		title := "Team assignment declined"
		if status == store.StatusAccepted {
			if err := tx.Teams.SetCoach(ctx, team.ID, req.CoachID); err != nil {
				return fmt.Errorf("assigning coach: %w", err)
			}
			typ = event.AssignmentAccepted
			title = "Team assignment accepted"
		}

		now := m.clk.Now()
		req.Status = status
		req.Remarks = remarks
		req.DecidedBy = &actor.UserID
		req.DecidedAt = &now
		if err := tx.Requests.UpdateAssignment(ctx, req); err != nil {
			return fmt.Errorf("updating assignment: %w", err)
		}

		out.add(managerUser(ctx, tx, req.ManagerID), title,
			rejectionBody(fmt.Sprintf("Coach assignment for %s is %s.", team.Name, status), remarks), notify.TypeAssignment)
		event.Record(ctx, tx.Events, m.logger, event.New(req.ID, typ, 2, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(status),
			Remarks: remarks,
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deciding assignment: %w", err)
	}

	m.decided(ctx, "assignment", status)
	m.logger.InfoContext(ctx, "team assignment decided",
		slog.String("request_id", requestID),
		slog.String("status", string(status)),
	)
	return req, nil
}
