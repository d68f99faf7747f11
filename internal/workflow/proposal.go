package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/roster"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrTeamNameRequired   = domainerr.Precondition("team_name_required", "a team name is required")
	ErrManagerNotAssigned = domainerr.Precondition("manager_not_assigned", "manager is not assigned to this sport")
	ErrPlayerNotEligible  = domainerr.Precondition("player_not_eligible", "player is not an active, unteamed player of this coach")
)

// ProposalInput is a coach's proposed team.
type ProposalInput struct {
	ManagerID string
	SportID   string
	Name      string
	PlayerIDs []string
}

func proposalParties(p *store.TeamProposal) authz.Parties {
	return authz.Parties{{Role: store.RoleManager, ProfileID: p.ManagerID}}
}

// CreateProposal submits a team for a manager's approval. Every player must
// have an active, unteamed sport profile under the acting coach; one bad
// player fails the whole proposal.
func (m *Manager) CreateProposal(ctx context.Context, actor authz.Actor, in ProposalInput) (*store.TeamProposal, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.CreateProposal",
		trace.WithAttributes(
			attribute.String("manager_id", in.ManagerID),
			attribute.String("sport_id", in.SportID),
			attribute.Int("players", len(in.PlayerIDs)),
		),
	)
	defer span.End()

	if err := requireRole(actor, store.RoleCoach); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrTeamNameRequired
	}

	var proposal *store.TeamProposal
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		coach, err := tx.Profiles.GetCoach(ctx, actor.ProfileID)
		if err != nil {
			return fmt.Errorf("looking up coach: %w", err)
		}
		if coach.PrimarySportID != in.SportID {
			return ErrSportMismatch.With("coach_id", coach.ID).With("sport_id", in.SportID)
		}
		manager, err := tx.Profiles.GetManager(ctx, in.ManagerID)
		if err != nil {
			return fmt.Errorf("looking up manager: %w", err)
		}
		assigned, err := tx.Profiles.IsAssigned(ctx, manager.ID, in.SportID)
		if err != nil {
			return fmt.Errorf("checking manager sport: %w", err)
		}
		if !assigned {
			return ErrManagerNotAssigned.With("manager_id", manager.ID)
		}

		players := dedupe(in.PlayerIDs)
		for _, playerID := range players {
			if err := checkProposable(ctx, tx, coach.ID, playerID, in.SportID); err != nil {
				return err
			}
		}

		proposal = &store.TeamProposal{
			CoachID:   coach.ID,
			ManagerID: manager.ID,
			SportID:   in.SportID,
			Name:      in.Name,
			PlayerIDs: players,
			Status:    store.StatusPending,
		}
		if err := tx.Requests.CreateProposal(ctx, proposal); err != nil {
			return fmt.Errorf("creating proposal: %w", err)
		}

		out.add(manager.UserID, "Team proposal",
			fmt.Sprintf("Coach %s proposed team %q with %d players.", coach.Code, in.Name, len(players)), notify.TypeProposal)
		event.Record(ctx, tx.Events, m.logger, event.New(proposal.ID, event.ProposalCreated, 1, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(proposal.Status),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating proposal: %w", err)
	}

	m.logger.InfoContext(ctx, "team proposed",
		slog.String("proposal_id", proposal.ID),
		slog.String("name", proposal.Name),
	)
	return proposal, nil
}

func checkProposable(ctx context.Context, tx *store.Repositories, coachID, playerID, sportID string) error {
	psp, err := tx.Memberships.GetByPlayerSport(ctx, playerID, sportID)
	if isNotFound(err) {
		return ErrPlayerNotEligible.With("player_id", playerID)
	}
	if err != nil {
		return fmt.Errorf("looking up sport profile: %w", err)
	}
	if !psp.IsActive || psp.CoachID == nil || *psp.CoachID != coachID {
		return ErrPlayerNotEligible.With("player_id", playerID)
	}
	if psp.TeamID != nil {
		name := *psp.TeamID
		if t, err := tx.Teams.Get(ctx, *psp.TeamID); err == nil {
			name = t.Name
		}
		return domainerr.Precondition(roster.ErrAlreadyInTeam.Code, "player %s is already in team %q", playerID, name).
			With("team_id", *psp.TeamID)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ApproveProposal creates the proposed team and places every player on it.
// Players are re-validated at approval time; if any is on another team by
// now the whole approval fails naming that team.
func (m *Manager) ApproveProposal(ctx context.Context, actor authz.Actor, proposalID string) (*store.Team, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ApproveProposal",
		trace.WithAttributes(attribute.String("proposal_id", proposalID)),
	)
	defer span.End()

	var team *store.Team
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		p, err := tx.Requests.GetProposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("looking up proposal: %w", err)
		}
		if err := checkDecision(actor, proposalParties(p), p.Status); err != nil {
			return err
		}

		team = &store.Team{Name: p.Name, SportID: p.SportID, ManagerID: &p.ManagerID, CoachID: &p.CoachID}
		if err := tx.Teams.Create(ctx, team); err != nil {
			return fmt.Errorf("creating team: %w", err)
		}
		for _, playerID := range p.PlayerIDs {
			psp, err := tx.Memberships.GetByPlayerSport(ctx, playerID, p.SportID)
			if err != nil {
				return fmt.Errorf("looking up sport profile of %s: %w", playerID, err)
			}
			if err := roster.Assign(ctx, tx, psp, team); err != nil {
				return err
			}
			out.add(playerUser(ctx, tx, playerID), "Added to team",
				fmt.Sprintf("You have been added to %s.", team.Name), notify.TypeProposal)
		}

		now := m.clk.Now()
		p.Status = store.StatusApproved
		p.CreatedTeamID = &team.ID
		p.DecidedBy = &actor.UserID
		p.DecidedAt = &now
		if err := tx.Requests.UpdateProposal(ctx, p); err != nil {
			return fmt.Errorf("updating proposal: %w", err)
		}

		out.add(coachUser(ctx, tx, p.CoachID), "Team proposal approved",
			fmt.Sprintf("Team %s has been created.", team.Name), notify.TypeProposal)
		event.Record(ctx, tx.Events, m.logger, event.New(p.ID, event.ProposalApproved, 2, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(p.Status),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approving proposal: %w", err)
	}

	m.decided(ctx, "proposal", store.StatusApproved)
	m.logger.InfoContext(ctx, "team proposal approved",
		slog.String("proposal_id", proposalID),
		slog.String("team_id", team.ID),
	)
	return team, nil
}

// RejectProposal declines a proposal. Only its manager or an admin may.
func (m *Manager) RejectProposal(ctx context.Context, actor authz.Actor, proposalID, remarks string) (*store.TeamProposal, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RejectProposal",
		trace.WithAttributes(attribute.String("proposal_id", proposalID)),
	)
	defer span.End()

	var p *store.TeamProposal
	err := m.transact(ctx, func(ctx context.Context, tx *store.Repositories, out *outbox) error {
		var err error
		p, err = tx.Requests.GetProposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("looking up proposal: %w", err)
		}
		if err := checkDecision(actor, proposalParties(p), p.Status); err != nil {
			return err
		}

		now := m.clk.Now()
		p.Status = store.StatusRejected
		p.Remarks = remarks
		p.DecidedBy = &actor.UserID
		p.DecidedAt = &now
		if err := tx.Requests.UpdateProposal(ctx, p); err != nil {
			return fmt.Errorf("updating proposal: %w", err)
		}

		out.add(coachUser(ctx, tx, p.CoachID), "Team proposal rejected",
			rejectionBody(fmt.Sprintf("Your proposal for %s was rejected.", p.Name), remarks), notify.TypeProposal)
		event.Record(ctx, tx.Events, m.logger, event.New(p.ID, event.ProposalRejected, 2, event.DecisionData{
			ActorID: actor.UserID,
			Status:  string(p.Status),
			Remarks: remarks,
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rejecting proposal: %w", err)
	}

	m.decided(ctx, "proposal", store.StatusRejected)
	m.logger.InfoContext(ctx, "team proposal rejected", slog.String("proposal_id", proposalID))
	return p, nil
}
