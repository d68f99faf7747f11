package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type requestRepo struct{ c *conn }

const (
	promotionColumns  = `id, user_id, player_id, sport_id, status, remarks, decided_by, decided_at, requested_at`
	linkColumns       = `id, coach_id, player_id, sport_id, direction, status, decided_by, decided_at, created_at`
	proposalColumns   = `id, coach_id, manager_id, sport_id, name, player_ids, status, remarks, created_team_id, decided_by, decided_at, created_at`
	assignmentColumns = `id, manager_id, coach_id, team_id, status, remarks, decided_by, decided_at, created_at`
)

func (r *requestRepo) CreatePromotion(ctx context.Context, p *store.PromotionRequest) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.RequestedAt = r.c.clk.Now()
	return r.c.insert(ctx, "promotion request",
		`INSERT INTO promotion_requests (`+promotionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.PlayerID, p.SportID, p.Status, p.Remarks, p.DecidedBy, p.DecidedAt, p.RequestedAt)
}

func (r *requestRepo) GetPromotion(ctx context.Context, id string) (*store.PromotionRequest, error) {
	var p store.PromotionRequest
	if err := r.c.get(ctx, &p, "promotion request", id,
		r.c.locking(`SELECT `+promotionColumns+` FROM promotion_requests WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *requestRepo) UpdatePromotion(ctx context.Context, p *store.PromotionRequest) error {
	return r.c.update(ctx, "promotion request", p.ID,
		`UPDATE promotion_requests SET player_id = :player_id, status = :status, remarks = :remarks,
		 decided_by = :decided_by, decided_at = :decided_at WHERE id = :id`, p)
}

func (r *requestRepo) ListPromotions(ctx context.Context, status store.RequestStatus) ([]store.PromotionRequest, error) {
	var out []store.PromotionRequest
	err := r.c.list(ctx, &out, "promotion requests",
		`SELECT `+promotionColumns+` FROM promotion_requests WHERE status = $1 ORDER BY requested_at, id`, status)
	return out, err
}

func (r *requestRepo) CreateLink(ctx context.Context, l *store.LinkRequest) error {
	if l.ID == "" {
		l.ID = newID()
	}
	l.CreatedAt = r.c.clk.Now()
	return r.c.insert(ctx, "link request",
		`INSERT INTO link_requests (`+linkColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.CoachID, l.PlayerID, l.SportID, l.Direction, l.Status, l.DecidedBy, l.DecidedAt, l.CreatedAt)
}

func (r *requestRepo) GetLink(ctx context.Context, id string) (*store.LinkRequest, error) {
	var l store.LinkRequest
	if err := r.c.get(ctx, &l, "link request", id,
		r.c.locking(`SELECT `+linkColumns+` FROM link_requests WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *requestRepo) UpdateLink(ctx context.Context, l *store.LinkRequest) error {
	return r.c.update(ctx, "link request", l.ID,
		`UPDATE link_requests SET status = :status, decided_by = :decided_by, decided_at = :decided_at
		 WHERE id = :id`, l)
}

func (r *requestRepo) FindPendingLink(ctx context.Context, coachID, playerID, sportID string) (*store.LinkRequest, error) {
	var l store.LinkRequest
	if err := r.c.get(ctx, &l, "pending link request", coachID+"/"+playerID,
		`SELECT `+linkColumns+` FROM link_requests
		 WHERE coach_id = $1 AND player_id = $2 AND sport_id = $3 AND status = 'pending'
		 ORDER BY created_at LIMIT 1`, coachID, playerID, sportID); err != nil {
		return nil, err
	}
	return &l, nil
}

// proposalRow carries the player list through a Postgres text array.
type proposalRow struct {
	store.TeamProposal
	Players pq.StringArray `db:"player_ids"`
}

func (r *requestRepo) CreateProposal(ctx context.Context, p *store.TeamProposal) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = r.c.clk.Now()
	return r.c.insert(ctx, "team proposal",
		`INSERT INTO team_proposals (`+proposalColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.CoachID, p.ManagerID, p.SportID, p.Name, pq.Array(p.PlayerIDs), p.Status, p.Remarks,
		p.CreatedTeamID, p.DecidedBy, p.DecidedAt, p.CreatedAt)
}

func (r *requestRepo) GetProposal(ctx context.Context, id string) (*store.TeamProposal, error) {
	var row proposalRow
	if err := r.c.get(ctx, &row, "team proposal", id,
		r.c.locking(`SELECT `+proposalColumns+` FROM team_proposals WHERE id = $1`), id); err != nil {
		return nil, err
	}
	p := row.TeamProposal
	p.PlayerIDs = []string(row.Players)
	return &p, nil
}

func (r *requestRepo) UpdateProposal(ctx context.Context, p *store.TeamProposal) error {
	return r.c.update(ctx, "team proposal", p.ID,
		`UPDATE team_proposals SET name = :name, player_ids = :player_ids, status = :status, remarks = :remarks,
		 created_team_id = :created_team_id, decided_by = :decided_by, decided_at = :decided_at
		 WHERE id = :id`, proposalRow{TeamProposal: *p, Players: p.PlayerIDs})
}

func (r *requestRepo) CreateAssignment(ctx context.Context, a *store.TeamAssignmentRequest) error {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = r.c.clk.Now()
	return r.c.insert(ctx, "team assignment request",
		`INSERT INTO team_assignment_requests (`+assignmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ManagerID, a.CoachID, a.TeamID, a.Status, a.Remarks, a.DecidedBy, a.DecidedAt, a.CreatedAt)
}

func (r *requestRepo) GetAssignment(ctx context.Context, id string) (*store.TeamAssignmentRequest, error) {
	var a store.TeamAssignmentRequest
	if err := r.c.get(ctx, &a, "team assignment request", id,
		r.c.locking(`SELECT `+assignmentColumns+` FROM team_assignment_requests WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *requestRepo) UpdateAssignment(ctx context.Context, a *store.TeamAssignmentRequest) error {
	return r.c.update(ctx, "team assignment request", a.ID,
		`UPDATE team_assignment_requests SET status = :status, remarks = :remarks, decided_by = :decided_by,
		 decided_at = :decided_at WHERE id = :id`, a)
}

func (r *requestRepo) FindPendingAssignment(ctx context.Context, coachID, teamID string) (*store.TeamAssignmentRequest, error) {
	var a store.TeamAssignmentRequest
	if err := r.c.get(ctx, &a, "pending team assignment", coachID+"/"+teamID,
		`SELECT `+assignmentColumns+` FROM team_assignment_requests
		 WHERE coach_id = $1 AND team_id = $2 AND status = 'pending'
		 ORDER BY created_at LIMIT 1`, coachID, teamID); err != nil {
		return nil, err
	}
	return &a, nil
}
