package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jensholdgaard/clubhub/internal/store"
)

func newID() string { return uuid.NewString() }

type userRepo struct{ c *conn }

const userColumns = `id, username, email, discord_id, role, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, u *store.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	now := r.c.clk.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	return r.c.insertOnce(ctx, "user "+u.Username,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING RETURNING id`,
		u.ID, u.Username, u.Email, u.DiscordID, u.Role, u.CreatedAt, u.UpdatedAt)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	if err := r.c.get(ctx, &u, "user", id, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByDiscordID(ctx context.Context, discordID string) (*store.User, error) {
	var u store.User
	if err := r.c.get(ctx, &u, "user with discord id", discordID,
		`SELECT `+userColumns+` FROM users WHERE discord_id = $1`, discordID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) UpdateRole(ctx context.Context, id string, role store.Role) error {
	res, err := r.c.q.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, role, r.c.clk.Now())
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	return affected(res, "user", id)
}

func (r *userRepo) AppendRoleHistory(ctx context.Context, h *store.RoleHistory) error {
	if h.ID == "" {
		h.ID = newID()
	}
	return r.c.insert(ctx, "role history",
		`INSERT INTO role_history (id, user_id, previous_role, new_role, changed_by, changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.UserID, h.PreviousRole, h.NewRole, h.ChangedBy, h.ChangedAt)
}

func (r *userRepo) ListRoleHistory(ctx context.Context, userID string) ([]store.RoleHistory, error) {
	var out []store.RoleHistory
	err := r.c.list(ctx, &out, "role history",
		`SELECT id, user_id, previous_role, new_role, changed_by, changed_at
		 FROM role_history WHERE user_id = $1 ORDER BY seq`, userID)
	return out, err
}

type profileRepo struct{ c *conn }

const (
	playerColumns  = `id, user_id, code, is_active, team_id, promoted_to_coach_id, created_at`
	coachColumns   = `id, user_id, code, primary_sport_id, from_player_id, is_active, created_at`
	managerColumns = `id, user_id, is_active, created_at`
)

func (r *profileRepo) CreatePlayer(ctx context.Context, p *store.Player) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = r.c.clk.Now()
	return r.c.insertOnce(ctx, "player for user "+p.UserID,
		`INSERT INTO players (`+playerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING RETURNING id`,
		p.ID, p.UserID, p.Code, p.IsActive, p.TeamID, p.PromotedToCoachID, p.CreatedAt)
}

func (r *profileRepo) GetPlayer(ctx context.Context, id string) (*store.Player, error) {
	var p store.Player
	if err := r.c.get(ctx, &p, "player", id,
		r.c.locking(`SELECT `+playerColumns+` FROM players WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepo) GetPlayerByUser(ctx context.Context, userID string) (*store.Player, error) {
	var p store.Player
	if err := r.c.get(ctx, &p, "player for user", userID,
		r.c.locking(`SELECT `+playerColumns+` FROM players WHERE user_id = $1`), userID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepo) GetPlayerByCode(ctx context.Context, code string) (*store.Player, error) {
	var p store.Player
	if err := r.c.get(ctx, &p, "player code", code,
		`SELECT `+playerColumns+` FROM players WHERE code = $1`, code); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepo) UpdatePlayer(ctx context.Context, p *store.Player) error {
	return r.c.update(ctx, "player", p.ID,
		`UPDATE players SET is_active = :is_active, team_id = :team_id,
		 promoted_to_coach_id = :promoted_to_coach_id WHERE id = :id`, p)
}

func (r *profileRepo) CreateCoach(ctx context.Context, c *store.Coach) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = r.c.clk.Now()
	return r.c.insertOnce(ctx, "coach for user "+c.UserID,
		`INSERT INTO coaches (`+coachColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING RETURNING id`,
		c.ID, c.UserID, c.Code, c.PrimarySportID, c.FromPlayerID, c.IsActive, c.CreatedAt)
}

func (r *profileRepo) GetCoach(ctx context.Context, id string) (*store.Coach, error) {
	var c store.Coach
	if err := r.c.get(ctx, &c, "coach", id,
		`SELECT `+coachColumns+` FROM coaches WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *profileRepo) GetCoachByUser(ctx context.Context, userID string) (*store.Coach, error) {
	var c store.Coach
	if err := r.c.get(ctx, &c, "coach for user", userID,
		r.c.locking(`SELECT `+coachColumns+` FROM coaches WHERE user_id = $1`), userID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *profileRepo) UpdateCoach(ctx context.Context, c *store.Coach) error {
	return r.c.update(ctx, "coach", c.ID,
		`UPDATE coaches SET primary_sport_id = :primary_sport_id, from_player_id = :from_player_id,
		 is_active = :is_active WHERE id = :id`, c)
}

func (r *profileRepo) CreateManager(ctx context.Context, m *store.Manager) error {
	if m.ID == "" {
		m.ID = newID()
	}
	m.CreatedAt = r.c.clk.Now()
	return r.c.insertOnce(ctx, "manager for user "+m.UserID,
		`INSERT INTO managers (`+managerColumns+`) VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING RETURNING id`,
		m.ID, m.UserID, m.IsActive, m.CreatedAt)
}

func (r *profileRepo) GetManager(ctx context.Context, id string) (*store.Manager, error) {
	var m store.Manager
	if err := r.c.get(ctx, &m, "manager", id,
		`SELECT `+managerColumns+` FROM managers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *profileRepo) GetManagerByUser(ctx context.Context, userID string) (*store.Manager, error) {
	var m store.Manager
	if err := r.c.get(ctx, &m, "manager for user", userID,
		r.c.locking(`SELECT `+managerColumns+` FROM managers WHERE user_id = $1`), userID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *profileRepo) UpdateManager(ctx context.Context, m *store.Manager) error {
	return r.c.update(ctx, "manager", m.ID, `UPDATE managers SET is_active = :is_active WHERE id = :id`, m)
}

func (r *profileRepo) CreateAdmin(ctx context.Context, a *store.Admin) error {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = r.c.clk.Now()
	return r.c.insertOnce(ctx, "admin for user "+a.UserID,
		`INSERT INTO admins (id, user_id, is_active, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING RETURNING id`,
		a.ID, a.UserID, a.IsActive, a.CreatedAt)
}

func (r *profileRepo) GetAdminByUser(ctx context.Context, userID string) (*store.Admin, error) {
	var a store.Admin
	if err := r.c.get(ctx, &a, "admin for user", userID,
		r.c.locking(`SELECT id, user_id, is_active, created_at FROM admins WHERE user_id = $1`), userID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *profileRepo) UpdateAdmin(ctx context.Context, a *store.Admin) error {
	return r.c.update(ctx, "admin", a.ID, `UPDATE admins SET is_active = :is_active WHERE id = :id`, a)
}

func (r *profileRepo) AssignSport(ctx context.Context, ms *store.ManagerSport) error {
	if ms.ID == "" {
		ms.ID = newID()
	}
	ms.CreatedAt = r.c.clk.Now()
	return r.c.insertOnce(ctx, "manager sport assignment",
		`INSERT INTO manager_sports (id, manager_id, sport_id, assigned_by, created_at)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING RETURNING id`,
		ms.ID, ms.ManagerID, ms.SportID, ms.AssignedBy, ms.CreatedAt)
}

func (r *profileRepo) RemoveSport(ctx context.Context, managerID, sportID string) error {
	res, err := r.c.q.ExecContext(ctx,
		`DELETE FROM manager_sports WHERE manager_id = $1 AND sport_id = $2`, managerID, sportID)
	if err != nil {
		return fmt.Errorf("removing manager sport: %w", err)
	}
	return affected(res, "manager sport assignment", managerID+"/"+sportID)
}

func (r *profileRepo) IsAssigned(ctx context.Context, managerID, sportID string) (bool, error) {
	var ok bool
	err := r.c.scalar(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM manager_sports WHERE manager_id = $1 AND sport_id = $2)`,
		managerID, sportID)
	if err != nil {
		return false, fmt.Errorf("checking manager sport: %w", err)
	}
	return ok, nil
}

func (r *profileRepo) ListManagersForSport(ctx context.Context, sportID string) ([]store.Manager, error) {
	var out []store.Manager
	err := r.c.list(ctx, &out, "managers for sport",
		`SELECT m.id, m.user_id, m.is_active, m.created_at
		 FROM managers m JOIN manager_sports ms ON ms.manager_id = m.id
		 WHERE ms.sport_id = $1 AND m.is_active ORDER BY m.id`, sportID)
	return out, err
}

// LockSequence takes a transaction-scoped advisory lock keyed on prefix.
func (r *profileRepo) LockSequence(ctx context.Context, prefix string) error {
	if _, err := r.c.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		return fmt.Errorf("locking code sequence %s: %w", prefix, err)
	}
	return nil
}

func (r *profileRepo) MaxCode(ctx context.Context, prefix string) (string, error) {
	var code string
	err := r.c.scalar(ctx, &code,
		`SELECT COALESCE(MAX(code COLLATE "C"), '') FROM (
		     SELECT code FROM players WHERE starts_with(code, $1)
		     UNION ALL
		     SELECT code FROM coaches WHERE starts_with(code, $1)
		 ) codes`, prefix)
	if err != nil {
		return "", fmt.Errorf("reading max code: %w", err)
	}
	return code, nil
}

type sportRepo struct{ c *conn }

func (r *sportRepo) GetByID(ctx context.Context, id string) (*store.Sport, error) {
	var s store.Sport
	if err := r.c.get(ctx, &s, "sport", id, `SELECT id, name, type FROM sports WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sportRepo) GetByName(ctx context.Context, name string) (*store.Sport, error) {
	var s store.Sport
	if err := r.c.get(ctx, &s, "sport", name,
		`SELECT id, name, type FROM sports WHERE lower(name) = lower($1)`, name); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sportRepo) List(ctx context.Context) ([]store.Sport, error) {
	var out []store.Sport
	err := r.c.list(ctx, &out, "sports", `SELECT id, name, type FROM sports ORDER BY name COLLATE "C"`)
	return out, err
}
