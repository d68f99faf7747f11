package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type userRepo struct{ c *conn }

func (r *userRepo) Create(_ context.Context, u *store.User) error {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.users {
		if existing.Username == u.Username {
			return duplicate("username " + u.Username)
		}
		if u.DiscordID != nil && existing.DiscordID != nil && *existing.DiscordID == *u.DiscordID {
			return duplicate("discord id " + *u.DiscordID)
		}
	}
	if u.ID == "" {
		u.ID = newID()
	}
	now := r.c.now()
	u.CreatedAt, u.UpdatedAt = now, now
	st.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*store.User, error) {
	defer r.c.lock()()
	u, ok := r.c.st().users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *userRepo) GetByDiscordID(_ context.Context, discordID string) (*store.User, error) {
	defer r.c.lock()()
	for _, u := range r.c.st().users {
		if u.DiscordID != nil && *u.DiscordID == discordID {
			return &u, nil
		}
	}
	return nil, notFound("user with discord id", discordID)
}

func (r *userRepo) UpdateRole(_ context.Context, id string, role store.Role) error {
	defer r.c.lock()()
	st := r.c.st()
	u, ok := st.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.Role = role
	u.UpdatedAt = r.c.now()
	st.users[id] = u
	return nil
}

func (r *userRepo) AppendRoleHistory(_ context.Context, h *store.RoleHistory) error {
	defer r.c.lock()()
	st := r.c.st()
	if h.ID == "" {
		h.ID = newID()
	}
	st.roleHistory = append(st.roleHistory, *h)
	return nil
}

func (r *userRepo) ListRoleHistory(_ context.Context, userID string) ([]store.RoleHistory, error) {
	defer r.c.lock()()
	var out []store.RoleHistory
	for _, h := range r.c.st().roleHistory {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

type profileRepo struct{ c *conn }

func (r *profileRepo) CreatePlayer(_ context.Context, p *store.Player) error {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.players {
		if existing.UserID == p.UserID {
			return duplicate("player for user " + p.UserID)
		}
		if existing.Code == p.Code {
			return duplicate("player code " + p.Code)
		}
	}
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = r.c.now()
	st.players[p.ID] = *p
	return nil
}

func (r *profileRepo) GetPlayer(_ context.Context, id string) (*store.Player, error) {
	defer r.c.lock()()
	p, ok := r.c.st().players[id]
	if !ok {
		return nil, notFound("player", id)
	}
	return &p, nil
}

func (r *profileRepo) GetPlayerByUser(_ context.Context, userID string) (*store.Player, error) {
	defer r.c.lock()()
	for _, p := range r.c.st().players {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, notFound("player for user", userID)
}

func (r *profileRepo) GetPlayerByCode(_ context.Context, code string) (*store.Player, error) {
	defer r.c.lock()()
	for _, p := range r.c.st().players {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, notFound("player code", code)
}

func (r *profileRepo) UpdatePlayer(_ context.Context, p *store.Player) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.players[p.ID]; !ok {
		return notFound("player", p.ID)
	}
	st.players[p.ID] = *p
	return nil
}

func (r *profileRepo) CreateCoach(_ context.Context, c *store.Coach) error {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.coaches {
		if existing.UserID == c.UserID {
			return duplicate("coach for user " + c.UserID)
		}
		if existing.Code == c.Code {
			return duplicate("coach code " + c.Code)
		}
	}
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = r.c.now()
	st.coaches[c.ID] = *c
	return nil
}

func (r *profileRepo) GetCoach(_ context.Context, id string) (*store.Coach, error) {
	defer r.c.lock()()
	c, ok := r.c.st().coaches[id]
	if !ok {
		return nil, notFound("coach", id)
	}
	return &c, nil
}

func (r *profileRepo) GetCoachByUser(_ context.Context, userID string) (*store.Coach, error) {
	defer r.c.lock()()
	for _, c := range r.c.st().coaches {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, notFound("coach for user", userID)
}

func (r *profileRepo) UpdateCoach(_ context.Context, c *store.Coach) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.coaches[c.ID]; !ok {
		return notFound("coach", c.ID)
	}
	st.coaches[c.ID] = *c
	return nil
}

func (r *profileRepo) CreateManager(_ context.Context, m *store.Manager) error {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.managers {
		if existing.UserID == m.UserID {
			return duplicate("manager for user " + m.UserID)
		}
	}
	if m.ID == "" {
		m.ID = newID()
	}
	m.CreatedAt = r.c.now()
	st.managers[m.ID] = *m
	return nil
}

func (r *profileRepo) GetManager(_ context.Context, id string) (*store.Manager, error) {
	defer r.c.lock()()
	m, ok := r.c.st().managers[id]
	if !ok {
		return nil, notFound("manager", id)
	}
	return &m, nil
}

func (r *profileRepo) GetManagerByUser(_ context.Context, userID string) (*store.Manager, error) {
	defer r.c.lock()()
	for _, m := range r.c.st().managers {
		if m.UserID == userID {
			return &m, nil
		}
	}
	return nil, notFound("manager for user", userID)
}

func (r *profileRepo) UpdateManager(_ context.Context, m *store.Manager) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.managers[m.ID]; !ok {
		return notFound("manager", m.ID)
	}
	st.managers[m.ID] = *m
	return nil
}

func (r *profileRepo) CreateAdmin(_ context.Context, a *store.Admin) error {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.admins {
		if existing.UserID == a.UserID {
			return duplicate("admin for user " + a.UserID)
		}
	}
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = r.c.now()
	st.admins[a.ID] = *a
	return nil
}

func (r *profileRepo) GetAdminByUser(_ context.Context, userID string) (*store.Admin, error) {
	defer r.c.lock()()
	for _, a := range r.c.st().admins {
		if a.UserID == userID {
			return &a, nil
		}
	}
	return nil, notFound("admin for user", userID)
}

func (r *profileRepo) UpdateAdmin(_ context.Context, a *store.Admin) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.admins[a.ID]; !ok {
		return notFound("admin", a.ID)
	}
	st.admins[a.ID] = *a
	return nil
}

func (r *profileRepo) AssignSport(_ context.Context, ms *store.ManagerSport) error {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.managerSports {
		if existing.ManagerID == ms.ManagerID && existing.SportID == ms.SportID {
			return duplicate("manager sport assignment")
		}
	}
	if ms.ID == "" {
		ms.ID = newID()
	}
	ms.CreatedAt = r.c.now()
	st.managerSports[ms.ID] = *ms
	return nil
}

func (r *profileRepo) RemoveSport(_ context.Context, managerID, sportID string) error {
	defer r.c.lock()()
	st := r.c.st()
	for id, ms := range st.managerSports {
		if ms.ManagerID == managerID && ms.SportID == sportID {
			delete(st.managerSports, id)
			return nil
		}
	}
	return notFound("manager sport assignment", managerID+"/"+sportID)
}

func (r *profileRepo) IsAssigned(_ context.Context, managerID, sportID string) (bool, error) {
	defer r.c.lock()()
	for _, ms := range r.c.st().managerSports {
		if ms.ManagerID == managerID && ms.SportID == sportID {
			return true, nil
		}
	}
	return false, nil
}

func (r *profileRepo) ListManagersForSport(_ context.Context, sportID string) ([]store.Manager, error) {
	defer r.c.lock()()
	st := r.c.st()
	var out []store.Manager
	for _, ms := range st.managerSports {
		if ms.SportID != sportID {
			continue
		}
		if m, ok := st.managers[ms.ManagerID]; ok && m.IsActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LockSequence is a no-op: transactions already hold the store mutex.
func (r *profileRepo) LockSequence(context.Context, string) error { return nil }

func (r *profileRepo) MaxCode(_ context.Context, prefix string) (string, error) {
	defer r.c.lock()()
	st := r.c.st()
	var best string
	consider := func(code string) {
		if strings.HasPrefix(code, prefix) && code > best {
			best = code
		}
	}
	for _, p := range st.players {
		consider(p.Code)
	}
	for _, c := range st.coaches {
		consider(c.Code)
	}
	return best, nil
}

type sportRepo struct{ c *conn }

func (r *sportRepo) GetByID(_ context.Context, id string) (*store.Sport, error) {
	defer r.c.lock()()
	s, ok := r.c.st().sports[id]
	if !ok {
		return nil, notFound("sport", id)
	}
	return &s, nil
}

func (r *sportRepo) GetByName(_ context.Context, name string) (*store.Sport, error) {
	defer r.c.lock()()
	for _, s := range r.c.st().sports {
		if strings.EqualFold(s.Name, name) {
			return &s, nil
		}
	}
	return nil, notFound("sport", name)
}

func (r *sportRepo) List(_ context.Context) ([]store.Sport, error) {
	defer r.c.lock()()
	out := make([]store.Sport, 0, len(r.c.st().sports))
	for _, s := range r.c.st().sports {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
