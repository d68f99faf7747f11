package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type requestRepo struct{ c *conn }

func (r *requestRepo) CreatePromotion(_ context.Context, p *store.PromotionRequest) error {
	defer r.c.lock()()
	if p.ID == "" {
		p.ID = newID()
	}
	p.RequestedAt = r.c.now()
	r.c.st().promotions[p.ID] = *p
	return nil
}

func (r *requestRepo) GetPromotion(_ context.Context, id string) (*store.PromotionRequest, error) {
	defer r.c.lock()()
	p, ok := r.c.st().promotions[id]
	if !ok {
		return nil, notFound("promotion request", id)
	}
	return &p, nil
}

func (r *requestRepo) UpdatePromotion(_ context.Context, p *store.PromotionRequest) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.promotions[p.ID]; !ok {
		return notFound("promotion request", p.ID)
	}
	st.promotions[p.ID] = *p
	return nil
}

func (r *requestRepo) ListPromotions(_ context.Context, status store.RequestStatus) ([]store.PromotionRequest, error) {
	defer r.c.lock()()
	var out []store.PromotionRequest
	for _, p := range r.c.st().promotions {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *requestRepo) CreateLink(_ context.Context, l *store.LinkRequest) error {
	defer r.c.lock()()
	if l.ID == "" {
		l.ID = newID()
	}
	l.CreatedAt = r.c.now()
	r.c.st().links[l.ID] = *l
	return nil
}

func (r *requestRepo) GetLink(_ context.Context, id string) (*store.LinkRequest, error) {
	defer r.c.lock()()
	l, ok := r.c.st().links[id]
	if !ok {
		return nil, notFound("link request", id)
	}
	return &l, nil
}

func (r *requestRepo) UpdateLink(_ context.Context, l *store.LinkRequest) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.links[l.ID]; !ok {
		return notFound("link request", l.ID)
	}
	st.links[l.ID] = *l
	return nil
}

func (r *requestRepo) FindPendingLink(_ context.Context, coachID, playerID, sportID string) (*store.LinkRequest, error) {
	defer r.c.lock()()
	for _, l := range r.c.st().links {
		if l.CoachID == coachID && l.PlayerID == playerID && l.SportID == sportID && l.Status == store.StatusPending {
			return &l, nil
		}
	}
	return nil, notFound("pending link request", coachID+"/"+playerID)
}

func (r *requestRepo) CreateProposal(_ context.Context, p *store.TeamProposal) error {
	defer r.c.lock()()
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = r.c.now()
	stored := *p
	stored.PlayerIDs = slices.Clone(p.PlayerIDs)
	r.c.st().proposals[p.ID] = stored
	return nil
}

func (r *requestRepo) GetProposal(_ context.Context, id string) (*store.TeamProposal, error) {
	defer r.c.lock()()
	p, ok := r.c.st().proposals[id]
	if !ok {
		return nil, notFound("team proposal", id)
	}
	p.PlayerIDs = slices.Clone(p.PlayerIDs)
	return &p, nil
}

func (r *requestRepo) UpdateProposal(_ context.Context, p *store.TeamProposal) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.proposals[p.ID]; !ok {
		return notFound("team proposal", p.ID)
	}
	stored := *p
	stored.PlayerIDs = slices.Clone(p.PlayerIDs)
	st.proposals[p.ID] = stored
	return nil
}

func (r *requestRepo) CreateAssignment(_ context.Context, a *store.TeamAssignmentRequest) error {
	defer r.c.lock()()
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = r.c.now()
	r.c.st().assignments[a.ID] = *a
	return nil
}

func (r *requestRepo) GetAssignment(_ context.Context, id string) (*store.TeamAssignmentRequest, error) {
	defer r.c.lock()()
	a, ok := r.c.st().assignments[id]
	if !ok {
		return nil, notFound("team assignment request", id)
	}
	return &a, nil
}

func (r *requestRepo) UpdateAssignment(_ context.Context, a *store.TeamAssignmentRequest) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.assignments[a.ID]; !ok {
		return notFound("team assignment request", a.ID)
	}
	st.assignments[a.ID] = *a
	return nil
}

func (r *requestRepo) FindPendingAssignment(_ context.Context, coachID, teamID string) (*store.TeamAssignmentRequest, error) {
	defer r.c.lock()()
	for _, a := range r.c.st().assignments {
		if a.CoachID == coachID && a.TeamID == teamID && a.Status == store.StatusPending {
			return &a, nil
		}
	}
	return nil, notFound("pending team assignment", coachID+"/"+teamID)
}
