package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clubtest"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/roster"
	"github.com/jensholdgaard/clubhub/internal/store"
	"github.com/jensholdgaard/clubhub/internal/workflow"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (s *recordingSink) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) to(userID string) []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Message
	for _, m := range s.sent {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

func newManager(t *testing.T, c *clubtest.Club) (*workflow.Manager, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	m, err := workflow.NewManager(c.Store, notify.NewNotifier(sink, slog.Default()),
		slog.Default(), noop.NewTracerProvider(), metricnoop.NewMeterProvider(), c.Clock)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, sink
}

// coached gives a registered player an active, unteamed profile under coach.
func coached(t *testing.T, c *clubtest.Club, playerID, sportID, coachID string) {
	t.Helper()
	psp := c.Membership(t, playerID, sportID)
	psp.CoachID = &coachID
	psp.IsActive = true
	if err := c.Store.Memberships.Update(context.Background(), psp); err != nil {
		t.Fatalf("linking %s to coach: %v", playerID, err)
	}
}

func TestPromotion_ApproveOnce(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	mgr, _ := c.Manager(t, "mia")
	pat, player := c.Player(t, "pat", cricket.ID)
	m, sink := newManager(t, c)

	req, err := m.RequestPromotion(ctx, pat, cricket.ID, "ready to coach")
	if err != nil {
		t.Fatalf("RequestPromotion() error = %v", err)
	}
	if req.Status != store.StatusPending {
		t.Errorf("Status = %q, want pending", req.Status)
	}
	if got := sink.to(mgr.UserID); len(got) != 1 {
		t.Errorf("manager notifications = %d, want 1", len(got))
	}

	coach, err := m.ApprovePromotion(ctx, mgr, req.ID)
	if err != nil {
		t.Fatalf("ApprovePromotion() error = %v", err)
	}
	if coach.Code != "C2500001" {
		t.Errorf("Code = %q, want C2500001", coach.Code)
	}
	if coach.PrimarySportID != cricket.ID {
		t.Errorf("PrimarySportID = %q, want %q", coach.PrimarySportID, cricket.ID)
	}
	if coach.FromPlayerID == nil || *coach.FromPlayerID != player.ID {
		t.Errorf("FromPlayerID = %v, want %s", coach.FromPlayerID, player.ID)
	}

	_, err = m.ApprovePromotion(ctx, mgr, req.ID)
	if !errors.Is(err, workflow.ErrNotPending) {
		t.Fatalf("second ApprovePromotion() error = %v, want ErrNotPending", err)
	}
	if domainerr.KindOf(err) != domainerr.KindStateConflict {
		t.Errorf("KindOf() = %v, want conflict", domainerr.KindOf(err))
	}

	history, err := c.Store.Users.ListRoleHistory(ctx, pat.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].NewRole != store.RoleCoach {
		t.Errorf("role history = %+v, want one change to coach", history)
	}
	u, err := c.Store.Users.GetByID(ctx, pat.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != store.RoleCoach {
		t.Errorf("Role = %q, want coach", u.Role)
	}
	p, err := c.Store.Profiles.GetPlayer(ctx, player.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.IsActive {
		t.Error("player profile still active after promotion")
	}
	if p.PromotedToCoachID == nil || *p.PromotedToCoachID != coach.ID {
		t.Errorf("PromotedToCoachID = %v, want %s", p.PromotedToCoachID, coach.ID)
	}
	if psp := c.Membership(t, player.ID, cricket.ID); psp.IsActive {
		t.Error("sport profile still active after promotion")
	}

	var approved bool
	for _, msg := range sink.to(pat.UserID) {
		if msg.Title == "Promotion approved" && strings.Contains(msg.Body, coach.Code) {
			approved = true
		}
	}
	if !approved {
		t.Error("requester was not told the new coach code")
	}
	rows, err := c.Store.Notifications.ListByUser(ctx, pat.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("recorded notifications = %d, want 2", len(rows))
	}
}

func TestPromotion_RequestRules(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	coachActor, _ := c.Coach(t, "cat", cricket.ID)
	pat, _ := c.Player(t, "pat", cricket.ID)
	m, _ := newManager(t, c)

	tests := []struct {
		name  string
		actor authz.Actor
		sport string
		want  error
	}{
		{name: "coach cannot request", actor: coachActor, sport: cricket.ID, want: workflow.ErrRoleRequired},
		{name: "unknown sport", actor: pat, sport: "nope", want: store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.RequestPromotion(ctx, tt.actor, tt.sport, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("RequestPromotion() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPromotion_Decisions(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	mgr, mgrProfile := c.Manager(t, "mia")
	outsider, _ := c.Player(t, "olly", cricket.ID)
	m, sink := newManager(t, c)

	t.Run("non decider", func(t *testing.T) {
		pat, _ := c.Player(t, "pat", cricket.ID)
		req, err := m.RequestPromotion(ctx, pat, cricket.ID, "")
		if err != nil {
			t.Fatal(err)
		}
		_, err = m.ApprovePromotion(ctx, outsider, req.ID)
		if !errors.Is(err, workflow.ErrNotDecider) {
			t.Errorf("ApprovePromotion() error = %v, want ErrNotDecider", err)
		}
	})

	t.Run("unassigned manager", func(t *testing.T) {
		sam, _ := c.Player(t, "sam", cricket.ID)
		req, err := m.RequestPromotion(ctx, sam, cricket.ID, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := c.Identity.RemoveManagerSport(ctx, c.Admin, mgrProfile.ID, cricket.ID); err != nil {
			t.Fatal(err)
		}
		defer func() {
			if err := c.Identity.AssignManagerSport(ctx, c.Admin, mgrProfile.ID, cricket.ID); err != nil {
				t.Fatal(err)
			}
		}()
		_, err = m.ApprovePromotion(ctx, mgr, req.ID)
		if !errors.Is(err, workflow.ErrNotDecider) {
			t.Errorf("ApprovePromotion() error = %v, want ErrNotDecider", err)
		}
	})

	t.Run("reject with remarks", func(t *testing.T) {
		kim, player := c.Player(t, "kim", cricket.ID)
		req, err := m.RequestPromotion(ctx, kim, cricket.ID, "")
		if err != nil {
			t.Fatal(err)
		}
		got, err := m.RejectPromotion(ctx, c.Admin, req.ID, "not yet")
		if err != nil {
			t.Fatalf("RejectPromotion() error = %v", err)
		}
		if got.Status != store.StatusRejected || got.DecidedBy == nil || *got.DecidedBy != c.Admin.UserID {
			t.Errorf("request = %+v, want rejected by admin", got)
		}
		p, err := c.Store.Profiles.GetPlayer(ctx, player.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !p.IsActive {
			t.Error("rejection deactivated the player")
		}
		msgs := sink.to(kim.UserID)
		if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1].Body, "not yet") {
			t.Errorf("rejection notice = %+v, want remarks", msgs)
		}
		if _, err := m.ApprovePromotion(ctx, mgr, req.ID); !errors.Is(err, workflow.ErrNotPending) {
			t.Errorf("ApprovePromotion() after reject error = %v, want ErrNotPending", err)
		}
	})
}

func TestLink_InviteAndAccept(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	coachActor, coach := c.Coach(t, "cat", cricket.ID)
	pat, player := c.Player(t, "pat")
	m, sink := newManager(t, c)

	link, err := m.InvitePlayer(ctx, coachActor, player.ID, cricket.ID)
	if err != nil {
		t.Fatalf("InvitePlayer() error = %v", err)
	}
	again, err := m.InvitePlayer(ctx, coachActor, player.ID, cricket.ID)
	if err != nil {
		t.Fatalf("second InvitePlayer() error = %v", err)
	}
	if again.ID != link.ID {
		t.Errorf("duplicate invite ID = %s, want existing %s", again.ID, link.ID)
	}
	if got := sink.to(pat.UserID); len(got) != 1 {
		t.Errorf("player notifications = %d, want 1", len(got))
	}

	if _, err := m.AcceptLink(ctx, coachActor, link.ID); !errors.Is(err, workflow.ErrNotDecider) {
		t.Errorf("AcceptLink() by inviter error = %v, want ErrNotDecider", err)
	}
	accepted, err := m.AcceptLink(ctx, pat, link.ID)
	if err != nil {
		t.Fatalf("AcceptLink() error = %v", err)
	}
	if accepted.Status != store.StatusAccepted {
		t.Errorf("Status = %q, want accepted", accepted.Status)
	}
	psp := c.Membership(t, player.ID, cricket.ID)
	if psp.CoachID == nil || *psp.CoachID != coach.ID || !psp.IsActive {
		t.Errorf("sport profile = %+v, want active under %s", psp, coach.ID)
	}
	if got := sink.to(coachActor.UserID); len(got) != 1 || got[0].Title != "Link accepted" {
		t.Errorf("coach notifications = %+v, want one acceptance", got)
	}
	if _, err := m.RejectLink(ctx, pat, link.ID); !errors.Is(err, workflow.ErrNotPending) {
		t.Errorf("RejectLink() after accept error = %v, want ErrNotPending", err)
	}
}

func TestLink_Rules(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	football := c.Sport(t, "Football")
	coachActor, coach := c.Coach(t, "cat", cricket.ID)
	pat, player := c.Player(t, "pat", cricket.ID)
	m, _ := newManager(t, c)

	t.Run("sport mismatch", func(t *testing.T) {
		_, err := m.RequestCoach(ctx, pat, coach.ID, football.ID)
		if !errors.Is(err, workflow.ErrSportMismatch) {
			t.Errorf("RequestCoach() error = %v, want ErrSportMismatch", err)
		}
		if _, err := c.Store.Memberships.GetByPlayerSport(ctx, player.ID, football.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("football profile lookup error = %v, want ErrNotFound", err)
		}
	})

	t.Run("admin rejects player request", func(t *testing.T) {
		link, err := m.RequestCoach(ctx, pat, coach.ID, cricket.ID)
		if err != nil {
			t.Fatalf("RequestCoach() error = %v", err)
		}
		if _, err := m.RejectLink(ctx, pat, link.ID); !errors.Is(err, workflow.ErrNotDecider) {
			t.Errorf("RejectLink() by requester error = %v, want ErrNotDecider", err)
		}
		got, err := m.RejectLink(ctx, c.Admin, link.ID)
		if err != nil {
			t.Fatalf("RejectLink() error = %v", err)
		}
		if got.Status != store.StatusRejected {
			t.Errorf("Status = %q, want rejected", got.Status)
		}
		if psp := c.Membership(t, player.ID, cricket.ID); psp.CoachID != nil {
			t.Errorf("CoachID = %v after rejection, want nil", *psp.CoachID)
		}
	})

	t.Run("coach accepts player request", func(t *testing.T) {
		link, err := m.RequestCoach(ctx, pat, coach.ID, cricket.ID)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.AcceptLink(ctx, coachActor, link.ID); err != nil {
			t.Errorf("AcceptLink() error = %v", err)
		}
	})
}

// Scenario: a coach whose primary sport is Cricket proposes a Football team.
func TestCreateProposal_SportMismatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	football := c.Sport(t, "Football")
	coachActor, coach := c.Coach(t, "cat", cricket.ID)
	mgr, mgrProfile := c.Manager(t, "mia")
	_, player := c.Player(t, "pat", football.ID)
	coached(t, c, player.ID, football.ID, coach.ID)
	m, sink := newManager(t, c)

	_, err := m.CreateProposal(ctx, coachActor, workflow.ProposalInput{
		ManagerID: mgrProfile.ID,
		SportID:   football.ID,
		Name:      "United",
		PlayerIDs: []string{player.ID},
	})
	if !errors.Is(err, workflow.ErrSportMismatch) {
		t.Fatalf("CreateProposal() error = %v, want ErrSportMismatch", err)
	}
	if domainerr.KindOf(err) != domainerr.KindPrecondition {
		t.Errorf("KindOf() = %v, want precondition", domainerr.KindOf(err))
	}

	created, err := c.Store.Events.LoadByType(ctx, event.ProposalCreated)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Errorf("proposal events = %d, want 0", len(created))
	}
	if got := sink.to(mgr.UserID); len(got) != 0 {
		t.Errorf("manager notifications = %d, want 0", len(got))
	}
	if psp := c.Membership(t, player.ID, football.ID); psp.TeamID != nil {
		t.Errorf("TeamID = %v, want nil", *psp.TeamID)
	}
}

func TestCreateProposal_Validation(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	coachActor, coach := c.Coach(t, "cat", cricket.ID)
	_, mgrProfile := c.Manager(t, "mia")
	_, ready := c.Player(t, "ready", cricket.ID)
	coached(t, c, ready.ID, cricket.ID, coach.ID)
	_, stranger := c.Player(t, "stranger", cricket.ID)
	_, teamed := c.Player(t, "teamed", cricket.ID)
	lions := c.Team(t, "Lions", cricket.ID, mgrProfile.ID, coach.ID)
	c.Enroll(t, teamed.ID, lions)
	m, _ := newManager(t, c)

	tests := []struct {
		name    string
		in      workflow.ProposalInput
		wantErr error
		wantMsg string
	}{
		{
			name:    "blank name",
			in:      workflow.ProposalInput{ManagerID: mgrProfile.ID, SportID: cricket.ID, Name: " "},
			wantErr: workflow.ErrTeamNameRequired,
		},
		{
			name:    "player of another coach",
			in:      workflow.ProposalInput{ManagerID: mgrProfile.ID, SportID: cricket.ID, Name: "A", PlayerIDs: []string{ready.ID, stranger.ID}},
			wantErr: workflow.ErrPlayerNotEligible,
		},
		{
			name:    "player already teamed",
			in:      workflow.ProposalInput{ManagerID: mgrProfile.ID, SportID: cricket.ID, Name: "B", PlayerIDs: []string{teamed.ID}},
			wantErr: roster.ErrAlreadyInTeam,
			wantMsg: "Lions",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateProposal(ctx, coachActor, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateProposal() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}

	p, err := m.CreateProposal(ctx, coachActor, workflow.ProposalInput{
		ManagerID: mgrProfile.ID,
		SportID:   cricket.ID,
		Name:      "Hawks",
		PlayerIDs: []string{ready.ID, ready.ID, ""},
	})
	if err != nil {
		t.Fatalf("CreateProposal() error = %v", err)
	}
	if len(p.PlayerIDs) != 1 {
		t.Errorf("PlayerIDs = %v, want deduplicated to one", p.PlayerIDs)
	}
}

// Scenario: two pending proposals share a player; approving both leaves the
// player on exactly one team.
func TestApproveProposal_SharedPlayer(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	coachActor, coach := c.Coach(t, "cat", cricket.ID)
	mgr, mgrProfile := c.Manager(t, "mia")
	pat, shared := c.Player(t, "pat", cricket.ID)
	_, other := c.Player(t, "olly", cricket.ID)
	coached(t, c, shared.ID, cricket.ID, coach.ID)
	coached(t, c, other.ID, cricket.ID, coach.ID)
	m, sink := newManager(t, c)

	var proposals []*store.TeamProposal
	for _, in := range []workflow.ProposalInput{
		{ManagerID: mgrProfile.ID, SportID: cricket.ID, Name: "Lions", PlayerIDs: []string{shared.ID, other.ID}},
		{ManagerID: mgrProfile.ID, SportID: cricket.ID, Name: "Tigers", PlayerIDs: []string{shared.ID}},
	} {
		p, err := m.CreateProposal(ctx, coachActor, in)
		if err != nil {
			t.Fatalf("CreateProposal(%s) error = %v", in.Name, err)
		}
		proposals = append(proposals, p)
	}

	type result struct {
		team *store.Team
		err  error
	}
	results := make([]result, len(proposals))
	var wg sync.WaitGroup
	for i, p := range proposals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			team, err := m.ApproveProposal(ctx, mgr, p.ID)
			results[i] = result{team: team, err: err}
		}()
	}
	wg.Wait()

	var winner *store.Team
	var failure error
	for _, r := range results {
		switch {
		case r.err == nil:
			if winner != nil {
				t.Fatal("both approvals succeeded")
			}
			winner = r.team
		default:
			failure = r.err
		}
	}
	if winner == nil {
		t.Fatalf("no approval succeeded: %v", failure)
	}
	if !errors.Is(failure, roster.ErrAlreadyInTeam) {
		t.Fatalf("losing approval error = %v, want ErrAlreadyInTeam", failure)
	}
	if !strings.Contains(failure.Error(), winner.Name) {
		t.Errorf("error %q should name team %q", failure, winner.Name)
	}

	psp := c.Membership(t, shared.ID, cricket.ID)
	if psp.TeamID == nil || *psp.TeamID != winner.ID {
		t.Errorf("TeamID = %v, want %s", psp.TeamID, winner.ID)
	}
	teamed, err := c.Store.Memberships.ListTeamed(ctx, shared.ID, cricket.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(teamed) != 1 {
		t.Errorf("teamed profiles = %d, want 1", len(teamed))
	}

	var added int
	for _, msg := range sink.to(pat.UserID) {
		if msg.Title == "Added to team" {
			added++
		}
	}
	if added != 1 {
		t.Errorf("player told about %d teams, want 1", added)
	}
}

func TestRejectProposal(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	coachActor, coach := c.Coach(t, "cat", cricket.ID)
	_, mgrProfile := c.Manager(t, "mia")
	otherMgr, _ := c.Manager(t, "max")
	_, player := c.Player(t, "pat", cricket.ID)
	coached(t, c, player.ID, cricket.ID, coach.ID)
	m, _ := newManager(t, c)

	p, err := m.CreateProposal(ctx, coachActor, workflow.ProposalInput{
		ManagerID: mgrProfile.ID, SportID: cricket.ID, Name: "Lions", PlayerIDs: []string{player.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.RejectProposal(ctx, otherMgr, p.ID, ""); !errors.Is(err, workflow.ErrNotDecider) {
		t.Errorf("RejectProposal() by other manager error = %v, want ErrNotDecider", err)
	}
	got, err := m.RejectProposal(ctx, c.Admin, p.ID, "too small")
	if err != nil {
		t.Fatalf("RejectProposal() error = %v", err)
	}
	if got.Status != store.StatusRejected || got.Remarks != "too small" {
		t.Errorf("proposal = %+v, want rejected with remarks", got)
	}
	if psp := c.Membership(t, player.ID, cricket.ID); psp.TeamID != nil {
		t.Errorf("TeamID = %v, want nil", *psp.TeamID)
	}
}

func TestAssignment(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)
	football := c.Sport(t, "Football")
	coachActor, coach := c.Coach(t, "cat", cricket.ID)
	_, footballCoach := c.Coach(t, "fred", football.ID)
	mgr, mgrProfile := c.Manager(t, "mia")
	otherMgr, _ := c.Manager(t, "max")
	m, sink := newManager(t, c)

	t.Run("admin auto accept", func(t *testing.T) {
		team := c.Team(t, "Lions", cricket.ID, mgrProfile.ID, "")
		req, err := m.CreateAssignment(ctx, c.Admin, coach.ID, team.ID, true)
		if err != nil {
			t.Fatalf("CreateAssignment() error = %v", err)
		}
		if req.Status != store.StatusAccepted || req.DecidedAt == nil {
			t.Errorf("request = %+v, want accepted and stamped", req)
		}
		got, err := c.Store.Teams.Get(ctx, team.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.CoachID == nil || *got.CoachID != coach.ID {
			t.Errorf("CoachID = %v, want %s", got.CoachID, coach.ID)
		}
	})

	t.Run("manager request accepted by coach", func(t *testing.T) {
		team := c.Team(t, "Tigers", cricket.ID, mgrProfile.ID, "")
		req, err := m.CreateAssignment(ctx, mgr, coach.ID, team.ID, true)
		if err != nil {
			t.Fatalf("CreateAssignment() error = %v", err)
		}
		if req.Status != store.StatusPending {
			t.Fatalf("Status = %q, want pending for a manager", req.Status)
		}
		again, err := m.CreateAssignment(ctx, mgr, coach.ID, team.ID, false)
		if err != nil {
			t.Fatal(err)
		}
		if again.ID != req.ID {
			t.Errorf("duplicate request ID = %s, want %s", again.ID, req.ID)
		}

		if _, err := m.AcceptAssignment(ctx, mgr, req.ID); !errors.Is(err, workflow.ErrNotDecider) {
			t.Errorf("AcceptAssignment() by manager error = %v, want ErrNotDecider", err)
		}
		if _, err := m.AcceptAssignment(ctx, coachActor, req.ID); err != nil {
			t.Fatalf("AcceptAssignment() error = %v", err)
		}
		got, err := c.Store.Teams.Get(ctx, team.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.CoachID == nil || *got.CoachID != coach.ID {
			t.Errorf("CoachID = %v, want %s", got.CoachID, coach.ID)
		}
		var told bool
		for _, msg := range sink.to(mgr.UserID) {
			if msg.Title == "Team assignment accepted" {
				told = true
			}
		}
		if !told {
			t.Error("manager was not notified of acceptance")
		}
		if _, err := m.RejectAssignment(ctx, coachActor, req.ID, ""); !errors.Is(err, workflow.ErrNotPending) {
			t.Errorf("RejectAssignment() after accept error = %v, want ErrNotPending", err)
		}
	})

	t.Run("rules", func(t *testing.T) {
		team := c.Team(t, "Hawks", cricket.ID, mgrProfile.ID, "")
		tests := []struct {
			name  string
			actor authz.Actor
			coach string
			want  error
		}{
			{name: "other manager", actor: otherMgr, coach: coach.ID, want: workflow.ErrNotTeamManager},
			{name: "coach of another sport", actor: mgr, coach: footballCoach.ID, want: workflow.ErrSportMismatch},
			{name: "coach cannot assign", actor: coachActor, coach: coach.ID, want: workflow.ErrRoleRequired},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := m.CreateAssignment(ctx, tt.actor, tt.coach, team.ID, false)
				if !errors.Is(err, tt.want) {
					t.Errorf("CreateAssignment() error = %v, want %v", err, tt.want)
				}
			})
		}
	})
}
