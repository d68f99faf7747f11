package cricket_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clubtest"
	"github.com/jensholdgaard/clubhub/internal/cricket"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

type published struct {
	room string
	typ  string
	card *cricket.Scorecard
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(room, typ string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	card, _ := payload.(*cricket.Scorecard)
	p.msgs = append(p.msgs, published{room: room, typ: typ, card: card})
}

func (p *recordingPublisher) last() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return published{}
	}
	return p.msgs[len(p.msgs)-1]
}

type fixture struct {
	c          *clubtest.Club
	engine     *cricket.Engine
	org        authz.Actor
	pub        *recordingPublisher
	tournament *store.Tournament
	match      *store.Match
	team1      *store.Team
	team2      *store.Team
	home       []*store.Player
	away       []*store.Player
}

// newFixture builds a scheduled match in sport between two teams of four
// enrolled players each.
func newFixture(t *testing.T, sport string) *fixture {
	t.Helper()
	ctx := context.Background()
	c := clubtest.New(t)
	sp := c.Sport(t, sport)
	pub := &recordingPublisher{}
	engine, err := cricket.NewEngine(c.Store, notify.NewNotifier(nil, slog.Default()), pub,
		slog.Default(), noop.NewTracerProvider(), metricnoop.NewMeterProvider(), c.Clock)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	f := &fixture{c: c, engine: engine, pub: pub}
	f.org, _ = c.Manager(t, "umpire")
	f.team1 = c.Team(t, "Lions", sp.ID, "", "")
	f.team2 = c.Team(t, "Tigers", sp.ID, "", "")
	for i := range 4 {
		_, h := c.Player(t, fmt.Sprintf("home%d", i), sp.ID)
		c.Enroll(t, h.ID, f.team1)
		f.home = append(f.home, h)
		_, a := c.Player(t, fmt.Sprintf("away%d", i), sp.ID)
		c.Enroll(t, a.ID, f.team2)
		f.away = append(f.away, a)
	}

	f.tournament = &store.Tournament{Name: "Summer Cup", SportID: sp.ID, Status: store.TournamentOngoing, StartDate: clubtest.Now}
	if err := c.Store.Tournaments.Create(ctx, f.tournament); err != nil {
		t.Fatal(err)
	}
	for _, team := range []*store.Team{f.team1, f.team2} {
		if err := c.Store.Tournaments.AddTeam(ctx, f.tournament.ID, team.ID); err != nil {
			t.Fatal(err)
		}
	}
	f.match = &store.Match{
		TournamentID: f.tournament.ID,
		Team1ID:      f.team1.ID,
		Team2ID:      f.team2.ID,
		Status:       store.MatchScheduled,
		ScheduledAt:  clubtest.Now,
	}
	if err := c.Store.Matches.Create(ctx, f.match); err != nil {
		t.Fatal(err)
	}
	return f
}

// ready starts the match with team1 batting, home[0] on strike with
// home[1], and away[0] bowling.
func (f *fixture) ready(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, f.org, f.match.ID, f.team1.ID, f.team1.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.engine.SetBatsmen(ctx, f.org, f.match.ID, f.home[0].ID, f.home[1].ID, ""); err != nil {
		t.Fatalf("SetBatsmen() error = %v", err)
	}
	if _, err := f.engine.SetBowler(ctx, f.org, f.match.ID, f.away[0].ID); err != nil {
		t.Fatalf("SetBowler() error = %v", err)
	}
}

func (f *fixture) state(t *testing.T) *store.CricketMatchState {
	t.Helper()
	st, err := f.engine.State(context.Background(), f.match.ID)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	return st
}

func (f *fixture) stats(t *testing.T, playerID string) *store.MatchPlayerStats {
	t.Helper()
	s, err := f.c.Store.Matches.GetStats(context.Background(), f.match.ID, playerID)
	if err != nil {
		t.Fatalf("GetStats(%s) error = %v", playerID, err)
	}
	return s
}

// Scenario: score a four, then the striker is out.
func TestScoreThenWicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	f.ready(t)
	striker := f.home[0].ID
	next := f.home[2].ID

	if _, err := f.engine.Score(ctx, f.org, f.match.ID, 4); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if _, err := f.engine.Wicket(ctx, f.org, f.match.ID, next, ""); err != nil {
		t.Fatalf("Wicket() error = %v", err)
	}

	st := f.state(t)
	if st.Team1Runs != 4 {
		t.Errorf("Team1Runs = %d, want 4", st.Team1Runs)
	}
	if st.Team1Wickets != 1 {
		t.Errorf("Team1Wickets = %d, want 1", st.Team1Wickets)
	}
	if st.CurrentBall != 2 {
		t.Errorf("CurrentBall = %d, want 2", st.CurrentBall)
	}
	if st.Batsman1ID == nil || *st.Batsman1ID != next {
		t.Errorf("Batsman1ID = %v, want %s", st.Batsman1ID, next)
	}
	if st.StrikerID == nil || *st.StrikerID != next {
		t.Errorf("StrikerID = %v, want %s", st.StrikerID, next)
	}

	out := f.stats(t, striker)
	if !out.IsOut || out.RunsScored != 4 || out.Fours != 1 || out.BallsFaced != 2 {
		t.Errorf("striker stats = %+v, want out after 4 off 2 with one four", out)
	}
	bowler := f.stats(t, f.away[0].ID)
	if bowler.WicketsTaken != 1 || bowler.RunsConceded != 4 {
		t.Errorf("bowler stats = %+v, want 1 wicket for 4", bowler)
	}

	last := f.pub.last()
	if last.room != cricket.Room(f.match.ID) || last.typ != "match.wicket" {
		t.Errorf("last publish = %s %s, want wicket on %s", last.room, last.typ, cricket.Room(f.match.ID))
	}
	if last.card == nil || last.card.Team1.Runs != 4 || last.card.Team1.Wickets != 1 {
		t.Errorf("published card = %+v, want 4/1", last.card)
	}
}

func TestScore_Counters(t *testing.T) {
	tests := []struct {
		name string
		runs []int
	}{
		{name: "single dot", runs: []int{0}},
		{name: "one over", runs: []int{1, 2, 3, 4, 6, 0}},
		{name: "over and a half", runs: []int{4, 4, 4, 4, 4, 4, 1, 1, 2}},
		{name: "three overs", runs: []int{6, 0, 0, 1, 1, 1, 2, 2, 2, 0, 0, 0, 5, 5, 5, 3, 3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, store.CricketSport)
			f.ready(t)

			var total int
			for _, r := range tt.runs {
				if _, err := f.engine.Score(ctx, f.org, f.match.ID, r); err != nil {
					t.Fatalf("Score(%d) error = %v", r, err)
				}
				total += r
			}

			st := f.state(t)
			balls := len(tt.runs)
			if st.Team1Runs != total {
				t.Errorf("Team1Runs = %d, want %d", st.Team1Runs, total)
			}
			if st.TotalBallsBowled != balls {
				t.Errorf("TotalBallsBowled = %d, want %d", st.TotalBallsBowled, balls)
			}
			if st.CurrentOver != balls/6 {
				t.Errorf("CurrentOver = %d, want %d", st.CurrentOver, balls/6)
			}
			if st.CurrentBall != balls%6 {
				t.Errorf("CurrentBall = %d, want %d", st.CurrentBall, balls%6)
			}
			if st.Team2Runs != 0 {
				t.Errorf("Team2Runs = %d, want 0", st.Team2Runs)
			}

			var scored int
			for _, p := range f.home[:2] {
				scored += f.stats(t, p.ID).RunsScored
			}
			if scored != total {
				t.Errorf("batsmen runs = %d, want %d", scored, total)
			}
			if conceded := f.stats(t, f.away[0].ID).RunsConceded; conceded != total {
				t.Errorf("RunsConceded = %d, want %d", conceded, total)
			}
		})
	}
}

func TestScore_StrikeRotation(t *testing.T) {
	tests := []struct {
		runs        int
		wantStriker int
	}{
		{runs: 0, wantStriker: 0},
		{runs: 1, wantStriker: 1},
		{runs: 2, wantStriker: 0},
		{runs: 3, wantStriker: 1},
		{runs: 4, wantStriker: 0},
		{runs: 5, wantStriker: 1},
		{runs: 6, wantStriker: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d runs", tt.runs), func(t *testing.T) {
			f := newFixture(t, store.CricketSport)
			f.ready(t)
			if _, err := f.engine.Score(context.Background(), f.org, f.match.ID, tt.runs); err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			want := f.home[tt.wantStriker].ID
			if st := f.state(t); st.StrikerID == nil || *st.StrikerID != want {
				t.Errorf("StrikerID = %v, want %s", st.StrikerID, want)
			}
		})
	}
}

func TestScore_OversBowledUsesBallsBeforeDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	f.ready(t)

	want := []float64{0, 1.0 / 6, 2.0 / 6, 3.0 / 6, 4.0 / 6, 5.0 / 6, 1}
	for i, w := range want {
		if _, err := f.engine.Score(ctx, f.org, f.match.ID, 0); err != nil {
			t.Fatal(err)
		}
		if got := f.stats(t, f.away[0].ID).OversBowled; got != w {
			t.Errorf("after ball %d OversBowled = %v, want %v", i+1, got, w)
		}
	}
}

func TestScore_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)

	if _, err := f.engine.Score(ctx, f.org, f.match.ID, 1); !errors.Is(err, cricket.ErrMatchNotInProgress) {
		t.Errorf("Score() before start error = %v, want ErrMatchNotInProgress", err)
	}
	if _, err := f.engine.Start(ctx, f.org, f.match.ID, f.team2.ID, f.team1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Score(ctx, f.org, f.match.ID, 1); !errors.Is(err, cricket.ErrPlayersNotSet) {
		t.Errorf("Score() without players error = %v, want ErrPlayersNotSet", err)
	}
	if _, err := f.engine.Wicket(ctx, f.org, f.match.ID, f.home[2].ID, ""); !errors.Is(err, cricket.ErrNoStriker) {
		t.Errorf("Wicket() without striker error = %v, want ErrNoStriker", err)
	}
	for _, runs := range []int{-1, 7} {
		if _, err := f.engine.Score(ctx, f.org, f.match.ID, runs); !errors.Is(err, cricket.ErrInvalidRuns) {
			t.Errorf("Score(%d) error = %v, want ErrInvalidRuns", runs, err)
		}
	}
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("opens the match", func(t *testing.T) {
		f := newFixture(t, store.CricketSport)
		if _, err := f.engine.Start(ctx, f.org, f.match.ID, f.team2.ID, f.team2.ID); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		st := f.state(t)
		if st.BattingTeamID != f.team2.ID || st.BowlingTeamID != f.team1.ID {
			t.Errorf("batting/bowling = %s/%s, want %s/%s", st.BattingTeamID, st.BowlingTeamID, f.team2.ID, f.team1.ID)
		}
		m, err := f.c.Store.Matches.Get(ctx, f.match.ID)
		if err != nil {
			t.Fatal(err)
		}
		if m.Status != store.MatchInProgress {
			t.Errorf("Status = %q, want in_progress", m.Status)
		}
		all, err := f.c.Store.Matches.ListStats(ctx, f.match.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 8 {
			t.Errorf("stats rows = %d, want 8", len(all))
		}
		points, err := f.c.Store.Tournaments.ListPoints(ctx, f.tournament.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(points) != 2 {
			t.Errorf("points rows = %d, want 2", len(points))
		}
		if _, err := f.engine.Start(ctx, f.org, f.match.ID, f.team1.ID, f.team1.ID); !errors.Is(err, cricket.ErrMatchNotScheduled) {
			t.Errorf("second Start() error = %v, want ErrMatchNotScheduled", err)
		}
	})

	t.Run("rejects", func(t *testing.T) {
		f := newFixture(t, store.CricketSport)
		outsider := f.c.Team(t, "Bears", f.team1.SportID, "", "")
		tests := []struct {
			name    string
			toss    string
			batting string
			want    error
		}{
			{name: "toss winner outside match", toss: outsider.ID, batting: f.team1.ID, want: cricket.ErrTeamNotInMatch},
			{name: "batting team outside match", toss: f.team1.ID, batting: outsider.ID, want: cricket.ErrTeamNotInMatch},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := f.engine.Start(ctx, f.org, f.match.ID, tt.toss, tt.batting); !errors.Is(err, tt.want) {
					t.Errorf("Start() error = %v, want %v", err, tt.want)
				}
			})
		}
	})

	t.Run("unregistered team", func(t *testing.T) {
		f := newFixture(t, store.CricketSport)
		stray := f.c.Team(t, "Bears", f.team1.SportID, "", "")
		m := &store.Match{TournamentID: f.tournament.ID, Team1ID: f.team1.ID, Team2ID: stray.ID, Status: store.MatchScheduled}
		if err := f.c.Store.Matches.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
		if _, err := f.engine.Start(ctx, f.org, m.ID, f.team1.ID, f.team1.ID); !errors.Is(err, cricket.ErrTeamNotRegistered) {
			t.Errorf("Start() error = %v, want ErrTeamNotRegistered", err)
		}
	})

	t.Run("other sport", func(t *testing.T) {
		f := newFixture(t, "Football")
		if _, err := f.engine.Start(ctx, f.org, f.match.ID, f.team1.ID, f.team1.ID); !errors.Is(err, cricket.ErrNotCricket) {
			t.Errorf("Start() error = %v, want ErrNotCricket", err)
		}
	})
}

func TestSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	if _, err := f.engine.Start(ctx, f.org, f.match.ID, f.team1.ID, f.team1.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "same batsman twice",
			call: func() error {
				_, err := f.engine.SetBatsmen(ctx, f.org, f.match.ID, f.home[0].ID, f.home[0].ID, "")
				return err
			},
			want: cricket.ErrSameBatsman,
		},
		{
			name: "batsman from bowling side",
			call: func() error {
				_, err := f.engine.SetBatsmen(ctx, f.org, f.match.ID, f.home[0].ID, f.away[0].ID, "")
				return err
			},
			want: cricket.ErrNotOnRoster,
		},
		{
			name: "striker not at the crease",
			call: func() error {
				_, err := f.engine.SetBatsmen(ctx, f.org, f.match.ID, f.home[0].ID, f.home[1].ID, f.home[2].ID)
				return err
			},
			want: cricket.ErrStrikerNotBatting,
		},
		{
			name: "bowler from batting side",
			call: func() error {
				_, err := f.engine.SetBowler(ctx, f.org, f.match.ID, f.home[3].ID)
				return err
			},
			want: cricket.ErrNotOnRoster,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.engine.SetBatsmen(ctx, f.org, f.match.ID, f.home[0].ID, f.home[1].ID, f.home[1].ID); err != nil {
		t.Fatalf("SetBatsmen() error = %v", err)
	}
	if st := f.state(t); *st.StrikerID != f.home[1].ID {
		t.Errorf("StrikerID = %s, want %s", *st.StrikerID, f.home[1].ID)
	}
}

func TestWicket_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	f.ready(t)

	if _, err := f.engine.Wicket(ctx, f.org, f.match.ID, f.home[1].ID, ""); !errors.Is(err, cricket.ErrSameBatsman) {
		t.Errorf("Wicket(non-striker) error = %v, want ErrSameBatsman", err)
	}
	if _, err := f.engine.Wicket(ctx, f.org, f.match.ID, f.away[1].ID, ""); !errors.Is(err, cricket.ErrNotOnRoster) {
		t.Errorf("Wicket(bowling side) error = %v, want ErrNotOnRoster", err)
	}
	if _, err := f.engine.Wicket(ctx, f.org, f.match.ID, f.home[2].ID, f.away[1].ID); err != nil {
		t.Fatalf("Wicket() error = %v", err)
	}
	if c := f.stats(t, f.away[1].ID).Catches; c != 1 {
		t.Errorf("Catches = %d, want 1", c)
	}
	// home[0] is out; bringing them back is refused.
	if _, err := f.engine.Wicket(ctx, f.org, f.match.ID, f.home[0].ID, ""); !errors.Is(err, cricket.ErrAlreadyOut) {
		t.Errorf("Wicket(dismissed batsman) error = %v, want ErrAlreadyOut", err)
	}
	if st := f.state(t); st.Team1Wickets != 1 || st.TotalBallsBowled != 1 {
		t.Errorf("wickets/balls = %d/%d after refused wickets, want 1/1", st.Team1Wickets, st.TotalBallsBowled)
	}
}

func TestSwitchInnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	f.ready(t)
	for range 8 {
		if _, err := f.engine.Score(ctx, f.org, f.match.ID, 1); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.engine.SwitchInnings(ctx, f.org, f.match.ID); err != nil {
		t.Fatalf("SwitchInnings() error = %v", err)
	}
	st := f.state(t)
	if st.BattingTeamID != f.team2.ID || st.BowlingTeamID != f.team1.ID {
		t.Errorf("batting/bowling = %s/%s, want swapped", st.BattingTeamID, st.BowlingTeamID)
	}
	if st.CurrentOver != 0 || st.CurrentBall != 0 {
		t.Errorf("over.ball = %d.%d, want 0.0", st.CurrentOver, st.CurrentBall)
	}
	if st.Batsman1ID != nil || st.Batsman2ID != nil || st.StrikerID != nil || st.BowlerID != nil {
		t.Error("players at the crease were not cleared")
	}
	if st.Team1Runs != 8 || st.TotalBallsBowled != 8 {
		t.Errorf("Team1Runs/TotalBallsBowled = %d/%d, want 8/8", st.Team1Runs, st.TotalBallsBowled)
	}
	if _, err := f.engine.Score(ctx, f.org, f.match.ID, 1); !errors.Is(err, cricket.ErrPlayersNotSet) {
		t.Errorf("Score() after switch error = %v, want ErrPlayersNotSet", err)
	}
	if _, err := f.engine.SwitchInnings(ctx, f.org, f.match.ID); !errors.Is(err, cricket.ErrInningsSwitched) {
		t.Errorf("second SwitchInnings() error = %v, want ErrInningsSwitched", err)
	}

	if _, err := f.engine.SetBatsmen(ctx, f.org, f.match.ID, f.away[0].ID, f.away[1].ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.SetBowler(ctx, f.org, f.match.ID, f.home[3].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Score(ctx, f.org, f.match.ID, 6); err != nil {
		t.Fatal(err)
	}
	if st := f.state(t); st.Team2Runs != 6 || st.Team1Runs != 8 {
		t.Errorf("Team1Runs/Team2Runs = %d/%d, want 8/6", st.Team1Runs, st.Team2Runs)
	}
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	f.ready(t)
	for _, r := range []int{4, 6, 2} {
		if _, err := f.engine.Score(ctx, f.org, f.match.ID, r); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.engine.SwitchInnings(ctx, f.org, f.match.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.SetBatsmen(ctx, f.org, f.match.ID, f.away[0].ID, f.away[1].ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.SetBowler(ctx, f.org, f.match.ID, f.home[3].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Score(ctx, f.org, f.match.ID, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.Complete(ctx, f.org, f.match.ID, "P9999999"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Complete(unknown code) error = %v, want ErrNotFound", err)
	}

	mom := f.home[0]
	card, err := f.engine.Complete(ctx, f.org, f.match.ID, mom.Code)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if card.WinnerID != f.team1.ID || card.Status != string(store.MatchCompleted) {
		t.Errorf("card winner/status = %s/%s, want %s/completed", card.WinnerID, card.Status, f.team1.ID)
	}
	if card.ManOfTheMatchID != mom.ID {
		t.Errorf("ManOfTheMatchID = %s, want %s", card.ManOfTheMatchID, mom.ID)
	}

	points, err := f.c.Store.Tournaments.ListPoints(ctx, f.tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	byTeam := map[string]store.TournamentPoints{}
	for _, p := range points {
		byTeam[p.TeamID] = p
	}
	if w := byTeam[f.team1.ID]; w.Won != 1 || w.Points != cricket.WinPoints || w.MatchesPlayed != 1 || w.NetRunRate <= 0 {
		t.Errorf("winner points = %+v", w)
	}
	if l := byTeam[f.team2.ID]; l.Lost != 1 || l.Points != 0 || l.MatchesPlayed != 1 || l.NetRunRate >= 0 {
		t.Errorf("loser points = %+v", l)
	}

	career, err := f.c.Store.Memberships.GetCareer(ctx, f.c.Membership(t, mom.ID, f.team1.SportID).ID)
	if err != nil {
		t.Fatalf("GetCareer() error = %v", err)
	}
	if career.Runs != 12 || career.MatchesPlayed != 1 || career.Average != 12 {
		t.Errorf("career = %+v, want 12 runs in 1 match", career)
	}

	achievements, err := f.c.Store.Tournaments.ListAchievements(ctx, mom.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(achievements) != 1 || achievements[0].Title != "Man of the Match - Summer Cup" ||
		achievements[0].Description != "Man of the Match in Lions vs Tigers" {
		t.Errorf("achievements = %+v", achievements)
	}
	notes, err := f.c.Store.Notifications.ListByUser(ctx, mom.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Type != notify.TypeMatch {
		t.Errorf("notifications = %+v, want one match notice", notes)
	}

	if _, err := f.engine.Complete(ctx, f.org, f.match.ID, ""); !errors.Is(err, cricket.ErrMatchNotInProgress) {
		t.Errorf("second Complete() error = %v, want ErrMatchNotInProgress", err)
	}
}

func TestComplete_ManOfTheMatchEveryMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	bears := f.c.Team(t, "Bears", f.team1.SportID, "", "")
	if err := f.c.Store.Tournaments.AddTeam(ctx, f.tournament.ID, bears.ID); err != nil {
		t.Fatal(err)
	}
	rematch := &store.Match{
		TournamentID: f.tournament.ID,
		Team1ID:      f.team1.ID,
		Team2ID:      bears.ID,
		Status:       store.MatchScheduled,
		ScheduledAt:  clubtest.Now.Add(time.Hour),
	}
	if err := f.c.Store.Matches.Create(ctx, rematch); err != nil {
		t.Fatal(err)
	}

	mom := f.home[0]
	for _, m := range []*store.Match{f.match, rematch} {
		if _, err := f.engine.Start(ctx, f.org, m.ID, f.team1.ID, f.team1.ID); err != nil {
			t.Fatalf("Start(%s) error = %v", m.ID, err)
		}
		if _, err := f.engine.Complete(ctx, f.org, m.ID, mom.Code); err != nil {
			t.Fatalf("Complete(%s) error = %v", m.ID, err)
		}
	}

	achievements, err := f.c.Store.Tournaments.ListAchievements(ctx, mom.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, a := range achievements {
		got[a.Description] = true
	}
	if len(achievements) != 2 || !got["Man of the Match in Lions vs Tigers"] || !got["Man of the Match in Lions vs Bears"] {
		t.Errorf("achievements = %+v, want one per match", achievements)
	}
	notes, err := f.c.Store.Notifications.ListByUser(ctx, mom.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Errorf("notifications = %d, want 2", len(notes))
	}
}

func TestComplete_Tie(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	if _, err := f.engine.Start(ctx, f.org, f.match.ID, f.team1.ID, f.team1.ID); err != nil {
		t.Fatal(err)
	}
	card, err := f.engine.Complete(ctx, f.org, f.match.ID, "")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if card.WinnerID != "" {
		t.Errorf("WinnerID = %q, want none", card.WinnerID)
	}
	points, err := f.c.Store.Tournaments.ListPoints(ctx, f.tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range points {
		if p.Tied != 1 || p.Points != cricket.TiePoints || p.Won != 0 || p.Lost != 0 {
			t.Errorf("points for %s = %+v, want one tie", p.TeamID, p)
		}
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	f.ready(t)
	if _, err := f.engine.Score(ctx, f.org, f.match.ID, 3); err != nil {
		t.Fatal(err)
	}

	card, err := f.engine.Cancel(ctx, f.org, f.match.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if card.Status != string(store.MatchNoResult) {
		t.Errorf("Status = %s, want no_result", card.Status)
	}
	if card.Team1.Runs != 3 {
		t.Errorf("Team1.Runs = %d, want scores left alone", card.Team1.Runs)
	}
	points, err := f.c.Store.Tournaments.ListPoints(ctx, f.tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range points {
		if p.MatchesPlayed != 1 || p.NoResult != 1 || p.Points != 0 {
			t.Errorf("points for %s = %+v, want one no result", p.TeamID, p)
		}
	}
	career, err := f.c.Store.Memberships.GetCareer(ctx, f.c.Membership(t, f.home[0].ID, f.team1.SportID).ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetCareer() = %+v, %v, want no career stats", career, err)
	}
	if _, err := f.engine.Cancel(ctx, f.org, f.match.ID); !errors.Is(err, cricket.ErrMatchFinished) {
		t.Errorf("second Cancel() error = %v, want ErrMatchFinished", err)
	}
}

func TestScore_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.CricketSport)
	f.ready(t)

	const balls = 60
	var wg sync.WaitGroup
	errs := make(chan error, balls)
	for range balls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Score(ctx, f.org, f.match.ID, 2); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Score() error = %v", err)
	}

	st := f.state(t)
	if st.TotalBallsBowled != balls || st.Team1Runs != 2*balls {
		t.Errorf("balls/runs = %d/%d, want %d/%d", st.TotalBallsBowled, st.Team1Runs, balls, 2*balls)
	}
	if st.CurrentOver != balls/6 || st.CurrentBall != 0 {
		t.Errorf("over.ball = %d.%d, want %d.0", st.CurrentOver, st.CurrentBall, balls/6)
	}
}

func TestNetRunRate(t *testing.T) {
	tests := []struct {
		name                   string
		rf, bf, ra, bb         int
		want                   float64
	}{
		{name: "no balls", want: 0},
		{name: "even", rf: 60, bf: 60, ra: 60, bb: 60, want: 0},
		{name: "ahead", rf: 120, bf: 120, ra: 100, bb: 120, want: 1},
		{name: "rounded", rf: 10, bf: 18, ra: 0, bb: 6, want: 3.333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cricket.NetRunRate(tt.rf, tt.bf, tt.ra, tt.bb); got != tt.want {
				t.Errorf("NetRunRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOvers(t *testing.T) {
	tests := []struct {
		balls int
		want  string
	}{
		{0, "0.0"},
		{5, "0.5"},
		{6, "1.0"},
		{20, "3.2"},
	}
	for _, tt := range tests {
		if got := cricket.Overs(tt.balls); got != tt.want {
			t.Errorf("Overs(%d) = %q, want %q", tt.balls, got, tt.want)
		}
	}
}

func TestOrganizersOnly(t *testing.T) {
	tests := []struct {
		name  string
		actor func(t *testing.T, f *fixture) authz.Actor
		want  error
	}{
		{
			name:  "admin",
			actor: func(t *testing.T, f *fixture) authz.Actor { return f.c.Admin },
		},
		{
			name:  "manager of the sport",
			actor: func(t *testing.T, f *fixture) authz.Actor { return f.org },
		},
		{
			name: "player",
			actor: func(t *testing.T, f *fixture) authz.Actor {
				a, _ := f.c.Player(t, "spectator", f.team1.SportID)
				return a
			},
			want: cricket.ErrNotOrganizer,
		},
		{
			name: "coach",
			actor: func(t *testing.T, f *fixture) authz.Actor {
				a, _ := f.c.Coach(t, "trainer", f.team1.SportID)
				return a
			},
			want: cricket.ErrNotOrganizer,
		},
		{
			name: "manager of another sport",
			actor: func(t *testing.T, f *fixture) authz.Actor {
				a, _ := f.c.Manager(t, "outsider")
				if err := f.c.Identity.RemoveManagerSport(context.Background(), f.c.Admin, a.ProfileID, f.team1.SportID); err != nil {
					t.Fatalf("RemoveManagerSport() error = %v", err)
				}
				return a
			},
			want: cricket.ErrNotOrganizer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, store.CricketSport)
			actor := tt.actor(t, f)

			_, err := f.engine.Start(ctx, actor, f.match.ID, f.team1.ID, f.team1.ID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Start() error = %v, want %v", err, tt.want)
			}
			if tt.want == nil {
				return
			}

			f.ready(t)
			if _, err := f.engine.Score(ctx, actor, f.match.ID, 4); !errors.Is(err, tt.want) {
				t.Errorf("Score() error = %v, want %v", err, tt.want)
			}
			if _, err := f.engine.Wicket(ctx, actor, f.match.ID, f.home[2].ID, ""); !errors.Is(err, tt.want) {
				t.Errorf("Wicket() error = %v, want %v", err, tt.want)
			}
			if _, err := f.engine.Cancel(ctx, actor, f.match.ID); !errors.Is(err, tt.want) {
				t.Errorf("Cancel() error = %v, want %v", err, tt.want)
			}
			if st := f.state(t); st.Team1Runs != 0 || st.TotalBallsBowled != 0 {
				t.Errorf("state after refused calls = %d runs off %d balls, want untouched", st.Team1Runs, st.TotalBallsBowled)
			}
		})
	}
}
