package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/config"
	"github.com/jensholdgaard/clubhub/internal/store"
	"github.com/jensholdgaard/clubhub/internal/store/memstore"
)

var fixedClock = clock.Mock{T: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}

func TestNew_SeedsSports(t *testing.T) {
	st := memstore.New(fixedClock).Store()

	sports, err := st.Sports.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sports) != len(store.DefaultSports()) {
		t.Fatalf("len(sports) = %d, want %d", len(sports), len(store.DefaultSports()))
	}

	cricket, err := st.Sports.GetByName(context.Background(), "cricket")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if cricket.Name != store.CricketSport {
		t.Errorf("Name = %q, want %q", cricket.Name, store.CricketSport)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(fixedClock).Store()
	boom := errors.New("boom")

	err := st.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		if err := tx.Users.Create(ctx, &store.User{Username: "alice", Role: store.RolePlayer}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want %v", err, boom)
	}

	u := &store.User{Username: "alice", Role: store.RolePlayer}
	if err := st.Users.Create(ctx, u); err != nil {
		t.Fatalf("Create() after rollback error = %v", err)
	}
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(fixedClock).Store()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = st.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
			_ = tx.Users.Create(ctx, &store.User{Username: "bob", Role: store.RolePlayer})
			panic("kaboom")
		})
	}()

	if err := st.Users.Create(ctx, &store.User{Username: "bob", Role: store.RolePlayer}); err != nil {
		t.Fatalf("Create() after panic error = %v", err)
	}
}

func TestInTx_Commits(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(fixedClock).Store()

	var id string
	err := st.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		u := &store.User{Username: "carol", Role: store.RoleCoach}
		if err := tx.Users.Create(ctx, u); err != nil {
			return err
		}
		id = u.ID
		return nil
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}

	got, err := st.Users.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.CreatedAt.Equal(fixedClock.T) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, fixedClock.T)
	}
}

func TestUniqueConstraints(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(st *store.Store) error
	}{
		{
			name: "username",
			run: func(st *store.Store) error {
				_ = st.Users.Create(ctx, &store.User{Username: "dup"})
				return st.Users.Create(ctx, &store.User{Username: "dup"})
			},
		},
		{
			name: "player code",
			run: func(st *store.Store) error {
				_ = st.Profiles.CreatePlayer(ctx, &store.Player{UserID: "u1", Code: "P2500001"})
				return st.Profiles.CreatePlayer(ctx, &store.Player{UserID: "u2", Code: "P2500001"})
			},
		},
		{
			name: "one player profile per user",
			run: func(st *store.Store) error {
				_ = st.Profiles.CreatePlayer(ctx, &store.Player{UserID: "u1", Code: "P2500001"})
				return st.Profiles.CreatePlayer(ctx, &store.Player{UserID: "u1", Code: "P2500002"})
			},
		},
		{
			name: "sport profile per player and sport",
			run: func(st *store.Store) error {
				_ = st.Memberships.Create(ctx, &store.PlayerSportProfile{PlayerID: "p1", SportID: "s1"})
				return st.Memberships.Create(ctx, &store.PlayerSportProfile{PlayerID: "p1", SportID: "s1"})
			},
		},
		{
			name: "manager sport",
			run: func(st *store.Store) error {
				_ = st.Profiles.AssignSport(ctx, &store.ManagerSport{ManagerID: "m1", SportID: "s1"})
				return st.Profiles.AssignSport(ctx, &store.ManagerSport{ManagerID: "m1", SportID: "s1"})
			},
		},
		{
			name: "tournament team",
			run: func(st *store.Store) error {
				_ = st.Tournaments.AddTeam(ctx, "t1", "team1")
				return st.Tournaments.AddTeam(ctx, "t1", "team1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memstore.New(fixedClock).Store()
			if err := tt.run(st); !errors.Is(err, store.ErrDuplicate) {
				t.Errorf("error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestNotFoundWrapsSentinel(t *testing.T) {
	st := memstore.New(fixedClock).Store()
	_, err := st.Matches.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestAward_Dedupes(t *testing.T) {
	m1, m2 := "m1", "m2"
	tests := []struct {
		name   string
		awards []store.Achievement
		want   int
	}{
		{
			name: "same title without a match",
			awards: []store.Achievement{
				{PlayerID: "p1", Title: "Top Scorer - Cup"},
				{PlayerID: "p1", Title: "Top Scorer - Cup"},
			},
			want: 1,
		},
		{
			name: "same title in the same match",
			awards: []store.Achievement{
				{PlayerID: "p1", Title: "Man of the Match - Cup", MatchID: &m1},
				{PlayerID: "p1", Title: "Man of the Match - Cup", MatchID: &m1},
			},
			want: 1,
		},
		{
			name: "same title in different matches",
			awards: []store.Achievement{
				{PlayerID: "p1", Title: "Man of the Match - Cup", MatchID: &m1},
				{PlayerID: "p1", Title: "Man of the Match - Cup", MatchID: &m2},
			},
			want: 2,
		},
		{
			name: "match award next to a tournament award",
			awards: []store.Achievement{
				{PlayerID: "p1", Title: "Top Scorer - Cup"},
				{PlayerID: "p1", Title: "Top Scorer - Cup", MatchID: &m1},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := memstore.New(fixedClock).Store()

			created := 0
			for _, a := range tt.awards {
				ok, err := st.Tournaments.Award(ctx, &a)
				if err != nil {
					t.Fatalf("Award() error = %v", err)
				}
				if ok {
					created++
				}
			}
			got, err := st.Tournaments.ListAchievements(ctx, "p1")
			if err != nil {
				t.Fatalf("ListAchievements() error = %v", err)
			}
			if created != tt.want || len(got) != tt.want {
				t.Errorf("created %d, listed %d, want %d", created, len(got), tt.want)
			}
		})
	}
}

func TestUpdate_OneActiveTeamPerSport(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(fixedClock).Store()
	team1, team2 := "team-1", "team-2"

	a := &store.PlayerSportProfile{ID: "a", PlayerID: "p1", SportID: "s1", TeamID: &team1, IsActive: true}
	b := &store.PlayerSportProfile{ID: "b", PlayerID: "p1", SportID: "s2", IsActive: true}
	for _, p := range []*store.PlayerSportProfile{a, b} {
		if err := st.Memberships.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	b.TeamID = &team2
	if err := st.Memberships.Update(ctx, b); err != nil {
		t.Fatalf("Update() other sport error = %v", err)
	}

	// A second active, teamed row for the same sport breaks the index.
	b.SportID = "s1"
	if err := st.Memberships.Update(ctx, b); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Update() same sport error = %v, want ErrDuplicate", err)
	}
}

func TestAttendedRatingsBetween(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(fixedClock).Store()
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	sessions := []*store.CoachingSession{
		{SportID: "s1", ScheduledAt: day.Add(9 * time.Hour)},
		{SportID: "s1", ScheduledAt: day.Add(-time.Hour)},
		{SportID: "s2", ScheduledAt: day.Add(17 * time.Hour)},
	}
	ratings := []int{8, 5, 6}
	for i, s := range sessions {
		if err := st.Sessions.Create(ctx, s); err != nil {
			t.Fatal(err)
		}
		if err := st.Sessions.UpsertAttendance(ctx, &store.SessionAttendance{
			SessionID: s.ID, PlayerID: "p1", Attended: true, Rating: ratings[i],
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.Sessions.AttendedRatingsBetween(ctx, "p1", day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("AttendedRatingsBetween() error = %v", err)
	}
	if len(got) != 2 || got[0] != 8 || got[1] != 6 {
		t.Errorf("ratings = %v, want [8 6]", got)
	}

	bySport, err := st.Sessions.AttendedRatings(ctx, "p1", "s1")
	if err != nil {
		t.Fatalf("AttendedRatings() error = %v", err)
	}
	if len(bySport) != 2 || bySport[0] != 5 || bySport[1] != 8 {
		t.Errorf("ratings = %v, want [5 8]", bySport)
	}
}

func TestOpen_MemoryDriver(t *testing.T) {
	st, err := store.Open(context.Background(), config.DatabaseConfig{Driver: "memory"}, fixedClock)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := st.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := st.Closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
