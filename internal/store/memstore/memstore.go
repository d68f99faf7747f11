// Package memstore provides an in-memory, transactional store.Driver.
//
// Transactions are serialized by a single store-wide mutex and roll back by
// restoring a snapshot of the state taken when the transaction began. This
// gives the same atomicity and isolation guarantees as the Postgres driver
// for a single process, and is what the manager tests run against.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/config"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/store"
)

func init() {
	store.Register("memory", func(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Store, error) {
		return New(clk).Store(), nil
	})
}

type state struct {
	users         map[string]store.User
	roleHistory   []store.RoleHistory
	players       map[string]store.Player
	coaches       map[string]store.Coach
	managers      map[string]store.Manager
	admins        map[string]store.Admin
	managerSports map[string]store.ManagerSport
	sports        map[string]store.Sport

	profiles map[string]store.PlayerSportProfile
	careers  map[string]store.CricketStats
	teams    map[string]store.Team

	promotions  map[string]store.PromotionRequest
	links       map[string]store.LinkRequest
	proposals   map[string]store.TeamProposal
	assignments map[string]store.TeamAssignmentRequest

	tournaments     map[string]store.Tournament
	tournamentTeams map[string][]string
	points          map[string]store.TournamentPoints
	achievements    map[string]store.Achievement
	matches         map[string]store.Match
	matchStates     map[string]store.CricketMatchState
	matchStats      map[string]store.MatchPlayerStats

	sessions      map[string]store.CoachingSession
	attendance    map[string]store.SessionAttendance
	notifications []store.Notification
	events        []event.Event
}

func newState() *state {
	return &state{
		users:           map[string]store.User{},
		players:         map[string]store.Player{},
		coaches:         map[string]store.Coach{},
		managers:        map[string]store.Manager{},
		admins:          map[string]store.Admin{},
		managerSports:   map[string]store.ManagerSport{},
		sports:          map[string]store.Sport{},
		profiles:        map[string]store.PlayerSportProfile{},
		careers:         map[string]store.CricketStats{},
		teams:           map[string]store.Team{},
		promotions:      map[string]store.PromotionRequest{},
		links:           map[string]store.LinkRequest{},
		proposals:       map[string]store.TeamProposal{},
		assignments:     map[string]store.TeamAssignmentRequest{},
		tournaments:     map[string]store.Tournament{},
		tournamentTeams: map[string][]string{},
		points:          map[string]store.TournamentPoints{},
		achievements:    map[string]store.Achievement{},
		matches:         map[string]store.Match{},
		matchStates:     map[string]store.CricketMatchState{},
		matchStats:      map[string]store.MatchPlayerStats{},
		sessions:        map[string]store.CoachingSession{},
		attendance:      map[string]store.SessionAttendance{},
	}
}

// clone copies every map and slice header. Stored values never share
// mutable memory with callers, so a shallow copy of each map is a full
// snapshot.
func (s *state) clone() *state {
	return &state{
		users:           cloneMap(s.users),
		roleHistory:     slices.Clone(s.roleHistory),
		players:         cloneMap(s.players),
		coaches:         cloneMap(s.coaches),
		managers:        cloneMap(s.managers),
		admins:          cloneMap(s.admins),
		managerSports:   cloneMap(s.managerSports),
		sports:          cloneMap(s.sports),
		profiles:        cloneMap(s.profiles),
		careers:         cloneMap(s.careers),
		teams:           cloneMap(s.teams),
		promotions:      cloneMap(s.promotions),
		links:           cloneMap(s.links),
		proposals:       cloneMap(s.proposals),
		assignments:     cloneMap(s.assignments),
		tournaments:     cloneMap(s.tournaments),
		tournamentTeams: cloneMap(s.tournamentTeams),
		points:          cloneMap(s.points),
		achievements:    cloneMap(s.achievements),
		matches:         cloneMap(s.matches),
		matchStates:     cloneMap(s.matchStates),
		matchStats:      cloneMap(s.matchStats),
		sessions:        cloneMap(s.sessions),
		attendance:      cloneMap(s.attendance),
		notifications:   slices.Clone(s.notifications),
		events:          slices.Clone(s.events),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newID() string { return uuid.NewString() }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
}

// DB is an in-memory database.
type DB struct {
	mu  sync.Mutex
	st  *state
	clk clock.Clock
}

// New returns an empty database seeded with the default sport catalog.
func New(clk clock.Clock) *DB {
	db := &DB{st: newState(), clk: clk}
	for _, sp := range store.DefaultSports() {
		sp.ID = newID()
		db.st.sports[sp.ID] = sp
	}
	return db
}

// Store exposes the database through the store contracts.
func (db *DB) Store() *store.Store {
	return &store.Store{
		Repositories: db.repositories(false),
		Transactor:   db,
		Closer:       closerFunc(func() error { return nil }),
		Ping:         func(context.Context) error { return nil },
	}
}

// InTx runs fn while holding the store mutex and restores the pre-transaction
// snapshot when fn fails or panics. fn must not start another transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx *store.Repositories) error) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.st.clone()
	defer func() {
		if p := recover(); p != nil {
			db.st = snapshot
			panic(p)
		}
		if err != nil {
			db.st = snapshot
		}
	}()

	return fn(ctx, db.repositories(true))
}

func (db *DB) repositories(inTx bool) *store.Repositories {
	c := &conn{db: db, inTx: inTx}
	return &store.Repositories{
		Users:         &userRepo{c},
		Profiles:      &profileRepo{c},
		Sports:        &sportRepo{c},
		Memberships:   &membershipRepo{c},
		Teams:         &teamRepo{c},
		Requests:      &requestRepo{c},
		Tournaments:   &tournamentRepo{c},
		Matches:       &matchRepo{c},
		Sessions:      &sessionRepo{c},
		Notifications: &notificationRepo{c},
		Events:        &eventStore{c},
	}
}

// conn is the handle shared by the repositories of one Repositories value.
// Outside a transaction every call takes the store mutex itself.
type conn struct {
	db   *DB
	inTx bool
}

func (c *conn) lock() func() {
	if c.inTx {
		return func() {}
	}
	c.db.mu.Lock()
	return c.db.mu.Unlock
}

func (c *conn) st() *state { return c.db.st }

func (c *conn) now() time.Time { return c.db.clk.Now() }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
