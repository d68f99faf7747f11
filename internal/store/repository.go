package store

import (
	"context"
	"time"
)

// UserRepository persists users and their role history.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*User, error)
	UpdateRole(ctx context.Context, id string, role Role) error
	AppendRoleHistory(ctx context.Context, h *RoleHistory) error
	ListRoleHistory(ctx context.Context, userID string) ([]RoleHistory, error)
}

// ProfileRepository persists the role profiles, the manager↔sport
// assignments and the external code sequences.
type ProfileRepository interface {
	CreatePlayer(ctx context.Context, p *Player) error
	GetPlayer(ctx context.Context, id string) (*Player, error)
	GetPlayerByUser(ctx context.Context, userID string) (*Player, error)
	GetPlayerByCode(ctx context.Context, code string) (*Player, error)
	UpdatePlayer(ctx context.Context, p *Player) error

	CreateCoach(ctx context.Context, c *Coach) error
	GetCoach(ctx context.Context, id string) (*Coach, error)
	GetCoachByUser(ctx context.Context, userID string) (*Coach, error)
	UpdateCoach(ctx context.Context, c *Coach) error

	CreateManager(ctx context.Context, m *Manager) error
	GetManager(ctx context.Context, id string) (*Manager, error)
	GetManagerByUser(ctx context.Context, userID string) (*Manager, error)
	UpdateManager(ctx context.Context, m *Manager) error

	CreateAdmin(ctx context.Context, a *Admin) error
	GetAdminByUser(ctx context.Context, userID string) (*Admin, error)
	UpdateAdmin(ctx context.Context, a *Admin) error

	AssignSport(ctx context.Context, ms *ManagerSport) error
	RemoveSport(ctx context.Context, managerID, sportID string) error
	IsAssigned(ctx context.Context, managerID, sportID string) (bool, error)
	ListManagersForSport(ctx context.Context, sportID string) ([]Manager, error)

	// LockSequence serializes code generation for prefix until the
	// surrounding transaction ends.
	LockSequence(ctx context.Context, prefix string) error
	// MaxCode returns the greatest code starting with prefix, or "" if none.
	MaxCode(ctx context.Context, prefix string) (string, error)
}

// SportRepository reads the sport catalog.
type SportRepository interface {
	GetByID(ctx context.Context, id string) (*Sport, error)
	GetByName(ctx context.Context, name string) (*Sport, error)
	List(ctx context.Context) ([]Sport, error)
}

// MembershipRepository persists player sport profiles and their career stats.
// Inside a transaction, single-profile reads lock the row.
type MembershipRepository interface {
	Create(ctx context.Context, p *PlayerSportProfile) error
	Get(ctx context.Context, id string) (*PlayerSportProfile, error)
	GetByPlayerSport(ctx context.Context, playerID, sportID string) (*PlayerSportProfile, error)
	Update(ctx context.Context, p *PlayerSportProfile) error
	ListByPlayer(ctx context.Context, playerID string) ([]PlayerSportProfile, error)
	ListByTeam(ctx context.Context, teamID string) ([]PlayerSportProfile, error)
	ListByCoachSport(ctx context.Context, coachID, sportID string) ([]PlayerSportProfile, error)
	// ListTeamed returns the active profiles of player in sport that have a
	// team, excluding excludeID.
	ListTeamed(ctx context.Context, playerID, sportID, excludeID string) ([]PlayerSportProfile, error)

	GetCareer(ctx context.Context, profileID string) (*CricketStats, error)
	SaveCareer(ctx context.Context, s *CricketStats) error
}

// TeamRepository persists teams.
type TeamRepository interface {
	Create(ctx context.Context, t *Team) error
	Get(ctx context.Context, id string) (*Team, error)
	SetCoach(ctx context.Context, teamID, coachID string) error
}

// RequestRepository persists the four workflow request types.
type RequestRepository interface {
	CreatePromotion(ctx context.Context, r *PromotionRequest) error
	GetPromotion(ctx context.Context, id string) (*PromotionRequest, error)
	UpdatePromotion(ctx context.Context, r *PromotionRequest) error
	ListPromotions(ctx context.Context, status RequestStatus) ([]PromotionRequest, error)

	CreateLink(ctx context.Context, r *LinkRequest) error
	GetLink(ctx context.Context, id string) (*LinkRequest, error)
	UpdateLink(ctx context.Context, r *LinkRequest) error
	FindPendingLink(ctx context.Context, coachID, playerID, sportID string) (*LinkRequest, error)

	CreateProposal(ctx context.Context, p *TeamProposal) error
	GetProposal(ctx context.Context, id string) (*TeamProposal, error)
	UpdateProposal(ctx context.Context, p *TeamProposal) error

	CreateAssignment(ctx context.Context, r *TeamAssignmentRequest) error
	GetAssignment(ctx context.Context, id string) (*TeamAssignmentRequest, error)
	UpdateAssignment(ctx context.Context, r *TeamAssignmentRequest) error
	FindPendingAssignment(ctx context.Context, coachID, teamID string) (*TeamAssignmentRequest, error)
}

// TournamentRepository persists tournaments, their teams, points tables and
// achievements.
type TournamentRepository interface {
	Create(ctx context.Context, t *Tournament) error
	Get(ctx context.Context, id string) (*Tournament, error)
	Update(ctx context.Context, t *Tournament) error
	AddTeam(ctx context.Context, tournamentID, teamID string) error
	HasTeam(ctx context.Context, tournamentID, teamID string) (bool, error)
	ListTeams(ctx context.Context, tournamentID string) ([]Team, error)

	// EnsurePoints returns the points row for the team, creating a zeroed
	// one when absent.
	EnsurePoints(ctx context.Context, tournamentID, teamID string) (*TournamentPoints, error)
	SavePoints(ctx context.Context, p *TournamentPoints) error
	ListPoints(ctx context.Context, tournamentID string) ([]TournamentPoints, error)

	// Award creates the achievement unless the player already holds one with
	// the same title for the same match (or for no match), and reports
	// whether it was created.
	Award(ctx context.Context, a *Achievement) (bool, error)
	ListAchievements(ctx context.Context, playerID string) ([]Achievement, error)
}

// MatchRepository persists matches, live cricket state and per-match stats.
// Inside a transaction, Get and GetState lock their rows.
type MatchRepository interface {
	Create(ctx context.Context, m *Match) error
	Get(ctx context.Context, id string) (*Match, error)
	Update(ctx context.Context, m *Match) error
	ListByTournament(ctx context.Context, tournamentID string) ([]Match, error)

	GetState(ctx context.Context, matchID string) (*CricketMatchState, error)
	SaveState(ctx context.Context, s *CricketMatchState) error

	// EnsureStats inserts s unless a row for (match, player) exists.
	EnsureStats(ctx context.Context, s *MatchPlayerStats) error
	GetStats(ctx context.Context, matchID, playerID string) (*MatchPlayerStats, error)
	SaveStats(ctx context.Context, s *MatchPlayerStats) error
	ListStats(ctx context.Context, matchID string) ([]MatchPlayerStats, error)

	TournamentTotals(ctx context.Context, tournamentID string) ([]PlayerTotal, error)
}

// SessionRepository persists coaching sessions and attendance.
type SessionRepository interface {
	Create(ctx context.Context, s *CoachingSession) error
	Get(ctx context.Context, id string) (*CoachingSession, error)
	Update(ctx context.Context, s *CoachingSession) error
	UpsertAttendance(ctx context.Context, a *SessionAttendance) error
	ListAttendance(ctx context.Context, sessionID string) ([]SessionAttendance, error)
	// AttendedRatings returns the ratings of every attended session of
	// player in sport.
	AttendedRatings(ctx context.Context, playerID, sportID string) ([]int, error)
	// AttendedRatingsBetween returns the ratings of attended sessions
	// scheduled in [from, to).
	AttendedRatingsBetween(ctx context.Context, playerID string, from, to time.Time) ([]int, error)
}

// NotificationRepository persists notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
}
