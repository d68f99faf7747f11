package store

import (
	"time"

	"github.com/jensholdgaard/clubhub/internal/domainerr"
)

// Repository-level errors. Drivers wrap these so callers can match with
// errors.Is regardless of the backend.
var (
	ErrNotFound  = domainerr.NotFound("record_not_found", "record not found")
	ErrDuplicate = domainerr.Conflict("duplicate_record", "record already exists")
)

// Role is the single mutable role of a User.
type Role string

const (
	RolePlayer  Role = "player"
	RoleCoach   Role = "coach"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleCoach, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User is an identity with exactly one current role.
type User struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	DiscordID *string   `db:"discord_id"`
	Role      Role      `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RoleHistory audits a single role change.
type RoleHistory struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	PreviousRole Role      `db:"previous_role"`
	NewRole      Role      `db:"new_role"`
	ChangedBy    *string   `db:"changed_by"`
	ChangedAt    time.Time `db:"changed_at"`
}

// Player is the player profile of a user.
type Player struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	Code              string    `db:"code"` // P<YY><00000>
	IsActive          bool      `db:"is_active"`
	TeamID            *string   `db:"team_id"`
	PromotedToCoachID *string   `db:"promoted_to_coach_id"`
	CreatedAt         time.Time `db:"created_at"`
}

// Coach is the coach profile of a user.
type Coach struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Code           string    `db:"code"` // C<YY><00000>
	PrimarySportID string    `db:"primary_sport_id"`
	FromPlayerID   *string   `db:"from_player_id"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
}

// Manager is the manager profile of a user.
type Manager struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// Admin is the admin profile of a user.
type Admin struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// ManagerSport assigns a manager to a sport.
type ManagerSport struct {
	ID         string    `db:"id"`
	ManagerID  string    `db:"manager_id"`
	SportID    string    `db:"sport_id"`
	AssignedBy *string   `db:"assigned_by"`
	CreatedAt  time.Time `db:"created_at"`
}

// SportType distinguishes team sports from individual ones.
type SportType string

const (
	SportTeam       SportType = "team"
	SportIndividual SportType = "individual"
)

// Sport is catalog reference data.
type Sport struct {
	ID   string    `db:"id"`
	Name string    `db:"name"`
	Type SportType `db:"type"`
}

// CricketSport is the catalog name of the only sport with a live engine.
const CricketSport = "Cricket"

// DefaultSports is the catalog seeded into every store.
func DefaultSports() []Sport {
	return []Sport{
		{Name: CricketSport, Type: SportTeam},
		{Name: "Football", Type: SportTeam},
		{Name: "Basketball", Type: SportTeam},
		{Name: "Ultimate Frisbee", Type: SportTeam},
		{Name: "Tennis", Type: SportIndividual},
		{Name: "Badminton", Type: SportIndividual},
	}
}

// PlayerSportProfile is the per-(player, sport) membership record.
type PlayerSportProfile struct {
	ID           string  `db:"id"`
	PlayerID     string  `db:"player_id"`
	SportID      string  `db:"sport_id"`
	TeamID       *string `db:"team_id"`
	CoachID      *string `db:"coach_id"`
	IsActive     bool    `db:"is_active"`
	CareerScore  float64 `db:"career_score"`
	SessionCount int     `db:"session_count"`
}

// Team belongs to one sport and has at most one coach and one manager.
type Team struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	SportID   string    `db:"sport_id"`
	ManagerID *string   `db:"manager_id"`
	CoachID   *string   `db:"coach_id"`
	CreatedAt time.Time `db:"created_at"`
}

// RequestStatus is the state of a workflow request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool { return s != StatusPending }

// PromotionRequest asks for a player to be promoted to coach.
type PromotionRequest struct {
	ID          string        `db:"id"`
	UserID      string        `db:"user_id"`
	PlayerID    *string       `db:"player_id"`
	SportID     string        `db:"sport_id"`
	Status      RequestStatus `db:"status"`
	Remarks     string        `db:"remarks"`
	DecidedBy   *string       `db:"decided_by"`
	DecidedAt   *time.Time    `db:"decided_at"`
	RequestedAt time.Time     `db:"requested_at"`
}

// LinkDirection tells which party initiated a link request.
type LinkDirection string

const (
	CoachToPlayer LinkDirection = "coach_to_player"
	PlayerToCoach LinkDirection = "player_to_coach"
)

// LinkRequest links a coach and a player for one sport.
type LinkRequest struct {
	ID        string        `db:"id"`
	CoachID   string        `db:"coach_id"`
	PlayerID  string        `db:"player_id"`
	SportID   string        `db:"sport_id"`
	Direction LinkDirection `db:"direction"`
	Status    RequestStatus `db:"status"`
	DecidedBy *string       `db:"decided_by"`
	DecidedAt *time.Time    `db:"decided_at"`
	CreatedAt time.Time     `db:"created_at"`
}

// TeamProposal is a coach's proposed team awaiting a manager's decision.
type TeamProposal struct {
	ID            string        `db:"id"`
	CoachID       string        `db:"coach_id"`
	ManagerID     string        `db:"manager_id"`
	SportID       string        `db:"sport_id"`
	Name          string        `db:"name"`
	PlayerIDs     []string      `db:"-"`
	Status        RequestStatus `db:"status"`
	Remarks       string        `db:"remarks"`
	CreatedTeamID *string       `db:"created_team_id"`
	DecidedBy     *string       `db:"decided_by"`
	DecidedAt     *time.Time    `db:"decided_at"`
	CreatedAt     time.Time     `db:"created_at"`
}

// TeamAssignmentRequest asks a coach to take over a team.
type TeamAssignmentRequest struct {
	ID        string        `db:"id"`
	ManagerID string        `db:"manager_id"`
	CoachID   string        `db:"coach_id"`
	TeamID    string        `db:"team_id"`
	Status    RequestStatus `db:"status"`
	Remarks   string        `db:"remarks"`
	DecidedBy *string       `db:"decided_by"`
	DecidedAt *time.Time    `db:"decided_at"`
	CreatedAt time.Time     `db:"created_at"`
}

// TournamentStatus is the lifecycle of a tournament.
type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "upcoming"
	TournamentOngoing   TournamentStatus = "ongoing"
	TournamentCompleted TournamentStatus = "completed"
)

// Tournament groups matches between registered teams of one sport.
type Tournament struct {
	ID        string           `db:"id"`
	Name      string           `db:"name"`
	SportID   string           `db:"sport_id"`
	Status    TournamentStatus `db:"status"`
	StartDate time.Time        `db:"start_date"`
	EndDate   *time.Time       `db:"end_date"`
}

// MatchStatus is the lifecycle of a match.
type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
	MatchNoResult   MatchStatus = "no_result"
)

// IsTerminal reports whether the match is finished.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchCompleted || s == MatchCancelled || s == MatchNoResult
}

// Match is a fixture between two tournament teams. Scores live in
// CricketMatchState only.
type Match struct {
	ID              string      `db:"id"`
	TournamentID    string      `db:"tournament_id"`
	Team1ID         string      `db:"team1_id"`
	Team2ID         string      `db:"team2_id"`
	Status          MatchStatus `db:"status"`
	WinnerID        *string     `db:"winner_id"`
	ManOfTheMatchID *string     `db:"man_of_the_match_id"`
	ScheduledAt     time.Time   `db:"scheduled_at"`
}

// CricketMatchState is the live, ball-by-ball state of a cricket match.
type CricketMatchState struct {
	MatchID          string    `db:"match_id"`
	TossWinnerID     string    `db:"toss_winner_id"`
	BattingFirstID   string    `db:"batting_first_id"`
	BattingTeamID    string    `db:"batting_team_id"`
	BowlingTeamID    string    `db:"bowling_team_id"`
	Batsman1ID       *string   `db:"batsman1_id"`
	Batsman2ID       *string   `db:"batsman2_id"`
	StrikerID        *string   `db:"striker_id"`
	BowlerID         *string   `db:"bowler_id"`
	Innings          int       `db:"innings"`
	CurrentOver      int       `db:"current_over"`
	CurrentBall      int       `db:"current_ball"`
	TotalBallsBowled int       `db:"total_balls_bowled"`
	Team1Runs        int       `db:"team1_runs"`
	Team1Wickets     int       `db:"team1_wickets"`
	Team1Balls       int       `db:"team1_balls"`
	Team2Runs        int       `db:"team2_runs"`
	Team2Wickets     int       `db:"team2_wickets"`
	Team2Balls       int       `db:"team2_balls"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// MatchPlayerStats accumulates one player's figures in one match.
type MatchPlayerStats struct {
	ID           string  `db:"id"`
	MatchID      string  `db:"match_id"`
	PlayerID     string  `db:"player_id"`
	TeamID       string  `db:"team_id"`
	RunsScored   int     `db:"runs_scored"`
	BallsFaced   int     `db:"balls_faced"`
	Fours        int     `db:"fours"`
	Sixes        int     `db:"sixes"`
	IsOut        bool    `db:"is_out"`
	OversBowled  float64 `db:"overs_bowled"`
	RunsConceded int     `db:"runs_conceded"`
	WicketsTaken int     `db:"wickets_taken"`
	Catches      int     `db:"catches"`
}

// CricketStats is the career aggregate for one player sport profile.
type CricketStats struct {
	ProfileID     string  `db:"profile_id"`
	Runs          int     `db:"runs"`
	Wickets       int     `db:"wickets"`
	MatchesPlayed int     `db:"matches_played"`
	Average       float64 `db:"average"`
}

// TournamentPoints is one row of a tournament's points table.
type TournamentPoints struct {
	ID            string  `db:"id"`
	TournamentID  string  `db:"tournament_id"`
	TeamID        string  `db:"team_id"`
	MatchesPlayed int     `db:"matches_played"`
	Won           int     `db:"won"`
	Lost          int     `db:"lost"`
	Tied          int     `db:"tied"`
	NoResult      int     `db:"no_result"`
	Points        int     `db:"points"`
	RunsFor       int     `db:"runs_for"`
	BallsFaced    int     `db:"balls_faced"`
	RunsAgainst   int     `db:"runs_against"`
	BallsBowled   int     `db:"balls_bowled"`
	NetRunRate    float64 `db:"net_run_rate"`
}

// Achievement is an award given to a player.
type Achievement struct {
	ID           string    `db:"id"`
	PlayerID     string    `db:"player_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	TournamentID *string   `db:"tournament_id"`
	MatchID      *string   `db:"match_id"`
	AwardedAt    time.Time `db:"awarded_at"`
}

// PlayerTotal aggregates a player's figures across a tournament.
type PlayerTotal struct {
	PlayerID      string `db:"player_id"`
	Runs          int    `db:"runs"`
	Wickets       int    `db:"wickets"`
	ManOfTheMatch int    `db:"man_of_the_match"`
}

// Notification is a message recorded for a user.
type Notification struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

// CoachingSession is a training session run by a coach.
type CoachingSession struct {
	ID          string    `db:"id"`
	CoachID     string    `db:"coach_id"`
	SportID     string    `db:"sport_id"`
	Title       string    `db:"title"`
	ScheduledAt time.Time `db:"scheduled_at"`
	IsActive    bool      `db:"is_active"`
}

// SessionAttendance records one player's attendance and rating.
type SessionAttendance struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
	PlayerID  string `db:"player_id"`
	Attended  bool   `db:"attended"`
	Rating    int    `db:"rating"`
}
