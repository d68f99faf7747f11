package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	UserRegistered Type = "user.registered"
	RoleChanged    Type = "user.role_changed"

	PromotionRequested Type = "promotion.requested"
	PromotionApproved  Type = "promotion.approved"
	PromotionRejected  Type = "promotion.rejected"

	LinkRequested Type = "link.requested"
	LinkAccepted  Type = "link.accepted"
	LinkRejected  Type = "link.rejected"

	ProposalCreated  Type = "proposal.created"
	ProposalApproved Type = "proposal.approved"
	ProposalRejected Type = "proposal.rejected"

	AssignmentCreated  Type = "assignment.created"
	AssignmentAccepted Type = "assignment.accepted"
	AssignmentRejected Type = "assignment.rejected"

	MatchStarted    Type = "match.started"
	BallScored      Type = "match.ball_scored"
	WicketFell      Type = "match.wicket"
	InningsSwitched Type = "match.innings_switched"
	MatchCompleted  Type = "match.completed"
	MatchCancelled  Type = "match.cancelled"

	TournamentEnded Type = "tournament.ended"
	SessionEnded    Type = "session.ended"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// New builds an event with data marshalled to JSON.
func New(aggregateID string, typ Type, version int, data any) Event {
	raw, _ := json.Marshal(data)
	return Event{
		AggregateID: aggregateID,
		Type:        typ,
		Data:        raw,
		Version:     version,
	}
}

// DecisionData is the payload of every workflow transition event.
type DecisionData struct {
	ActorID string `json:"actor_id"`
	Status  string `json:"status"`
	Remarks string `json:"remarks,omitempty"`
}

// RoleChangedData is the payload for RoleChanged events.
type RoleChangedData struct {
	UserID       string `json:"user_id"`
	PreviousRole string `json:"previous_role"`
	NewRole      string `json:"new_role"`
	ChangedBy    string `json:"changed_by,omitempty"`
}

// BallData is the payload for BallScored and WicketFell events.
type BallData struct {
	Over      int    `json:"over"`
	Ball      int    `json:"ball"`
	Runs      int    `json:"runs"`
	StrikerID string `json:"striker_id"`
	BowlerID  string `json:"bowler_id,omitempty"`
	OutID     string `json:"out_id,omitempty"`
	FielderID string `json:"fielder_id,omitempty"`
}

// MatchResultData is the payload for MatchCompleted events.
type MatchResultData struct {
	WinnerID      string `json:"winner_id,omitempty"`
	Team1Runs     int    `json:"team1_runs"`
	Team2Runs     int    `json:"team2_runs"`
	ManOfTheMatch string `json:"man_of_the_match,omitempty"`
}
