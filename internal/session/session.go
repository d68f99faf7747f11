// Package session runs coaching sessions and ingests their attendance
// sheets.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrNotCoach      = domainerr.Forbidden("not_session_coach", "only the session's coach may manage it")
	ErrTitleRequired = domainerr.Precondition("title_required", "session title is required")
	ErrEnded         = domainerr.Conflict("session_ended", "session has already ended")
)

// Manager runs coaching sessions.
type Manager struct {
	store    *store.Store
	notifier *notify.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	clk      clock.Clock
}

// NewManager returns a new session Manager.
func NewManager(st *store.Store, notifier *notify.Notifier, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Manager {
	return &Manager{
		store:    st,
		notifier: notifier,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/clubhub/internal/session"),
		clk:      clk,
	}
}

// Create schedules an active session for the acting coach.
func (m *Manager) Create(ctx context.Context, actor authz.Actor, sportID, title string, at time.Time) (*store.CoachingSession, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Create",
		trace.WithAttributes(
			attribute.String("sport_id", sportID),
			attribute.String("coach_id", actor.ProfileID),
		),
	)
	defer span.End()

	if actor.Role != store.RoleCoach || actor.ProfileID == "" {
		return nil, ErrNotCoach
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if at.IsZero() {
		at = m.clk.Now()
	}

	s := &store.CoachingSession{CoachID: actor.ProfileID, SportID: sportID, Title: title, ScheduledAt: at, IsActive: true}
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		if _, err := tx.Sports.GetByID(ctx, sportID); err != nil {
			return fmt.Errorf("looking up sport: %w", err)
		}
		return tx.Sessions.Create(ctx, s)
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	m.logger.InfoContext(ctx, "session created",
		slog.String("session_id", s.ID),
		slog.String("coach_id", s.CoachID),
	)
	return s, nil
}

// owned loads the session and checks the actor runs it.
func owned(ctx context.Context, tx *store.Repositories, actor authz.Actor, sessionID string) (*store.CoachingSession, error) {
	s, err := tx.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}
	if actor.IsAdmin() {
		return s, nil
	}
	if actor.Role != store.RoleCoach || actor.ProfileID != s.CoachID {
		return nil, ErrNotCoach
	}
	return s, nil
}

// member is a player the session's coach may rate.
type member struct {
	player  *store.Player
	profile store.PlayerSportProfile
}

// eligible returns the active players coached in the session's sport,
// keyed by player code.
func eligible(ctx context.Context, tx *store.Repositories, s *store.CoachingSession) (map[string]member, error) {
	profiles, err := tx.Memberships.ListByCoachSport(ctx, s.CoachID, s.SportID)
	if err != nil {
		return nil, fmt.Errorf("listing coached players: %w", err)
	}
	out := make(map[string]member, len(profiles))
	for _, psp := range profiles {
		if !psp.IsActive {
			continue
		}
		p, err := tx.Profiles.GetPlayer(ctx, psp.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("looking up player %s: %w", psp.PlayerID, err)
		}
		if !p.IsActive {
			continue
		}
		out[p.Code] = member{player: p, profile: psp}
	}
	return out, nil
}

// Template returns a blank attendance sheet listing every eligible player.
func (m *Manager) Template(ctx context.Context, actor authz.Actor, sessionID string) ([]byte, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Template",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	s, err := owned(ctx, m.store.Repositories, actor, sessionID)
	if err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}
	members, err := eligible(ctx, m.store.Repositories, s)
	if err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}
	codes := make([]string, 0, len(members))
	for code := range members {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	var buf bytes.Buffer
	if err := WriteTemplate(&buf, codes); err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}
	return buf.Bytes(), nil
}

// UploadResult reports a partially applied sheet.
type UploadResult struct {
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors"`
}

// UploadAttendance applies every valid row of the sheet and reports the
// rest. The session stays open.
func (m *Manager) UploadAttendance(ctx context.Context, actor authz.Actor, sessionID string, sheet io.Reader) (*UploadResult, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.UploadAttendance",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	rows, rowErrs, err := ParseAttendance(sheet)
	if err != nil {
		return nil, fmt.Errorf("uploading attendance: %w", err)
	}

	res := &UploadResult{}
	err = m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		res.Updated, res.Errors = 0, slices.Clone(rowErrs)

		s, err := owned(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		if !s.IsActive {
			return ErrEnded
		}
		members, err := eligible(ctx, tx, s)
		if err != nil {
			return err
		}
		for _, row := range rows {
			mem, ok := members[row.PlayerCode]
			if !ok {
				res.Errors = append(res.Errors, notEligible(row))
				continue
			}
			if err := tx.Sessions.UpsertAttendance(ctx, &store.SessionAttendance{
				SessionID: s.ID,
				PlayerID:  mem.player.ID,
				Attended:  row.Attended,
				Rating:    row.Rating(),
			}); err != nil {
				return fmt.Errorf("saving attendance for %s: %w", row.PlayerCode, err)
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("uploading attendance: %w", err)
	}
	sortErrors(res.Errors)

	m.logger.InfoContext(ctx, "attendance uploaded",
		slog.String("session_id", sessionID),
		slog.Int("updated", res.Updated),
		slog.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// Summary is the attendance of an ended session.
type Summary struct {
	SessionID     string  `json:"session_id"`
	Updated       int     `json:"updated_players"`
	TotalPlayers  int     `json:"total_players"`
	Attended      int     `json:"attended"`
	Absent        int     `json:"absent"`
	AverageRating float64 `json:"average_rating"`
}

// End applies the final sheet and closes the session. A sheet with any row
// errors is refused as a whole and returned as RowErrors. Attended players
// gain a session and their career score becomes the average of all their
// attended ratings in the sport.
func (m *Manager) End(ctx context.Context, actor authz.Actor, sessionID string, sheet io.Reader) (*Summary, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.End",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	rows, rowErrs, err := ParseAttendance(sheet)
	if err != nil {
		return nil, fmt.Errorf("ending session: %w", err)
	}

	sum := &Summary{SessionID: sessionID}
	var msgs []notify.Message
	err = m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		msgs = msgs[:0]
		s, err := owned(ctx, tx, actor, sessionID)
		if err != nil {
			return err
		}
		if !s.IsActive {
			return ErrEnded
		}
		members, err := eligible(ctx, tx, s)
		if err != nil {
			return err
		}
		errs := slices.Clone(rowErrs)
		for _, row := range rows {
			if _, ok := members[row.PlayerCode]; !ok {
				errs = append(errs, notEligible(row))
			}
		}
		if len(errs) > 0 {
			sortErrors(errs)
			return RowErrors(errs)
		}

		for _, row := range rows {
			mem := members[row.PlayerCode]
			if err := tx.Sessions.UpsertAttendance(ctx, &store.SessionAttendance{
				SessionID: s.ID,
				PlayerID:  mem.player.ID,
				Attended:  row.Attended,
				Rating:    row.Rating(),
			}); err != nil {
				return fmt.Errorf("saving attendance for %s: %w", row.PlayerCode, err)
			}
			if err := m.fold(ctx, tx, mem, row); err != nil {
				return err
			}
			if row.Attended {
				msgs = append(msgs, notify.Message{
					UserID: mem.player.UserID,
					Title:  "Session rated",
					Body:   fmt.Sprintf("You scored %d/%d in %s.", row.Score, MaxScore, s.Title),
					Type:   notify.TypeSession,
				})
			}
			sum.Updated++
		}

		s.IsActive = false
		if err := tx.Sessions.Update(ctx, s); err != nil {
			return fmt.Errorf("closing session: %w", err)
		}

		all, err := tx.Sessions.ListAttendance(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("listing attendance: %w", err)
		}
		var ratings []int
		for _, a := range all {
			if a.Attended {
				ratings = append(ratings, a.Rating)
			}
		}
		sum.TotalPlayers = len(all)
		sum.Attended = len(ratings)
		sum.Absent = sum.TotalPlayers - sum.Attended
		sum.AverageRating = round2(average(ratings))

		m.notifier.Record(ctx, tx.Notifications, msgs...)
		event.Record(ctx, tx.Events, m.logger, event.New(s.ID, event.SessionEnded, 1, sum))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ending session: %w", err)
	}
	m.notifier.Deliver(ctx, msgs...)

	m.logger.InfoContext(ctx, "session ended",
		slog.String("session_id", sessionID),
		slog.Int("attended", sum.Attended),
		slog.Float64("average_rating", sum.AverageRating),
	)
	return sum, nil
}

// fold updates the player's sport profile with the row.
func (m *Manager) fold(ctx context.Context, tx *store.Repositories, mem member, row Row) error {
	psp, err := tx.Memberships.Get(ctx, mem.profile.ID)
	if err != nil {
		return fmt.Errorf("loading sport profile: %w", err)
	}
	if row.Attended {
		psp.SessionCount++
	}
	ratings, err := tx.Sessions.AttendedRatings(ctx, psp.PlayerID, psp.SportID)
	if err != nil {
		return fmt.Errorf("loading ratings: %w", err)
	}
	psp.CareerScore = average(ratings)
	if err := tx.Memberships.Update(ctx, psp); err != nil {
		return fmt.Errorf("saving sport profile: %w", err)
	}
	return nil
}

// DailyScore is the player's average attended rating over the UTC calendar
// day containing day. It is zero when the player attended nothing.
func (m *Manager) DailyScore(ctx context.Context, playerID string, day time.Time) (float64, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.DailyScore",
		trace.WithAttributes(attribute.String("player_id", playerID)),
	)
	defer span.End()

	from := day.UTC().Truncate(24 * time.Hour)
	ratings, err := m.store.Sessions.AttendedRatingsBetween(ctx, playerID, from, from.Add(24*time.Hour))
	if err != nil {
		return 0, fmt.Errorf("loading daily ratings: %w", err)
	}
	return round2(average(ratings)), nil
}

func notEligible(row Row) RowError {
	return RowError{Line: row.Line, PlayerCode: row.PlayerCode, Reason: "player not under this coach/sport or inactive"}
}

func sortErrors(errs []RowError) {
	slices.SortFunc(errs, func(a, b RowError) int { return a.Line - b.Line })
}

func average(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum int
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// IsRowErrors reports whether err carries per-row errors and returns them.
func IsRowErrors(err error) (RowErrors, bool) {
	var re RowErrors
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
