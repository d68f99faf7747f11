package tournament

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/roster"
	"github.com/jensholdgaard/clubhub/internal/store"
)

// Summary reports what closing a tournament awarded.
type Summary struct {
	TournamentID  string   `json:"tournament_id"`
	TopScorerID   string   `json:"top_scorer_id,omitempty"`
	MostWicketsID string   `json:"most_wickets_id,omitempty"`
	WinnerTeamID  string   `json:"winner_team_id,omitempty"`
	WinnerTeam    string   `json:"winner_team,omitempty"`
	Awarded       []string `json:"awarded"`
}

// End completes an ongoing tournament. The highest run scorer and wicket
// taker are awarded when their totals are positive, and every active player
// of the top team in the points table becomes a tournament winner.
func (m *Manager) End(ctx context.Context, actor authz.Actor, tournamentID string) (*Summary, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.End",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	sum := &Summary{TournamentID: tournamentID, Awarded: []string{}}
	var msgs []notify.Message
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		sum.Awarded = sum.Awarded[:0]
		msgs = msgs[:0]

		t, err := tx.Tournaments.Get(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("looking up tournament: %w", err)
		}
		if err := m.requireOrganizer(ctx, tx, actor, t.SportID); err != nil {
			return err
		}
		if t.Status != store.TournamentOngoing {
			return ErrNotOngoing.With("status", string(t.Status))
		}

		award := func(playerID, title, description string) error {
			created, err := tx.Tournaments.Award(ctx, &store.Achievement{
				PlayerID:     playerID,
				Title:        title,
				Description:  description,
				TournamentID: &t.ID,
			})
			if err != nil {
				return fmt.Errorf("awarding %q: %w", title, err)
			}
			if !created {
				return nil
			}
			sum.Awarded = append(sum.Awarded, title+": "+playerID)
			if p, err := tx.Profiles.GetPlayer(ctx, playerID); err == nil {
				msgs = append(msgs, notify.Message{
					UserID: p.UserID,
					Title:  "Achievement unlocked",
					Body:   title,
					Type:   notify.TypeTournament,
				})
			}
			return nil
		}

		totals, err := tx.Matches.TournamentTotals(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("loading player totals: %w", err)
		}
		if top, ok := leader(totals, func(p store.PlayerTotal) int { return p.Runs }); ok {
			sum.TopScorerID = top.PlayerID
			if err := award(top.PlayerID, "Top Scorer - "+t.Name, "Highest run scorer in "+t.Name); err != nil {
				return err
			}
		}
		if top, ok := leader(totals, func(p store.PlayerTotal) int { return p.Wickets }); ok {
			sum.MostWicketsID = top.PlayerID
			if err := award(top.PlayerID, "Most Wickets - "+t.Name, "Most wickets in "+t.Name); err != nil {
				return err
			}
		}

		points, err := tx.Tournaments.ListPoints(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("listing points: %w", err)
		}
		rank(points)
		if len(points) > 0 {
			team, err := tx.Teams.Get(ctx, points[0].TeamID)
			if err != nil {
				return fmt.Errorf("looking up winning team: %w", err)
			}
			sum.WinnerTeamID, sum.WinnerTeam = team.ID, team.Name
			members, err := roster.ActiveRoster(ctx, tx.Memberships, team.ID)
			if err != nil {
				return err
			}
			for _, psp := range members {
				if psp.SportID != t.SportID {
					continue
				}
				if err := award(psp.PlayerID, "Tournament Winner - "+t.Name, fmt.Sprintf("Won %s with %s", t.Name, team.Name)); err != nil {
					return err
				}
			}
		}

		now := m.clk.Now()
		t.Status = store.TournamentCompleted
		t.EndDate = &now
		if err := tx.Tournaments.Update(ctx, t); err != nil {
			return fmt.Errorf("updating tournament: %w", err)
		}

		m.notifier.Record(ctx, tx.Notifications, msgs...)
		event.Record(ctx, tx.Events, m.logger, event.New(t.ID, event.TournamentEnded, 1, sum))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ending tournament: %w", err)
	}
	m.notifier.Deliver(ctx, msgs...)

	m.logger.InfoContext(ctx, "tournament ended",
		slog.String("tournament_id", tournamentID),
		slog.String("winner_team_id", sum.WinnerTeamID),
		slog.Int("achievements", len(sum.Awarded)),
	)
	return sum, nil
}

// leader returns the total with the greatest positive value of by. Ties go
// to the first in order.
func leader(totals []store.PlayerTotal, by func(store.PlayerTotal) int) (store.PlayerTotal, bool) {
	var best store.PlayerTotal
	found := false
	for _, t := range totals {
		if by(t) > 0 && (!found || by(t) > by(best)) {
			best, found = t, true
		}
	}
	return best, found
}
