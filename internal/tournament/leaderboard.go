package tournament

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/clubhub/internal/store"
)

// LeaderboardSize caps each leaderboard list.
const LeaderboardSize = 5

// Leaderboard is the tournament's individual and team leaders.
type Leaderboard struct {
	TournamentID    string              `json:"tournament_id"`
	TopScorers      []store.PlayerTotal `json:"top_scorers"`
	TopWicketTakers []store.PlayerTotal `json:"top_wicket_takers"`
	ManOfTheMatch   []store.PlayerTotal `json:"man_of_the_match"`
	Leader          *Standing           `json:"leader,omitempty"`
	MatchesPlayed   int                 `json:"matches_played"`
}

// Leaderboard loads player totals, the points table and the fixtures
// concurrently and ranks the leaders.
func (m *Manager) Leaderboard(ctx context.Context, tournamentID string) (*Leaderboard, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Leaderboard",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	var (
		totals  []store.PlayerTotal
		table   []Standing
		matches []store.Match
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if totals, err = m.store.Matches.TournamentTotals(gctx, tournamentID); err != nil {
			return fmt.Errorf("loading player totals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		table, err = m.PointsTable(gctx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		if matches, err = m.store.Matches.ListByTournament(gctx, tournamentID); err != nil {
			return fmt.Errorf("listing matches: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building leaderboard: %w", err)
	}

	lb := &Leaderboard{
		TournamentID:    tournamentID,
		TopScorers:      top(totals, func(p store.PlayerTotal) int { return p.Runs }),
		TopWicketTakers: top(totals, func(p store.PlayerTotal) int { return p.Wickets }),
		ManOfTheMatch:   top(totals, func(p store.PlayerTotal) int { return p.ManOfTheMatch }),
	}
	if len(table) > 0 {
		lb.Leader = &table[0]
	}
	for _, mt := range matches {
		if mt.Status == store.MatchCompleted {
			lb.MatchesPlayed++
		}
	}
	return lb, nil
}

// top returns up to LeaderboardSize totals with a positive value of by,
// highest first.
func top(totals []store.PlayerTotal, by func(store.PlayerTotal) int) []store.PlayerTotal {
	out := make([]store.PlayerTotal, 0, len(totals))
	for _, t := range totals {
		if by(t) > 0 {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b store.PlayerTotal) int { return cmp.Compare(by(b), by(a)) })
	if len(out) > LeaderboardSize {
		out = out[:LeaderboardSize]
	}
	return out
}
