package commands

import (
	"fmt"
	"strings"

	"github.com/jensholdgaard/clubhub/internal/cricket"
	"github.com/jensholdgaard/clubhub/internal/tournament"
)

// FormatScorecard renders the scorecard as a short Discord message.
func FormatScorecard(card *cricket.Scorecard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Match `%s`** (%s, innings %d)\n", card.MatchID, card.Status, card.Innings)
	for _, t := range []cricket.TeamScore{card.Team1, card.Team2} {
		marker := ""
		if t.TeamID == card.BattingTeamID {
			marker = " *batting*"
		}
		fmt.Fprintf(&b, "`%s` %d/%d (%s ov)%s\n", t.TeamID, t.Runs, t.Wickets, t.Overs, marker)
	}
	if card.WinnerID != "" {
		fmt.Fprintf(&b, "Winner: `%s`\n", card.WinnerID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatPoints renders the points table, one team per line.
func FormatPoints(table []tournament.Standing) string {
	if len(table) == 0 {
		return "No teams in this tournament yet."
	}
	var b strings.Builder
	b.WriteString("**Points Table:**\n")
	for idx, row := range table {
		name := row.TeamName
		if name == "" {
			name = row.TeamID
		}
		fmt.Fprintf(&b, "%d. %s: %d pts (P%d W%d L%d T%d, NRR %+.3f)\n",
			idx+1, name, row.Points, row.MatchesPlayed, row.Won, row.Lost, row.Tied, row.NetRunRate)
	}
	return strings.TrimRight(b.String(), "\n")
}
