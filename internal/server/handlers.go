package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/cricket"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/live"
)

var ErrBadBody = domainerr.Precondition("bad_body", "request body must be a JSON object")

// watchMatch subscribes the caller to a match's live scorecard. The
// current scorecard is sent first.
func (s *Server) watchMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	card, err := s.deps.Scorecards.Scorecard(r.Context(), matchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.deps.Live.Serve(w, r, cricket.Room(matchID), &live.Message{Type: "scorecard", Payload: card})
}

func (s *Server) getScorecard(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	ctx, span := s.tracer.Start(r.Context(), "Server.getScorecard",
		trace.WithAttributes(attribute.String("match_id", matchID)),
	)
	defer span.End()

	card, err := s.deps.Scorecards.Scorecard(ctx, matchID)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) getPoints(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")
	ctx, span := s.tracer.Start(r.Context(), "Server.getPoints",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	table, err := s.deps.Standings.PointsTable(ctx, tournamentID)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tournament_id": tournamentID,
		"standings":     table,
	})
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")
	ctx, span := s.tracer.Start(r.Context(), "Server.getLeaderboard",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	board, err := s.deps.Standings.Leaderboard(ctx, tournamentID)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx, span := s.tracer.Start(r.Context(), "Server.getTemplate",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	sheet, err := s.deps.Sheets.Template(ctx, actorFrom(ctx), sessionID)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_%s.csv"`, sessionID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(sheet); err != nil {
		s.logger.WarnContext(ctx, "writing template", slog.Any("error", err))
	}
}

func (s *Server) postAttendance(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx, span := s.tracer.Start(r.Context(), "Server.postAttendance",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	body := http.MaxBytesReader(w, r.Body, MaxSheetSize)
	res, err := s.deps.Sheets.UploadAttendance(ctx, actorFrom(ctx), sessionID, body)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postEnd(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx, span := s.tracer.Start(r.Context(), "Server.postEnd",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	body := http.MaxBytesReader(w, r.Body, MaxSheetSize)
	sum, err := s.deps.Sheets.End(ctx, actorFrom(ctx), sessionID, body)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type teamRequest struct {
	TeamID string `json:"team_id"`
}

// putTeam places a sport profile on a team. An empty team_id releases it.
func (s *Server) putTeam(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	ctx, span := s.tracer.Start(r.Context(), "Server.putTeam",
		trace.WithAttributes(attribute.String("profile_id", profileID)),
	)
	defer span.End()

	var req teamRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		s.writeError(w, r.WithContext(ctx), ErrBadBody)
		return
	}
	psp, err := s.deps.Rosters.SetTeam(ctx, actorFrom(ctx), profileID, req.TeamID)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, psp)
}
