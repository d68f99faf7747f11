// Package server exposes the HTTP surface: probes, read views, the session
// sheet endpoints and the live scorecard websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/config"
	"github.com/jensholdgaard/clubhub/internal/cricket"
	"github.com/jensholdgaard/clubhub/internal/health"
	"github.com/jensholdgaard/clubhub/internal/live"
	"github.com/jensholdgaard/clubhub/internal/session"
	"github.com/jensholdgaard/clubhub/internal/store"
	"github.com/jensholdgaard/clubhub/internal/tournament"
)

// MaxSheetSize caps an uploaded attendance sheet.
const MaxSheetSize = 1 << 20

// Actors resolves the caller named by the gateway.
type Actors interface {
	ResolveActor(ctx context.Context, userID string) (authz.Actor, error)
}

// Scorecards reads match scorecards.
type Scorecards interface {
	Scorecard(ctx context.Context, matchID string) (*cricket.Scorecard, error)
}

// Standings reads tournament tables.
type Standings interface {
	PointsTable(ctx context.Context, tournamentID string) ([]tournament.Standing, error)
	Leaderboard(ctx context.Context, tournamentID string) (*tournament.Leaderboard, error)
}

// Sheets handles coaching session attendance sheets.
type Sheets interface {
	Template(ctx context.Context, actor authz.Actor, sessionID string) ([]byte, error)
	UploadAttendance(ctx context.Context, actor authz.Actor, sessionID string, sheet io.Reader) (*session.UploadResult, error)
	End(ctx context.Context, actor authz.Actor, sessionID string, sheet io.Reader) (*session.Summary, error)
}

// Rosters moves sport profiles between teams.
type Rosters interface {
	SetTeam(ctx context.Context, actor authz.Actor, profileID, teamID string) (*store.PlayerSportProfile, error)
}

// Subscriber attaches websocket clients to a room.
type Subscriber interface {
	Serve(w http.ResponseWriter, r *http.Request, room string, snapshot *live.Message)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Actors     Actors
	Scorecards Scorecards
	Standings  Standings
	Sheets     Sheets
	Rosters    Rosters
	Live       Subscriber
	Prober     *health.Prober
}

// Server is the clubhub HTTP server.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger *slog.Logger
	tracer trace.Tracer
}

func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger, tp trace.TracerProvider) *Server {
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/clubhub/internal/server"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLog)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", UserHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.deps.Prober.Live)
	r.Get("/readyz", s.deps.Prober.Ready)

	r.Get("/ws/matches/{matchID}", s.watchMatch)

	r.Route("/api", func(r chi.Router) {
		r.Get("/matches/{matchID}/scorecard", s.getScorecard)

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Get("/points", s.getPoints)
			r.Get("/leaderboard", s.getLeaderboard)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/template", s.getTemplate)
				r.Post("/attendance", s.postAttendance)
				r.Post("/end", s.postEnd)
			})
			r.Put("/profiles/{profileID}/team", s.putTeam)
		})
	})

	return r
}

// Run serves until ctx is done, then drains connections within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
		)
	})
}
