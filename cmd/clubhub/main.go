package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/clubhub/internal/bot"
	"github.com/jensholdgaard/clubhub/internal/bot/commands"
	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/config"
	"github.com/jensholdgaard/clubhub/internal/cricket"
	"github.com/jensholdgaard/clubhub/internal/health"
	"github.com/jensholdgaard/clubhub/internal/identity"
	"github.com/jensholdgaard/clubhub/internal/leader"
	"github.com/jensholdgaard/clubhub/internal/live"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/roster"
	"github.com/jensholdgaard/clubhub/internal/server"
	"github.com/jensholdgaard/clubhub/internal/session"
	"github.com/jensholdgaard/clubhub/internal/store"
	"github.com/jensholdgaard/clubhub/internal/telemetry"
	"github.com/jensholdgaard/clubhub/internal/tournament"
	"github.com/jensholdgaard/clubhub/internal/workflow"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/clubhub/internal/store/memstore"
	_ "github.com/jensholdgaard/clubhub/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	st, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer st.Closer.Close()

	logger.InfoContext(ctx, "store opened", slog.String("driver", cfg.Database.Driver))

	// Notifications go out as Discord DMs when a bot token is configured,
	// otherwise they are only logged.
	var sink notify.Sink = notify.LogSink{Logger: logger}
	var discordSession *discordgo.Session
	if cfg.Discord.Enabled() {
		discordSession, err = bot.NewSession(cfg.Discord)
		if err != nil {
			return err
		}
		sink = notify.NewDiscordSink(st.Users, discordSession)
	}
	notifier := notify.NewNotifier(sink, logger)
	hub := live.NewHub(logger, cfg.Server.AllowedOrigins)

	identities := identity.NewManager(st, logger, tp.TracerProvider, clk)
	rosters := roster.NewManager(st, logger, tp.TracerProvider)
	tournaments := tournament.NewManager(st, notifier, logger, tp.TracerProvider, clk)
	sessions := session.NewManager(st, notifier, logger, tp.TracerProvider, clk)
	workflows, err := workflow.NewManager(st, notifier, logger, tp.TracerProvider, tp.MeterProvider, clk)
	if err != nil {
		return fmt.Errorf("creating workflow manager: %w", err)
	}
	engine, err := cricket.NewEngine(st, notifier, hub, logger, tp.TracerProvider, tp.MeterProvider, clk)
	if err != nil {
		return fmt.Errorf("creating cricket engine: %w", err)
	}

	prober := health.NewProber(clk, logger, health.Check{Name: "database", Probe: st.Ping})

	srv := server.New(cfg.Server, server.Deps{
		Actors:     identities,
		Scorecards: engine,
		Standings:  tournaments,
		Sheets:     sessions,
		Rosters:    rosters,
		Live:       hub,
		Prober:     prober,
	}, logger, tp.TracerProvider)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.Discord.Enabled() {
		handlers := commands.NewHandlers(commands.Deps{
			Identity:  identities,
			Workflows: workflows,
			Matches:   engine,
			Standings: tournaments,
			Lookup:    commands.StoreLookup{Sports: st.Sports, Profiles: st.Profiles},
		}, logger, tp.TracerProvider)
		discordBot := bot.New(discordSession, cfg.Discord, handlers, logger)

		// Only one replica may hold the Discord gateway connection.
		elector := leader.New(cfg.LeaderElection, logger)
		g.Go(func() error { return elector.Run(ctx, discordBot.Run) })
	} else {
		logger.InfoContext(ctx, "discord token not set, running without the bot")
	}

	prober.SetReady(true)
	logger.InfoContext(ctx, "clubhub is running", slog.String("version", version))

	err = g.Wait()
	prober.SetReady(false)
	logger.Info("shutdown complete")
	return err
}
