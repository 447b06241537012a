package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gamecenter/config"
	"gamecenter/internal/db"
	"gamecenter/internal/events"
	"gamecenter/internal/gamecenter"
	"gamecenter/internal/nats"
	"gamecenter/internal/server"
	"gamecenter/internal/settings"
	"gamecenter/internal/store"
	temporal "gamecenter/internal/workflow"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(&cfg.Log)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}

	s, auditLog, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}

	app := gamecenter.New(s,
		gamecenter.WithBilling(settings.Billing{DefaultRate: cfg.Billing.DefaultRate, Rates: cfg.Billing.Rates}),
		gamecenter.WithLocation(loc),
		gamecenter.WithRetryInterval(cfg.Storage.RetryInterval),
	)
	var audit *events.Queue
	stopAudit := func() {}
	if auditLog != nil {
		audit = events.NewQueue("audit", 1024, auditLog.Handle)
		stopAudit = app.Bus.Subscribe(">", audit.Handle)
	}

	ctx := context.Background()
	if err := app.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore game center state")
	}

	if cfg.NATS.Enabled {
		conn, js, err := nats.Connect(&cfg.NATS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer conn.Close()
		if err := nats.ConfigureStream(js, &cfg.NATS.Stream); err != nil {
			log.Fatal().Err(err).Msg("failed to configure JetStream")
		}
		app.Bus.Subscribe(">", nats.NewForwarder(js, cfg.NATS.SubjectPrefix).Handle)
	}

	if cfg.Temporal.Enabled {
		c, err := temporal.Dial(&cfg.Temporal)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Temporal")
		}
		defer c.Close()
		w, err := temporal.StartWorker(c, cfg.Temporal.TaskQueue, app.Tournaments)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start Temporal worker")
		}
		defer w.Stop()
		app.SetTournamentEngine(temporal.NewEngine(c, cfg.Temporal.TaskQueue, app.Tournaments))
	}

	srv := server.NewServer(&cfg.Server, app)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.StartServer() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := app.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush state")
	}
	stopAudit()
	if audit != nil {
		audit.Close()
	}
	log.Info().Msg("game center stopped")
}

func setupLogging(cfg *config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// openStore builds the document store for the configured driver. The
// postgres driver also hands back the event audit log.
func openStore(cfg *config.Config) (store.Store, *db.AuditLog, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		gdb, err := db.InitDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(gdb); err != nil {
			return nil, nil, err
		}
		return db.NewKVStore(gdb), db.NewAuditLog(gdb), nil
	case config.StorageMemory:
		log.Warn().Msg("memory storage selected, state is lost on exit")
		return store.NewMemory(), nil, nil
	default:
		f, err := store.NewFile(cfg.Storage.Dir)
		return f, nil, err
	}
}
