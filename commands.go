package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"phrase-game/config"
	"phrase-game/database"
	"phrase-game/handlers"
	"phrase-game/metrics"
	"phrase-game/middleware"
	"phrase-game/services"
	"phrase-game/utils"
	"phrase-game/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "phrase-game",
		Short:         "Turn-based phrase party game server.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file to read before the environment")

	load := func() (config.Config, error) {
		if envFile != "" {
			return config.Load(envFile)
		}
		return config.Load()
	}

	cmd.AddCommand(
		newServeCmd(logger, load),
		newMigrateCmd(logger, load),
		newResetCmd(logger, load),
	)
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

type configLoader func() (config.Config, error)

func newServeCmd(logger *slog.Logger, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func newMigrateCmd(logger *slog.Logger, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if _, err := openDatabase(cfg); err != nil {
				return err
			}
			logger.Info("schema up to date", "driver", cfg.DatabaseDriver)
			return nil
		},
	}
}

func newResetCmd(logger *slog.Logger, load configLoader) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe every round, account and result except the root admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			svc, err := buildServices(db, cfg, logger, nil)
			if err != nil {
				return err
			}
			if err := svc.Controller.Bootstrap(cmd.Context(), cfg.RootAdminCredential); err != nil {
				return err
			}
			if err := svc.Controller.Reset(cmd.Context(), confirm); err != nil {
				if errors.Is(err, services.ErrNotConfirmed) {
					return errors.New("refusing to reset without --confirm")
				}
				return err
			}
			logger.Info("game reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "really wipe the game")
	return cmd
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func buildServices(db *gorm.DB, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (handlers.Services, error) {
	policy, err := services.ParseAggregationPolicy(cfg.ScoreAggregation)
	if err != nil {
		return handlers.Services{}, err
	}

	ledger := services.NewLedgerService(db, logger)
	shop := services.NewShopService(db, logger, m)
	shop.DuelTTL = cfg.DuelTTL

	return handlers.Services{
		Ledger:      ledger,
		Rounds:      services.NewRoundService(db, logger),
		Submissions: services.NewSubmissionService(db, logger, m),
		Ballots:     services.NewBallotService(db, logger, m),
		Shop:        shop,
		Settings:    services.NewSettingsService(db, logger),
		History:     services.NewHistoryService(db, logger),
		Controller:  services.NewRoundController(db, ledger, cfg.RootAdminIdentity, policy, logger, m),
	}, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc, err := buildServices(db, cfg, logger, m)
	if err != nil {
		return err
	}
	if err := svc.Controller.Bootstrap(ctx, cfg.RootAdminCredential); err != nil {
		return fmt.Errorf("bootstrap game: %w", err)
	}

	sweeper, err := svc.Shop.StartDuelSweeper(ctx, cfg.DuelSweepInterval)
	if err != nil {
		return fmt.Errorf("start duel sweeper: %w", err)
	}
	defer func() { _ = sweeper.Shutdown() }()

	if cfg.Archive.Enabled() {
		store, err := utils.NewR2Store(ctx, utils.R2Options{
			AccountID:       cfg.Archive.AccountID,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			AccessKeySecret: cfg.Archive.AccessKeySecret,
			Bucket:          cfg.Archive.Bucket,
			CDNBaseURL:      cfg.Archive.CDNBaseURL,
		})
		if err != nil {
			return err
		}
		archiver := workers.NewArchiveWorker(store, svc.History, svc.Settings, logger)
		go workers.PollArchive(ctx, archiver, cfg.ArchiveInterval)
		logger.Info("round archive enabled", "bucket", cfg.Archive.Bucket)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	tokens := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	handlers.Setup(app, handlers.New(svc, tokens, logger))
	handlers.SetupMetricsRoute(app, reg)

	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(fmt.Sprintf(":%d", cfg.Port))
	}()
	logger.Info("server running", "port", cfg.Port, "origins", cfg.AllowedOrigins)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	return app.ShutdownWithTimeout(10 * time.Second)
}
