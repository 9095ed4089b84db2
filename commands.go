package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/likebounty/app/dto"
	"github.com/amirphl/likebounty/app/scheduler"
	"github.com/amirphl/likebounty/app/services"
	"github.com/amirphl/likebounty/config"
	"github.com/amirphl/likebounty/logger"
	"github.com/amirphl/likebounty/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loadRuntime loads the configuration and builds the process logger
func loadRuntime() (*config.ProductionConfig, *zap.Logger, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log = log.With(
		zap.String("service", programName),
		zap.String("version", cfg.Deployment.Version),
		zap.String("environment", cfg.Deployment.Environment),
	)
	return cfg, log, nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the fallback scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := initializeApplication(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Close()

			if err := app.startFallbackScheduler(ctx, cfg.Registry); err != nil {
				return err
			}
			app.router.SetupRoutes()

			serverErr := make(chan error, 1)
			go func() {
				address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
				serverErr <- app.router.Start(address)
			}()

			select {
			case <-ctx.Done():
				log.Info("Shutting down gracefully")
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("server stopped: %w", err)
				}
			}

			// Stop background workers
			app.stopWorkers()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()

			if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
				log.Error("Error during shutdown", zap.Error(err))
			}

			log.Info("Server stopped")
			return nil
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			db, err := initializeDatabase(cfg.Database, log)
			if err != nil {
				return err
			}
			if err := repository.Migrate(db); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info("Database schema is up to date", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func issueTokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue-token <identity>",
		Short: "Print a bearer token asserting the given identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.JWT.AccessTokenTTL
			}

			tokens, err := services.NewTokenService(ttl, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SecretKey)
			if err != nil {
				return err
			}
			token, claims, err := tokens.GenerateToken(args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dto.IssueTokenResponse{
				Identity:  claims.Identity,
				Token:     token,
				ExpiresAt: claims.ExpiresAt,
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_ACCESS_TOKEN_TTL)")
	return cmd
}

func fallbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fallback",
		Short: "Run one fallback selection pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			app, err := initializeApplication(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Close()

			job, err := scheduler.NewFallbackScheduler(app.registry, cfg.Registry.FallbackCron, log)
			if err != nil {
				return err
			}
			selected := job.RunOnce(cmd.Context())
			fmt.Fprintf(os.Stdout, "selected applicants for %d campaign(s)\n", selected)
			return nil
		},
	}
}
