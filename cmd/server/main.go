package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hongminglow/staff-portal/internal/auth"
	"github.com/hongminglow/staff-portal/internal/config"
	"github.com/hongminglow/staff-portal/internal/server"
	"github.com/hongminglow/staff-portal/internal/storage/postgres"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	loadLocalEnv(logger)

	if err := newRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "portal",
		Short:        "Staff portal user administration service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(logger), newMigrateCmd(logger), newTokenCmd())
	return root
}

func newServeCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("init database: %w", err)
			}
			defer pool.Close()

			if cfg.MigrateOnStart {
				if err := postgres.Migrate(ctx, pool, cfg.SuperAdminEmail); err != nil {
					return err
				}
				logger.Info("schema migrated")
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := server.New(cfg, postgres.NewGateway(pool), logger, reg)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.WithField("addr", cfg.HTTPAddress()).Info("staff portal listening")
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.WithError(err).Warn("graceful shutdown error")
				}
				return nil
			})
			return g.Wait()
		},
	}
}

func newMigrateCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Install the profile schema and administration functions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			pool, err := postgres.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("init database: %w", err)
			}
			defer pool.Close()

			if err := postgres.Migrate(cmd.Context(), pool, cfg.SuperAdminEmail); err != nil {
				return err
			}
			logger.WithField("super_admin", cfg.SuperAdminEmail).Info("schema migrated")
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		id    string
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is required")
			}
			tm := auth.NewTokenManager(secret, os.Getenv("JWT_ISSUER"), ttl)
			token, err := tm.Generate(auth.Principal{ID: id, Email: email})
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Principal id (sub claim)")
	cmd.Flags().StringVar(&email, "email", "", "Principal email")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loadConfig(logger *logrus.Logger) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)
	return cfg, nil
}

func loadLocalEnv(logger *logrus.Logger) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found; relying on existing environment")
	}
}
