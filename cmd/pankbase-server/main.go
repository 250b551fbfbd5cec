package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pankbase/functional/internal/config"
	"github.com/pankbase/functional/internal/domain/cohort"
	"github.com/pankbase/functional/internal/platform/datasource"
	"github.com/pankbase/functional/internal/platform/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "pankbase-server",
		Short:        "PanKbase functional data API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(describeCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset and start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newLoader reads the manifest named by DATA_MANIFEST, whose relative paths
// resolve against its own directory, or the standard layout under DATA_DIR.
func newLoader(cfg *config.Config, logger zerolog.Logger) *datasource.Loader {
	if cfg.DataManifest != "" {
		return datasource.NewLoader(cfg.DataManifest, "", logger)
	}
	return datasource.NewLoader("", cfg.DataDir, logger)
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: 10 * time.Second,
	})
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.IsDev() {
		logger.Warn().Msg("ENV=development: every unauthenticated request is granted the admin role")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := newLoader(cfg, logger)
	store := cohort.NewStore(loader, logger)
	if _, err := store.Load(ctx); err != nil {
		logger.Error().Err(err).Msg("initial dataset load failed")
		return err
	}

	var pool *pgxpool.Pool
	if cfg.RegistryEnabled() {
		pool, err = openPool(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to source registry database")
	} else {
		logger.Info().Msg("DATABASE_URL not set, external sources are kept in memory")
	}

	e := newServer(cfg, logger, store, pool)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.WatchData {
		w, err := datasource.NewWatcher(loader.WatchTargets, func(ctx context.Context) error {
			_, err := store.Reload(ctx)
			return err
		}, cfg.WatchDebounce, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
