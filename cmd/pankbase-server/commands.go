package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pankbase/functional/internal/config"
	"github.com/pankbase/functional/internal/domain/cohort"
	"github.com/pankbase/functional/internal/platform/db"
	"github.com/pankbase/functional/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the external source registry schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})
	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.RegistryEnabled() {
		return nil, nil, errors.New("DATABASE_URL is required for migrations")
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status, at := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, at)
	}
}

type checkReport struct {
	Stats     cohort.Stats           `json:"stats"`
	Variables cohort.VariableCatalog `json:"variables"`
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the dataset, verify integrity and print the field catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context())
			if err != nil {
				var integrity *cohort.DataIntegrityError
				if errors.As(err, &integrity) {
					for _, v := range integrity.Violations {
						fmt.Fprintln(cmd.ErrOrStderr(), "violation:", v.String())
					}
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), checkReport{Stats: snap.Stats(), Variables: snap.Variables()})
		},
	}
}

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the filter metadata of the dataset as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap.Describe())
		},
	}
}

// loadSnapshot builds one snapshot without starting the server. Logs are
// suppressed so stdout carries only the report.
func loadSnapshot(ctx context.Context) (*cohort.Snapshot, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	store := cohort.NewStore(newLoader(cfg, zerolog.Nop()), zerolog.Nop())
	return store.Load(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
