package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/conectaribas/conectaribas/internal/config"
	"github.com/conectaribas/conectaribas/internal/domain/diagnosis"
	"github.com/conectaribas/conectaribas/internal/domain/firstaid"
	"github.com/conectaribas/conectaribas/internal/platform/db"
	"github.com/conectaribas/conectaribas/internal/platform/observe"
	"github.com/conectaribas/conectaribas/internal/seed"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "conectaribas",
		Short: "Conecta Ribas self-diagnosis service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(treeCmd())
	rootCmd.AddCommand(triageCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(w).Level(cfg.ZerologLevel()).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg, newLogger(cfg))
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(os.Stdout, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the built-in decision tree and first aid guides into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			data, err := seed.Default()
			if err != nil {
				return err
			}
			loader := seed.NewLoader(db.NewTxManager(pool), diagnosis.NewTreeRepoPG(pool),
				firstaid.NewGuideRepoPG(pool), observe.NewBroker(logger), logger)
			res, err := loader.Load(ctx, data)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			fmt.Printf("Loaded %d question(s), %d answer(s), %d guide(s).\n", res.Questions, res.Answers, res.Guides)
			return nil
		},
	}
}

func treeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Inspect the stored decision tree",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that every path through the decision tree ends in a result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := diagnosis.NewTree(diagnosis.NewTreeRepoPG(pool)).Validate(ctx)
			if err != nil {
				return err
			}
			return printTreeReport(os.Stdout, report)
		},
	})
	return cmd
}

// printTreeReport writes the report and returns an error when the tree has
// problems, so the command exits non-zero.
func printTreeReport(w io.Writer, report *diagnosis.Report) error {
	fmt.Fprintf(w, "Questions: %d\nAnswers:   %d\nOutcomes:  %d\n", report.Questions, report.Answers, report.Outcomes)
	if report.OK() {
		fmt.Fprintln(w, "Tree OK.")
		return nil
	}
	problems := report.Problems()
	for _, p := range problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	return fmt.Errorf("decision tree has %d problem(s)", len(problems))
}

func triageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triage <answer>...",
		Short: "Classify questionnaire answers with the fixed manual rule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printTriage(cmd.OutOrStdout(), diagnosis.Classify(args))
			return nil
		},
	}
}

func printTriage(w io.Writer, res diagnosis.ManualResult) {
	fmt.Fprintf(w, "%s (%s)\n", res.Title, res.Severity.Code())
	fmt.Fprintln(w, res.Description)
	if len(res.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Join(res.Recommendations, "\n"))
	}
}
