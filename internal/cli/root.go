// Package cli implements the pointsctl operator commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/service"
	"github.com/points-ledger-engine/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Runtime is what commands operate on
type Runtime struct {
	Config   *config.Config
	Services *service.Services
	// Migrator is nil when the runtime is not backed by PostgreSQL
	Migrator Migrator
	Close    func() error
}

// Migrator applies schema migrations
type Migrator interface {
	RunMigrations(path string) error
	MigrateDown(path string, steps int) error
}

// Opener builds the runtime for a command
type Opener func(cfg *config.Config, log zerolog.Logger) (*Runtime, error)

// OpenPostgres connects to the configured database
func OpenPostgres(cfg *config.Config, log zerolog.Logger) (*Runtime, error) {
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Config:   cfg,
		Services: service.NewServices(repository.New(db), cfg, log),
		Migrator: db,
		Close:    db.Close,
	}, nil
}

// NewRootCommand builds the pointsctl command tree
func NewRootCommand(open Opener) *cobra.Command {
	var (
		rt       *Runtime
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:           "pointsctl",
		Short:         "Operator tooling for the points ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logLevel, "pretty")
			rt, err = open(cfg, log)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt != nil && rt.Close != nil {
				return rt.Close()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runtime := func() *Runtime { return rt }
	rootCmd.AddCommand(
		migrateCmd(runtime),
		reconcileCmd(runtime),
		auditCmd(runtime),
		leaderboardCmd(runtime),
		balanceCmd(runtime),
	)
	return rootCmd
}

func migrateCmd(rt func() *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			if r.Migrator == nil {
				return fmt.Errorf("migrations require a database")
			}
			if err := r.Migrator.RunMigrations(r.Config.Database.MigrationsPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations, one step by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer")
				}
				steps = n
			}

			r := rt()
			if r.Migrator == nil {
				return fmt.Errorf("migrations require a database")
			}
			if err := r.Migrator.MigrateDown(r.Config.Database.MigrationsPath, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}

	cmd.AddCommand(up, down)
	return cmd
}

func reconcileCmd(rt func() *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Resume stale workflow intents once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rt().Services.Reconcile.Sweep(cmd.Context())
			if result != nil {
				if encErr := printJSON(cmd.OutOrStdout(), result); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
}

func auditCmd(rt func() *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Replay the ledger and compare it with stored balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := rt().Services.Ledger.Audit(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Drifts) > 0 {
				return fmt.Errorf("%d balance(s) drifted from the ledger", len(report.Drifts))
			}
			return nil
		},
	}
}

func leaderboardCmd(rt func() *Runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the ledger leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := rt().Services.Ranking.GetLedgerLeaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				tier := "-"
				if e.PrizeTier != nil {
					tier = string(*e.PrizeTier)
				}
				fmt.Fprintf(out, "%3d  %-32s %10d  %s\n", e.Rank, e.UserID, e.PointsBalance, tier)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (0 for the configured default)")
	return cmd
}

func balanceCmd(rt func() *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Print a user's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := rt().Services.Ledger.GetUserBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
