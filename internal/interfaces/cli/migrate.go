package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the override store schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ []string) error {
			if err := m.Up(cmd.Context()); err != nil {
				return err
			}
			PrintSuccess(cmd, "schema is up to date")
			return nil
		}),
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ []string) error {
			if err := m.Down(cmd.Context(), steps); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d step(s)", steps))
			return nil
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ []string) error {
			version, dirty, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			files, err := postgres.MigrationFiles()
			if err != nil {
				return err
			}
			return PrintResult(cmd, migrationStatus{Version: version, Dirty: dirty, Available: len(files)})
		}),
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Record VERSION as applied to recover from a dirty schema",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.InvalidParam("version must be an integer").WithDetail(args[0])
			}
			if err := m.Force(cmd.Context(), version); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("forced version %d", version))
			return nil
		}),
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

// withMigrator opens the configured database for the duration of fn.
func withMigrator(fn func(cmd *cobra.Command, m *postgres.Migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cliCtx, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		if !cliCtx.Config.Database.Enabled() {
			return errors.New(errors.ErrCodeInvalidConfig, "migrate needs database.host")
		}
		conn, err := postgres.NewConnection(cliCtx.Config.Database, cliCtx.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := commandContext(cmd, cliCtx)
		defer cancel()
		cmd.SetContext(ctx)
		return fn(cmd, postgres.NewMigrator(conn.DB(), cliCtx.Logger), args)
	}
}

type migrationStatus struct {
	Version   uint `json:"version"`
	Dirty     bool `json:"dirty"`
	Available int  `json:"available"`
}

func (s migrationStatus) String() string {
	state := "clean"
	if s.Dirty {
		state = "dirty"
	}
	return fmt.Sprintf("version %d of %d (%s)", s.Version, s.Available, state)
}
