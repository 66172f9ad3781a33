package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"minshare/internal/allocation"
	"minshare/internal/backend"
	"minshare/internal/cli"
	"minshare/internal/config"
	"minshare/internal/core"
	"minshare/internal/events"
	"minshare/internal/log"
	"minshare/internal/services"
	"minshare/internal/storage"
)

// env is what the commands need from the process; tests swap it.
type env struct {
	loadConfig func() (*config.Config, error)
	openStore  func(cfg *config.Config, logger *log.Logger) (backend.Store, error)
	logger     *log.Logger
}

func defaultEnv() env {
	logger := cli.SetupLogger("warn")
	cli.LoadEnvFile(logger)
	return env{
		loadConfig: cli.LoadAndValidateConfig,
		openStore:  cli.OpenBackend,
		logger:     logger,
	}
}

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:           "minshare-admin",
		Short:         "Club administration for monthly minimum allocations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newOverviewCmd(e),
		newResetCmd(e),
		newMigrateCmd(e),
		newAdminsCmd(e),
	)
	return root
}

// session opens the store and builds the services a command uses.
type session struct {
	cfg    *config.Config
	store  backend.Store
	engine *allocation.Engine
	admin  *services.AdminService
}

func (e env) open() (*session, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := e.openStore(cfg, e.logger)
	if err != nil {
		return nil, err
	}
	engine := allocation.New(store, events.NewHub(), allocation.Config{
		RequiredMinimum: cfg.Minimum(),
		Resolver:        core.NewResolver(cfg.Location()),
		Logger:          e.logger,
	})
	admin := services.NewAdminService(store, store, engine, services.AdminConfig{Logger: e.logger})
	return &session{cfg: cfg, store: store, engine: engine, admin: admin}, nil
}

func (s *session) period(flag string) (core.PeriodKey, error) {
	if flag == "" {
		return s.engine.Resolver().CurrentPeriodKey(), nil
	}
	return core.ParsePeriodKey(flag)
}

func newOverviewCmd(e env) *cobra.Command {
	var (
		period string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show pool totals and every member's status for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.store.Close()

			p, err := s.period(period)
			if err != nil {
				return err
			}
			ov, err := s.admin.Overview(cmd.Context(), p)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ov)
			}
			return printOverview(cmd.OutOrStdout(), ov)
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "Period as YYYY-MM (default: current month)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printOverview(out io.Writer, ov services.Overview) error {
	s := ov.Summary
	fmt.Fprintf(out, "Period %s: %d members, %d full usage\n", s.Period, s.Members, s.FullUsage)
	fmt.Fprintf(out, "Total pool %s  Staff Food %s (%d)  Charity %s (%d)\n\n",
		s.Total, s.Staff, s.StaffCount, s.Charity, s.CharityCount)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER\tUSAGE\tMINIMUM\tDONATED\tTARGET\tFULL\tTX")
	for _, m := range ov.Members {
		target := "-"
		if m.AllocationTarget != nil {
			target = m.AllocationTarget.Label()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%d\n",
			m.Name, m.ActualUsage, m.RequiredMinimum, m.DonatedAmount, target, m.IsFullUsage, m.Transactions)
	}
	return tw.Flush()
}

func newResetCmd(e env) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "reset <memberId>",
		Short: "Delete and recreate a member's status for a period",
		Long: "Delete and recreate a member's status for a period.\n" +
			"Running servers see the change on their next read; open streams are not notified.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.store.Close()

			p, err := s.period(period)
			if err != nil {
				return err
			}
			st, err := s.admin.ResetMember(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s for %s (minimum %s)\n", st.MemberID, st.Period, st.RequiredMinimum)
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "Period as YYYY-MM (default: current month)")
	return cmd
}

func newMigrateCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			if backend.BackendType(cfg.DataBackend) != backend.SQLiteBackend {
				return errors.New("migrate requires DATA_BACKEND=sqlite")
			}
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}

func newAdminsCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "admins",
		Short: "List the privileged email addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			emails := cfg.Allowlist().Emails()
			if len(emails) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No admins configured (set ADMIN_EMAILS or admin_emails)")
				return nil
			}
			for _, email := range emails {
				fmt.Fprintln(cmd.OutOrStdout(), email)
			}
			return nil
		},
	}
}
