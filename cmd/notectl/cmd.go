package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/sakif/notebox/internal/config"
	sqliteRepo "github.com/sakif/notebox/internal/repository/sqlite"
	"github.com/sakif/notebox/internal/tenant"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "notectl",
		Short:         "Manage notebox tenant databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log provisioning steps")

	logger := func(cmd *cobra.Command) *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(newConfigCmd(), newTenantCmd(logger))
	return root
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report every missing or invalid setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				errs := multierr.Errors(err)
				for _, e := range errs {
					fmt.Fprintln(cmd.OutOrStdout(), "✗", e)
				}
				return fmt.Errorf("%d configuration problem(s)", len(errs))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	})
	return cmd
}

func newTenantCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Inspect or provision a user's tenant database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "key <user-id>",
		Short: "Print the tenant database name and connection target for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := tenant.Key(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)

			cfg, err := config.Load()
			if err != nil || cfg.Turso.DatabaseURL == "" || cfg.Turso.TemplateDB == "" {
				return nil
			}
			target, err := tenant.ConnectionTarget(cfg.Turso.DatabaseURL, cfg.Turso.TemplateDB, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "exists <user-id>",
		Short: "Ask the control plane whether the user's tenant database exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ok, err := tenant.NewClient(cfg.ClientConfig()).Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			key, _ := tenant.Key(args[0])
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s exists\n", key)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist\n", key)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "provision <user-id>",
		Short: "Create the user's tenant database if needed and apply the notes schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			router, err := sqliteRepo.NewRouter(sqliteRepo.RouterConfig{
				Driver:      cfg.Turso.TenantDriver,
				URLTemplate: cfg.Turso.DatabaseURL,
				Placeholder: cfg.Turso.TemplateDB,
				AuthToken:   cfg.Turso.AuthToken,
			})
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, router.Close()) }()

			p := tenant.NewProvisioner(
				tenant.NewClient(cfg.ClientConfig()),
				router,
				cfg.ProvisionerOptions(),
				nil,
				logger(cmd),
			)
			if err := p.Provision(cmd.Context(), args[0]); err != nil {
				return err
			}

			key, _ := tenant.Key(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s ready\n", key)
			return nil
		},
	})

	return cmd
}
