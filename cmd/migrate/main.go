// Package main implements the database migration utility for the inbound-messages service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/popeskul/inbound-messages/internal/config"
	"github.com/popeskul/inbound-messages/internal/infrastructure/migrate"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath  string
	databaseURL string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the inbound-messages database schema",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "storage location, overrides config and DATABASE_URL")

	cmd.AddCommand(newUpCommand(opts))
	cmd.AddCommand(newDownCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))

	return cmd
}

func newUpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := opts.runner()
			if err != nil {
				return err
			}

			if err := runner.Run(); err != nil {
				return err
			}

			return printVersion(cmd, runner, "Successfully migrated to version")
		},
	}
}

func newDownCommand(opts *rootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("invalid steps %d: must be at least 1", steps)
			}

			runner, err := opts.runner()
			if err != nil {
				return err
			}

			for i := 0; i < steps; i++ {
				if err := runner.Rollback(); err != nil {
					return err
				}
			}

			return printVersion(cmd, runner, "Successfully rolled back to version")
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := opts.runner()
			if err != nil {
				return err
			}

			return printVersion(cmd, runner, "Current version:")
		},
	}
}

func (o *rootOptions) runner() (*migrate.Runner, error) {
	databaseURL := o.databaseURL
	if databaseURL == "" {
		cfg, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		databaseURL = cfg.Database.URL
	}

	return migrate.NewRunner(&migrate.Config{DatabaseURL: databaseURL}), nil
}

func printVersion(cmd *cobra.Command, runner *migrate.Runner, prefix string) error {
	version, dirty, err := runner.Version()
	if err != nil {
		return err
	}

	if dirty {
		cmd.Printf("%s %d (dirty)\n", prefix, version)
		return nil
	}

	cmd.Printf("%s %d\n", prefix, version)
	return nil
}
