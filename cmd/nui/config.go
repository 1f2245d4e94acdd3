package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nui/internal/config"
	"nui/internal/validator"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or generate configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init PATH",
			Short: "Write the default configuration as YAML",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.Default().SaveConfig(args[0]); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "✅ wrote %s\n", args[0])

				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print a summary of the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.cfg.String())

				for _, src := range a.cfg.GetEnabledSources() {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", src.GetSource(), src.CountryCode)
				}

				return nil
			},
		},
	)

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema that serialized entries follow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(validator.EntrySchema())
			return err
		},
	}
}
