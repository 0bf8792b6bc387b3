package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tether/internal/cliutil"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with tether configuration files",
	}
	cmd.AddCommand(newConfigLintCmd(ctx))
	cmd.AddCommand(newConfigShowCmd(ctx))
	return cmd
}

func newConfigLintCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate a tether configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.loadConfig(); err != nil {
				cmd.PrintErrln(err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", *ctx.configPath)
			return nil
		},
	}
}

func newConfigShowCmd(ctx *context) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			if !reveal {
				redacted := *cfg
				redacted.Server.Args = cliutil.RedactArgs(cfg.Server.Args)
				redacted.Server.Env = cliutil.RedactEnv(cfg.Server.Env)
				cfg = &redacted
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print credential-like values instead of masking them")
	return cmd
}
