package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tether/internal/api"
)

func newStartCmd(ctx *context) *cobra.Command {
	return newOperationCmd(ctx, "start", "Start the supervised server through the control API", api.Controller.Start)
}

func newStopCmd(ctx *context) *cobra.Command {
	return newOperationCmd(ctx, "stop", "Stop the supervised server through the control API", api.Controller.Stop)
}

func newOperationCmd(ctx *context, use, short string, op func(api.Controller, stdcontext.Context) (*api.OperationResult, error)) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			res, err := op(client, commandContext(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw operation result")
	return cmd
}

func commandContext(cmd *cobra.Command) stdcontext.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return stdcontext.Background()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
