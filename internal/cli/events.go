package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newEventsCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream supervisor events from the control API as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			runCtx := commandContext(cmd)
			stream, err := client.Events(runCtx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for evt := range stream {
				if err := enc.Encode(evt); err != nil {
					return fmt.Errorf("write event: %w", err)
				}
			}
			if runCtx.Err() != nil {
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "event stream closed by server")
			return nil
		},
	}
	return cmd
}
