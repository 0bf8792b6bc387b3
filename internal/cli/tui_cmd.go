package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/config"
	"github.com/Paintersrp/tether/internal/events"
	"github.com/Paintersrp/tether/internal/supervisor"
	"github.com/Paintersrp/tether/internal/tui"
)

func newTuiCmd(ctx *context) *cobra.Command {
	var remote bool
	var keepRunning bool
	cmd := &cobra.Command{
		Use:   "tui [-- command [args...]]",
		Short: "Launch the interactive control interface",
		Long: "Launch the interactive control interface. By default the supervisor runs inside this process;\n" +
			"with --remote the interface drives a `tether serve` instance through its control API.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}
			if remote {
				return runRemoteTUI(cmd, ctx)
			}
			return runLocalTUI(cmd, ctx, args, keepRunning)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "drive a running `tether serve` instance instead of a local supervisor")
	cmd.Flags().BoolVar(&keepRunning, "keep-running", false, "leave the supervised server running when the interface exits (local mode)")
	return cmd
}

func runLocalTUI(cmd *cobra.Command, ctx *context, command []string, keepRunning bool) error {
	cfg, err := ctx.configFor(command)
	if err != nil {
		return err
	}
	// The terminal belongs to the interface; logs would corrupt the screen.
	log, err := ctx.newLogger(cfg, io.Discard)
	if err != nil {
		return err
	}

	stream := events.NewStream(eventBacklog)
	defer stream.Close()
	control, err := ctx.newControl(cfg, log, stream)
	if err != nil {
		return err
	}
	sub, release, _ := stream.Subscribe(eventBacklog)
	defer release()

	runCtx := commandContext(cmd)
	ui := tui.New(control, append(tuiOptions(cfg), tui.WithEvents(sub))...)
	runErr := ui.Run(runCtx)
	stopOnExit(cmd, control, keepRunning)
	return runErr
}

// stopOnExit stops the local child after the interface has returned. The
// command context is normally cancelled by then (signal or quit), so the stop
// keeps its values but not its cancellation.
func stopOnExit(cmd *cobra.Command, control api.Controller, keepRunning bool) {
	if keepRunning {
		return
	}
	res, err := control.Stop(stdcontext.WithoutCancel(commandContext(cmd)))
	switch {
	case err != nil:
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	case res.Outcome != supervisor.OutcomeNotRunning.String():
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
}

func runRemoteTUI(cmd *cobra.Command, ctx *context) error {
	client, err := ctx.apiClient()
	if err != nil {
		return err
	}
	runCtx, cancel := stdcontext.WithCancel(commandContext(cmd))
	defer cancel()
	if _, err := client.Status(runCtx); err != nil {
		return fmt.Errorf("connect to %s: %w", ctx.apiAddress(), err)
	}

	var cfg *config.Config
	if loaded, err := ctx.loadConfig(); err == nil {
		cfg = loaded
	}
	opts := tuiOptions(cfg)
	opts = append(opts, tui.WithTitle("tether (remote "+ctx.apiAddress()+")"))
	if stream, err := client.Events(runCtx); err == nil {
		opts = append(opts, tui.WithEvents(stream))
	}
	return tui.New(client, opts...).Run(runCtx)
}

func tuiOptions(cfg *config.Config) []tui.Option {
	if cfg == nil {
		return nil
	}
	opts := []tui.Option{tui.WithTitle("tether: " + cfg.Server.Name)}
	if cfg.Probe != nil {
		opts = append(opts, tui.WithRefreshInterval(cfg.Probe.Interval.Duration))
	}
	return opts
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	out, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(out.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}
