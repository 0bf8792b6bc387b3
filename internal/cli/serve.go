package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Paintersrp/tether/internal/api"
	apihttp "github.com/Paintersrp/tether/internal/api/http"
	"github.com/Paintersrp/tether/internal/config"
	"github.com/Paintersrp/tether/internal/events"
	"github.com/Paintersrp/tether/internal/probe"
)

const eventBacklog = 64

var newAPIServer = apihttp.NewServer

// StartupHook runs once after the control API is up and the configured
// startup delay has elapsed.
type StartupHook func(stdcontext.Context, api.Controller) error

// startupHook is intentionally inert: the supervised server is only started
// on request.
var startupHook StartupHook = func(stdcontext.Context, api.Controller) error {
	return nil
}

func newServeCmd(ctx *context) *cobra.Command {
	var keepRunning bool
	cmd := &cobra.Command{
		Use:   "serve [-- command [args...]]",
		Short: "Run the supervisor with the HTTP control API",
		Long: "Run the supervisor with the HTTP control API. The supervised server comes from the\n" +
			"configuration file, or from the command line given after \"--\".",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configFor(args)
			if err != nil {
				return err
			}
			log, err := ctx.newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			stream := events.NewStream(eventBacklog)
			defer stream.Close()
			control, err := ctx.newControl(cfg, log, stream)
			if err != nil {
				return err
			}

			server, err := newAPIServer(apihttp.Config{
				Addr:       ctx.apiAddress(),
				Controller: control,
				Events:     stream,
				Logger:     log,
			})
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = stdcontext.Background()
			}
			serverCtx, cancel := stdcontext.WithCancel(runCtx)
			defer cancel()
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Run(serverCtx)
			}()

			readyTimer := time.NewTimer(200 * time.Millisecond)
			defer readyTimer.Stop()
			select {
			case err := <-errCh:
				return err
			case <-readyTimer.C:
			case <-runCtx.Done():
				cancel()
				return serverExitErr(<-errCh)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on %s\n", server.Addr())
			log.Infow("control api ready", "addr", server.Addr(), "server", cfg.Server.Name)

			go runStartupHook(serverCtx, cfg.Startup.Delay.Duration, control, log)

			var runErr error
			select {
			case err := <-errCh:
				runErr = serverExitErr(err)
			case <-runCtx.Done():
				cancel()
				runErr = serverExitErr(<-errCh)
			}

			stopOnExit(cmd, control, keepRunning)
			return runErr
		},
	}
	cmd.Flags().BoolVar(&keepRunning, "keep-running", false, "leave the supervised server running when tether exits")
	return cmd
}

func (c *context) newControl(cfg *config.Config, log *zap.SugaredLogger, stream *events.Stream) (*ControlAPI, error) {
	sup, err := c.newSupervisor(cfg)
	if err != nil {
		return nil, err
	}
	opts := []ControlOption{
		WithControlName(cfg.Server.Name),
		WithControlLogger(log.Named("control")),
		WithControlEvents(stream),
	}
	if cfg.Probe != nil {
		prober, err := probe.New(cfg.Probe)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithControlProbe(prober, cfg.Probe.Timeout.Duration))
	}
	return NewControlAPI(sup, opts...), nil
}

func runStartupHook(ctx stdcontext.Context, delay time.Duration, control api.Controller, log *zap.SugaredLogger) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	if err := startupHook(ctx, control); err != nil {
		log.Warnw("startup hook failed", "error", err)
	}
}

func serverExitErr(err error) error {
	if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
