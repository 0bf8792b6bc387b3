package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apihttp "github.com/Paintersrp/tether/internal/api/http"
	"github.com/Paintersrp/tether/internal/config"
	"github.com/Paintersrp/tether/internal/logging"
	"github.com/Paintersrp/tether/internal/runtime"
	_ "github.com/Paintersrp/tether/internal/runtime/process"
	"github.com/Paintersrp/tether/internal/supervisor"
)

const defaultConfigFile = "tether.yaml"

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	configPath := envOr("TETHER_CONFIG", defaultConfigFile)
	apiAddr := os.Getenv("TETHER_API")

	root := &cobra.Command{
		Use:   "tether",
		Short: "Single-instance process supervisor",
	}

	root.PersistentFlags().
		StringVarP(&configPath, "config", "c", configPath, "Path to tether configuration")
	root.PersistentFlags().StringVar(&apiAddr, "api", apiAddr, "Address of the HTTP control API (defaults to api.addr from the configuration)")

	ctx := &context{configPath: &configPath, apiAddr: &apiAddr}
	root.AddCommand(newServeCmd(ctx))
	root.AddCommand(newTuiCmd(ctx))
	root.AddCommand(newStartCmd(ctx))
	root.AddCommand(newStopCmd(ctx))
	root.AddCommand(newStatusCmd(ctx))
	root.AddCommand(newEventsCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	configPath *string
	apiAddr    *string

	mu  sync.Mutex
	cfg *config.Config
}

func (c *context) loadConfig() (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// apiAddress resolves the control API address: the --api flag or TETHER_API
// first, then the configuration file, then the built-in default.
// configFor returns a flag-only configuration when a command line follows
// "--", and the configuration file otherwise.
func (c *context) configFor(command []string) (*config.Config, error) {
	if len(command) == 0 {
		return c.loadConfig()
	}
	cfg := config.Default(command[0], command[1:]...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return cfg, nil
}

func (c *context) apiAddress() string {
	if c.apiAddr != nil && strings.TrimSpace(*c.apiAddr) != "" {
		return strings.TrimSpace(*c.apiAddr)
	}
	if cfg, err := c.loadConfig(); err == nil && cfg.API.Addr != "" {
		return cfg.API.Addr
	}
	return config.DefaultAPIAddr
}

func (c *context) apiClient() (*apihttp.Client, error) {
	return apihttp.NewClient(c.apiAddress())
}

func (c *context) newLogger(cfg *config.Config, w io.Writer) (*zap.SugaredLogger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, w)
	if err != nil {
		return nil, err
	}
	return logger.Sugar().Named("tether"), nil
}

func (c *context) newSupervisor(cfg *config.Config) (*supervisor.Supervisor, error) {
	launcher, err := runtime.Lookup(cfg.Server.Runtime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Server.Name, err)
	}
	return supervisor.New(launcher, cfg.LaunchSpec(), supervisor.WithStopWait(cfg.Server.StopWait.Duration)), nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
