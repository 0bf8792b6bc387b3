package config

import (
	"fmt"
	"time"

	"github.com/Paintersrp/tether/internal/runtime"
)

const (
	DefaultRuntime       = "process"
	DefaultAPIAddr       = "127.0.0.1:7663"
	DefaultStopWait      = 2 * time.Second
	DefaultProbeInterval = 5 * time.Second
	DefaultProbeTimeout  = time.Second
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// NewDuration returns an explicitly set Duration.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d, explicit: true}
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Config mirrors the tether.yaml document structure.
type Config struct {
	Version string      `yaml:"version"`
	Server  ServerSpec  `yaml:"server"`
	Probe   *ProbeSpec  `yaml:"probe,omitempty"`
	API     APISpec     `yaml:"api"`
	Startup StartupSpec `yaml:"startup"`
	Log     LogSpec     `yaml:"log"`

	// Path is the absolute location the document was loaded from, if any.
	Path string `yaml:"-"`
}

// ServerSpec describes the one process the supervisor launches.
type ServerSpec struct {
	Name        string            `yaml:"name"`
	Runtime     string            `yaml:"runtime"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args,omitempty"`
	Workdir     string            `yaml:"workdir"`
	Env         map[string]string `yaml:"env,omitempty"`
	EnvFromFile string            `yaml:"envFromFile,omitempty"`
	StopWait    Duration          `yaml:"stopWait"`
}

// ProbeSpec configures the reachability check reported alongside status.
type ProbeSpec struct {
	Interval Duration   `yaml:"interval"`
	Timeout  Duration   `yaml:"timeout"`
	HTTP     *HTTPProbe `yaml:"http,omitempty"`
	TCP      *TCPProbe  `yaml:"tcp,omitempty"`
}

// HTTPProbe checks that a URL answers with an expected status.
type HTTPProbe struct {
	URL          string `yaml:"url"`
	ExpectStatus []int  `yaml:"expectStatus,omitempty"`
}

// TCPProbe checks that an address accepts connections.
type TCPProbe struct {
	Address string `yaml:"address"`
}

// APISpec configures the HTTP control API.
type APISpec struct {
	Addr string `yaml:"addr"`
}

// StartupSpec configures the post-startup hook.
type StartupSpec struct {
	Delay Duration `yaml:"delay"`
}

// LogSpec configures the tether logger, not the supervised process.
type LogSpec struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LaunchSpec converts the server section into the launcher contract.
func (c *Config) LaunchSpec() runtime.LaunchSpec {
	spec := runtime.LaunchSpec{
		Name:    c.Server.Name,
		Command: c.Server.Command,
		Args:    c.Server.Args,
		Workdir: c.Server.Workdir,
		Env:     c.Server.Env,
	}
	return spec.Clone()
}

// Clone returns a deep copy of the probe specification.
func (p *ProbeSpec) Clone() *ProbeSpec {
	if p == nil {
		return nil
	}
	dup := *p
	if p.HTTP != nil {
		hp := *p.HTTP
		hp.ExpectStatus = append([]int(nil), p.HTTP.ExpectStatus...)
		dup.HTTP = &hp
	}
	if p.TCP != nil {
		tcp := *p.TCP
		dup.TCP = &tcp
	}
	return &dup
}
