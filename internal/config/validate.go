package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "server"
	}
	if c.Server.Runtime == "" {
		c.Server.Runtime = DefaultRuntime
	}
	if !c.Server.StopWait.IsSet() {
		c.Server.StopWait = NewDuration(DefaultStopWait)
	}
	if c.API.Addr == "" {
		c.API.Addr = DefaultAPIAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Probe != nil {
		if !c.Probe.Interval.IsSet() || c.Probe.Interval.Duration == 0 {
			c.Probe.Interval = NewDuration(DefaultProbeInterval)
		}
		if !c.Probe.Timeout.IsSet() || c.Probe.Timeout.Duration == 0 {
			c.Probe.Timeout = NewDuration(DefaultProbeTimeout)
		}
	}
}

// Validate enforces schema invariants.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("%s: is required", fieldPath("version"))
	}
	if strings.TrimSpace(c.Server.Command) == "" {
		return fmt.Errorf("%s: is required", fieldPath("server", "command"))
	}
	if c.Server.StopWait.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("server", "stopWait"))
	}
	for key := range c.Server.Env {
		if strings.TrimSpace(key) == "" || strings.ContainsRune(key, '=') {
			return fmt.Errorf("%s: invalid variable name %q", fieldPath("server", "env"), key)
		}
	}
	if c.Startup.Delay.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("startup", "delay"))
	}
	if c.Probe != nil {
		if err := validateProbe(c.Probe); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s: unsupported level %q", fieldPath("log", "level"), c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("%s: unsupported format %q", fieldPath("log", "format"), c.Log.Format)
	}
	return nil
}

func validateProbe(p *ProbeSpec) error {
	if p.HTTP == nil && p.TCP == nil {
		return fmt.Errorf("%s: http or tcp configuration is required", fieldPath("probe"))
	}
	if p.Interval.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("probe", "interval"))
	}
	if p.Timeout.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("probe", "timeout"))
	}
	if p.HTTP != nil {
		if p.HTTP.URL == "" {
			return fmt.Errorf("%s: is required", fieldPath("probe", "http", "url"))
		}
		u, err := url.Parse(p.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s: invalid url %q", fieldPath("probe", "http", "url"), p.HTTP.URL)
		}
		for _, code := range p.HTTP.ExpectStatus {
			if code < 100 || code > 599 {
				return fmt.Errorf("%s: invalid status %d", fieldPath("probe", "http", "expectStatus"), code)
			}
		}
	}
	if p.TCP != nil && strings.TrimSpace(p.TCP.Address) == "" {
		return fmt.Errorf("%s: is required", fieldPath("probe", "tcp", "address"))
	}
	return nil
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}
