// Package probe checks whether the supervised server answers on the network.
// Probes only report; they never change what the supervisor holds.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/Paintersrp/tether/internal/config"
)

// Prober defines a single reachability check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Result captures the outcome of a Check.
type Result struct {
	Reachable bool
	Err       error
	Latency   time.Duration
	CheckedAt time.Time
}

// New constructs a Prober for the supplied specification. A nil spec yields a
// nil Prober.
func New(spec *config.ProbeSpec) (Prober, error) {
	if spec == nil {
		return nil, nil
	}
	var probes []namedProber
	if spec.HTTP != nil {
		probes = append(probes, namedProber{alias: "http", probe: newHTTPProber(spec.HTTP)})
	}
	if spec.TCP != nil {
		probes = append(probes, namedProber{alias: "tcp", probe: newTCPProber(spec.TCP)})
	}
	switch len(probes) {
	case 0:
		return nil, fmt.Errorf("probe: missing configuration")
	case 1:
		return probes[0].probe, nil
	default:
		return allProber(probes), nil
	}
}

// Check runs p bounded by timeout.
func Check(ctx context.Context, p Prober, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	err := p.Probe(ctx)
	return Result{
		Reachable: err == nil,
		Err:       err,
		Latency:   time.Since(start),
		CheckedAt: start,
	}
}

type namedProber struct {
	alias string
	probe Prober
}

// allProber succeeds only when every configured probe succeeds.
type allProber []namedProber

func (a allProber) Probe(ctx context.Context) error {
	for _, p := range a {
		if err := p.probe.Probe(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.alias, err)
		}
	}
	return nil
}
