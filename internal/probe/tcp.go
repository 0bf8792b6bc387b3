package probe

import (
	"context"
	"fmt"
	"net"

	"github.com/Paintersrp/tether/internal/config"
)

// tcpProber treats the server as online once its port accepts a connection.
// Nothing is written; the connection is closed right after the handshake.
type tcpProber struct {
	addr string
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func newTCPProber(spec *config.TCPProbe) Prober {
	d := &net.Dialer{KeepAlive: -1}
	return &tcpProber{addr: spec.Address, dial: d.DialContext}
}

func (p *tcpProber) Probe(ctx context.Context) error {
	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("server not accepting connections on %s: %w", p.addr, err)
	}
	_ = conn.Close()
	return nil
}
