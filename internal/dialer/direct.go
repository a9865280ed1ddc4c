package dialer

import (
	"context"
	"fmt"
	"net"
)

// DirectDialer connects straight to the address it is given.
type DirectDialer struct {
	cfg Config
}

// NewDirectDialer returns a DirectDialer applying the configured timeout and
// TCP keepalive settings.
func NewDirectDialer(cfg Config) *DirectDialer {
	return &DirectDialer{cfg: cfg}
}

func (d *DirectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dd := net.Dialer{Timeout: d.cfg.DialTimeout, KeepAliveConfig: d.cfg.KeepAlive}

	conn, err := dd.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}

	return conn, nil
}
