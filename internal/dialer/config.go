package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds a single outbound connect. Zero means no limit.
	DialTimeout time.Duration
	KeepAlive   net.KeepAliveConfig
}
