package proxy

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/koblas/internal/socks5"
)

type Config struct {
	// MaxConns caps the number of connections handled at once. Connections
	// accepted beyond it are closed immediately.
	MaxConns int

	// NegotiationTimeout bounds the handshake and request phases. Zero
	// means no limit.
	NegotiationTimeout time.Duration

	// Dialer opens connections to CONNECT destinations.
	Dialer socks5.Dialer

	// Resolver looks up domain destinations. Nil uses net.DefaultResolver.
	Resolver socks5.Resolver

	Logger zerolog.Logger

	// Anonymize drops client and destination addresses from log events.
	Anonymize bool
}
