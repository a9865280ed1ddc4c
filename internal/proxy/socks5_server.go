package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/die-net/koblas/internal/socks5"
)

// SOCKS5Server accepts SOCKS5 clients, admits at most cfg.MaxConns of them
// at a time and relays each admitted CONNECT to its destination.
type SOCKS5Server struct {
	ctx       context.Context
	cfg       Config
	slots     *Slots
	connector *socks5.Connector
	log       zerolog.Logger
}

func NewSOCKS5Server(ctx context.Context, cfg Config) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{
		ctx:       ctx,
		cfg:       cfg,
		slots:     NewSlots(cfg.MaxConns),
		connector: &socks5.Connector{Dialer: cfg.Dialer, Resolver: cfg.Resolver},
		log:       cfg.Logger,
	}
}

// Active returns the number of connections currently being handled.
func (s *SOCKS5Server) Active() int {
	return s.slots.Active()
}

// Serve accepts connections on ln until it is closed. Other accept errors
// are logged and retried with a short backoff.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, time.Second)
			}
			s.log.Error().Err(err).Dur("retry_in", delay).Msg("accept failed")

			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return s.ctx.Err()
			}
			continue
		}
		delay = 0

		if !s.slots.TryAcquire() {
			ev := s.log.Debug().Int("limit", s.slots.Limit())
			if !s.cfg.Anonymize {
				ev = ev.Str("client", c.RemoteAddr().String())
			}
			ev.Msg("connection limit reached, rejecting")
			shutdown(c)
			continue
		}

		go s.handleConn(c)
	}
}

func (s *SOCKS5Server) handleConn(conn net.Conn) {
	log := s.log
	if !s.cfg.Anonymize {
		log = log.With().
			Str("client", conn.RemoteAddr().String()).
			Str("conn_id", uuid.NewString()).
			Logger()
	}

	log.Info().Msg("connected")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("connection handler panicked")
		}
		s.slots.Release()
		log.Info().Msg("disconnected")
		shutdown(conn)
	}()

	if err := s.handle(conn, &log); err != nil {
		log.Error().Err(err).Stringer("kind", socks5.Classify(err)).Msg("connection failed")
	}
}

func (s *SOCKS5Server) handle(conn net.Conn, log *zerolog.Logger) error {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Server shutdown interrupts whichever phase the connection is in.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	if _, err := socks5.Negotiate(conn); err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}

	hdr, err := socks5.ReadRequestHeader(conn)
	if err != nil {
		return err
	}

	dest, dst, err := s.connector.Connect(ctx, conn, hdr)
	rep := socks5.ReplyCode(err)
	if werr := socks5.WriteReply(conn, rep); werr != nil {
		if dest != nil {
			_ = dest.Close()
		}
		if err != nil {
			return err
		}
		return werr
	}
	if err != nil {
		log.Debug().Uint8("reply", rep).Msg("request rejected")
		return err
	}

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	if !s.cfg.Anonymize {
		log.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("peer", dest.RemoteAddr().String()).Str("destination", dst.String())
		})
	}

	sent, received, err := CopyBidirectional(ctx, conn, dest)
	log.Info().Int64("sent", sent).Int64("received", received).Msg("relay finished")
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	return nil
}

// shutdown closes the write side first so the peer sees an orderly FIN,
// then releases the socket.
func shutdown(c net.Conn) {
	if cw, ok := c.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	_ = c.Close()
}
