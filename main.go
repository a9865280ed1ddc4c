package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/koblas/internal/dialer"
	"github.com/die-net/koblas/internal/proxy"
	"github.com/die-net/koblas/internal/users"
)

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, stderr io.Writer) error {
	o, err := parseOptions(args, getenv, stderr)
	if err != nil {
		return err
	}

	if o.reusePort && !proxy.ReusePortSupported {
		return errors.New("--reuse-port is not supported on this platform")
	}

	log := newLogger(o, stderr)

	store, err := loadUsers(o.usersPath, log)
	if err != nil {
		return err
	}
	log.Debug().Int("count", store.Len()).Msgf("loaded %d users", store.Len())

	cfg := proxy.Config{
		MaxConns:           o.limit,
		NegotiationTimeout: o.negotiationTimeout,
		Logger:             log,
		Anonymize:          o.anonymize,
	}
	cfg.Dialer = dialer.NewDirectDialer(dialer.Config{
		DialTimeout: o.dialTimeout,
		KeepAlive:   o.keepAlive,
	})

	ln, err := proxy.ListenTCP("tcp", o.listenAddr(), o.keepAlive, o.reusePort)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, ln, cfg)
}

// serve runs the SOCKS5 server on ln until ctx is done.
func serve(ctx context.Context, ln net.Listener, cfg proxy.Config) error {
	log := cfg.Logger

	g, gctx := errgroup.WithContext(ctx)

	s5 := proxy.NewSOCKS5Server(gctx, cfg)
	context.AfterFunc(gctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := s5.Serve(ln); err != nil {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})

	log.Info().
		Str("addr", ln.Addr().String()).
		Int("limit", cfg.MaxConns).
		Bool("anonymize", cfg.Anonymize).
		Msg("socks5 proxy listening")

	err := g.Wait()
	if ctx.Err() != nil && (errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled)) {
		err = nil
	}

	log.Info().Msg("shutting down")
	return err
}

// loadUsers reads the users file at path. A missing path or file is not an
// error; the server runs with no users.
func loadUsers(path string, log zerolog.Logger) (*users.Store, error) {
	if path == "" {
		log.Warn().Msg("users file path not set")
		return users.Empty(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("users file doesn't exist")
		return users.Empty(), nil
	}

	store, err := users.Load(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
