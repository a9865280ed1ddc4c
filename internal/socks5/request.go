package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"

	txsocks5 "github.com/txthinking/socks5"
)

// Header is the fixed part of a request: VER CMD RSV ATYP.
type Header struct {
	Version  byte
	Command  byte
	Reserved byte
	AddrType byte
}

// ReadRequestHeader reads the four-byte request header and checks the
// version.
func ReadRequestHeader(r io.Reader) (Header, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, fmt.Errorf("read request header: %w", err)
	}
	if b[0] != txsocks5.Ver {
		return Header{}, &VersionError{Expected: txsocks5.Ver, Found: b[0]}
	}
	return Header{Version: b[0], Command: b[1], Reserved: b[2], AddrType: b[3]}, nil
}

// Dialer opens outbound connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver looks up the addresses of a host name. *net.Resolver satisfies
// it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Connector handles the request phase: it reads the destination that
// follows a request header and connects to it.
type Connector struct {
	Dialer   Dialer
	Resolver Resolver
}

// Connect validates the command in hdr, reads the destination from r and
// returns a connection to it. Domain destinations are resolved and the
// candidates dialed in the order the resolver returned them; the first
// one to accept wins.
func (c *Connector) Connect(ctx context.Context, r io.Reader, hdr Header) (net.Conn, Destination, error) {
	if hdr.Command != txsocks5.CmdConnect {
		return nil, Destination{}, &CommandError{Expected: txsocks5.CmdConnect, Found: hdr.Command}
	}

	dst, err := ReadDestination(r, hdr.AddrType)
	if err != nil {
		return nil, Destination{}, err
	}

	candidates, err := c.candidates(ctx, dst)
	if err != nil {
		return nil, dst, err
	}

	var lastErr error
	for _, ap := range candidates {
		conn, err := c.Dialer.DialContext(ctx, "tcp", ap.String())
		if err == nil {
			return conn, dst, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, dst, &ConnectError{Addr: dst.String(), Err: lastErr}
}

func (c *Connector) candidates(ctx context.Context, dst Destination) ([]netip.AddrPort, error) {
	if dst.Type != AddrDomain {
		return []netip.AddrPort{netip.AddrPortFrom(dst.Addr, dst.Port)}, nil
	}

	// A literal sent as a domain name needs no lookup.
	if ip, err := netip.ParseAddr(dst.Domain); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(ip.Unmap(), dst.Port)}, nil
	}

	resolver := c.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	ips, err := resolver.LookupNetIP(ctx, "ip", dst.Domain)
	if err != nil {
		return nil, &ResolveError{Host: dst.Domain, Err: err}
	}
	if len(ips) == 0 {
		return nil, &ResolveError{Host: dst.Domain, Err: errors.New("no addresses")}
	}

	out := make([]netip.AddrPort, 0, len(ips))
	for _, ip := range ips {
		out = append(out, netip.AddrPortFrom(ip.Unmap(), dst.Port))
	}
	return out, nil
}
