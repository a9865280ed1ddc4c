package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"unicode/utf8"

	txsocks5 "github.com/txthinking/socks5"
)

// Address types.
const (
	AddrIPv4   = txsocks5.ATYPIPv4
	AddrDomain = txsocks5.ATYPDomain
	AddrIPv6   = txsocks5.ATYPIPv6
)

// Destination is the target of a CONNECT request. Addr is set for the
// IPv4 and IPv6 types, Domain for the domain type.
type Destination struct {
	Type   byte
	Addr   netip.Addr
	Domain string
	Port   uint16
}

// Host returns the literal address or the domain name.
func (d Destination) Host() string {
	if d.Type == AddrDomain {
		return d.Domain
	}
	return d.Addr.String()
}

func (d Destination) String() string {
	return net.JoinHostPort(d.Host(), strconv.Itoa(int(d.Port)))
}

// ReadDestination decodes DST.ADDR and DST.PORT for the address type atyp,
// which the caller has already consumed as part of the request header.
func ReadDestination(r io.Reader, atyp byte) (Destination, error) {
	d := Destination{Type: atyp}

	switch atyp {
	case AddrIPv4:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Destination{}, fmt.Errorf("read ipv4 address: %w", err)
		}
		d.Addr = netip.AddrFrom4(b)
	case AddrIPv6:
		var b [16]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Destination{}, fmt.Errorf("read ipv6 address: %w", err)
		}
		d.Addr = netip.AddrFrom16(b)
	case AddrDomain:
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return Destination{}, fmt.Errorf("read domain length: %w", err)
		}
		b := make([]byte, int(n[0]))
		if _, err := io.ReadFull(r, b); err != nil {
			return Destination{}, fmt.Errorf("read domain: %w", err)
		}
		if !utf8.Valid(b) {
			return Destination{}, &DomainError{Name: b}
		}
		d.Domain = string(b)
	default:
		return Destination{}, &AddressTypeError{Found: atyp}
	}

	var p [2]byte
	if _, err := io.ReadFull(r, p[:]); err != nil {
		return Destination{}, fmt.Errorf("read port: %w", err)
	}
	d.Port = binary.BigEndian.Uint16(p[:])

	return d, nil
}

// WriteReply writes a reply frame with code rep. The bound address is
// always reported as 0.0.0.0:0, whatever the destination's family.
func WriteReply(w io.Writer, rep byte) error {
	if _, err := txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(w); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
