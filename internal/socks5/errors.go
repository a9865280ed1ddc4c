package socks5

import (
	"errors"
	"fmt"
	"strings"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrMethodNotFound is returned by Negotiate when the client offered no
// method the server will proceed with.
var ErrMethodNotFound = errors.New("method not found")

// VersionError reports a protocol version byte other than 5.
type VersionError struct {
	Expected byte
	Found    byte
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("invalid protocol version (expected %d, found %d)", e.Expected, e.Found)
}

// CommandError reports a request command other than CONNECT.
type CommandError struct {
	Expected byte
	Found    byte
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("invalid command (expected %d, found %d)", e.Expected, e.Found)
}

// AddressTypeError reports an address type byte outside IPv4, domain and
// IPv6.
type AddressTypeError struct {
	Found byte
}

func (e *AddressTypeError) Error() string {
	expected := []string{"1", "3", "4"}
	return fmt.Sprintf("invalid addr type (expected %s, found %d)", strings.Join(expected, ", "), e.Found)
}

// DomainError reports a domain name that is not valid UTF-8.
type DomainError struct {
	Name []byte
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid utf-8 in domain name %q", e.Name)
}

// ResolveError reports a name lookup that failed or produced no addresses.
type ResolveError struct {
	Host string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Host, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// ConnectError reports that no candidate destination accepted the
// connection. Err is the error from the last attempt.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Kind classifies an error returned by this package.
type Kind int

const (
	KindTransport Kind = iota
	KindVersionMismatch
	KindUnsupportedMethod
	KindUnsupportedCommand
	KindUnsupportedAddressType
	KindMalformedDomain
	KindResolution
	KindConnect
)

var kindNames = [...]string{
	KindTransport:              "transport",
	KindVersionMismatch:        "version_mismatch",
	KindUnsupportedMethod:      "unsupported_method",
	KindUnsupportedCommand:     "unsupported_command",
	KindUnsupportedAddressType: "unsupported_address_type",
	KindMalformedDomain:        "malformed_domain",
	KindResolution:             "resolution",
	KindConnect:                "connect",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Classify returns the Kind of err. Errors that are not one of the
// protocol errors above are transport failures.
func Classify(err error) Kind {
	var (
		verErr  *VersionError
		cmdErr  *CommandError
		atypErr *AddressTypeError
		domErr  *DomainError
		resErr  *ResolveError
		connErr *ConnectError
	)
	switch {
	case errors.As(err, &verErr):
		return KindVersionMismatch
	case errors.Is(err, ErrMethodNotFound):
		return KindUnsupportedMethod
	case errors.As(err, &cmdErr):
		return KindUnsupportedCommand
	case errors.As(err, &atypErr):
		return KindUnsupportedAddressType
	case errors.As(err, &domErr):
		return KindMalformedDomain
	case errors.As(err, &resErr):
		return KindResolution
	case errors.As(err, &connErr):
		return KindConnect
	default:
		return KindTransport
	}
}

// ReplyCode maps a request-phase error to the reply byte sent to the
// client. A nil error is success.
func ReplyCode(err error) byte {
	if err == nil {
		return txsocks5.RepSuccess
	}
	switch Classify(err) {
	case KindUnsupportedAddressType:
		return txsocks5.RepAddressNotSupported
	case KindUnsupportedCommand:
		return txsocks5.RepCommandNotSupported
	default:
		return txsocks5.RepServerFailure
	}
}
