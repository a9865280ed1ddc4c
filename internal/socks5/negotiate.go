package socks5

import (
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// Method is a SOCKS5 authentication method.
type Method byte

const (
	MethodNoAuth             Method = Method(txsocks5.MethodNone)
	MethodUserPass           Method = Method(txsocks5.MethodUsernamePassword)
	MethodNoAcceptableMethod Method = Method(txsocks5.MethodUnsupportAll)
)

func (m Method) String() string {
	switch m {
	case MethodNoAuth:
		return "no-auth"
	case MethodUserPass:
		return "username/password"
	case MethodNoAcceptableMethod:
		return "no-acceptable-method"
	default:
		return fmt.Sprintf("method(0x%02x)", byte(m))
	}
}

// Negotiate reads the client's version/method-selection message and writes
// the server's choice.
//
// The choice is the first offered method that is either no-auth or
// username/password, in the order the client listed them. Username/password
// is acknowledged on the wire but not implemented, so it fails with
// ErrMethodNotFound after the reply has been sent, as does an offer with
// nothing usable in it.
func Negotiate(rw io.ReadWriter) (Method, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(rw, hdr[:]); err != nil {
		return MethodNoAcceptableMethod, fmt.Errorf("read negotiation header: %w", err)
	}
	if hdr[0] != txsocks5.Ver {
		return MethodNoAcceptableMethod, &VersionError{Expected: txsocks5.Ver, Found: hdr[0]}
	}

	methods := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(rw, methods); err != nil {
		return MethodNoAcceptableMethod, fmt.Errorf("read methods: %w", err)
	}

	method := selectMethod(methods)
	if _, err := txsocks5.NewNegotiationReply(byte(method)).WriteTo(rw); err != nil {
		return method, fmt.Errorf("negotiation reply: %w", err)
	}

	if method != MethodNoAuth {
		return method, ErrMethodNotFound
	}
	return method, nil
}

func selectMethod(offered []byte) Method {
	for _, m := range offered {
		if Method(m) == MethodNoAuth || Method(m) == MethodUserPass {
			return Method(m)
		}
	}
	return MethodNoAcceptableMethod
}
