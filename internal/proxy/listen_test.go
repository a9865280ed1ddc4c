package proxy

import (
	"net"
	"testing"
)

func TestListenTCPReusePort(t *testing.T) {
	if !ReusePortSupported {
		t.Skip("SO_REUSEPORT not supported on this platform")
	}

	ln1, err := ListenTCP("tcp", "127.0.0.1:0", net.KeepAliveConfig{}, true)
	if err != nil {
		t.Fatal(err)
	}
	defer ln1.Close()

	ln2, err := ListenTCP("tcp", ln1.Addr().String(), net.KeepAliveConfig{}, true)
	if err != nil {
		t.Fatalf("second listener on %s: %v", ln1.Addr(), err)
	}
	defer ln2.Close()
}

func TestListenTCPAddrInUse(t *testing.T) {
	ln1, err := ListenTCP("tcp", "127.0.0.1:0", net.KeepAliveConfig{}, false)
	if err != nil {
		t.Fatal(err)
	}
	defer ln1.Close()

	if ln2, err := ListenTCP("tcp", ln1.Addr().String(), net.KeepAliveConfig{}, false); err == nil {
		_ = ln2.Close()
		t.Fatal("expected address in use")
	}
}
