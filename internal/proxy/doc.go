// Package proxy implements the koblas SOCKS5 server together with the
// connection plumbing it relies on, from admission control to the
// bidirectional relay.
package proxy
