// Package socks5 implements the server side of the SOCKS5 protocol subset
// koblas speaks: method negotiation, CONNECT requests with IPv4, IPv6 and
// domain-name destinations, and the reply frame.
//
// Wire constants and frame writers come from github.com/txthinking/socks5;
// parsing is done here so that each protocol violation surfaces as its own
// error type and maps onto the right reply code.
package socks5
