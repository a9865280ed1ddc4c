// Package dialer provides the outbound dialer used by koblas to reach
// CONNECT destinations.
package dialer
