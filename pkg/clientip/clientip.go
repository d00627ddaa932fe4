package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP from the request.
// Uses r.RemoteAddr only (no proxy headers); chi's RealIP middleware rewrites
// RemoteAddr when the service sits behind a trusted proxy.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// Key returns a Redis-safe key fragment for the client IP.
func Key(r *http.Request) string {
	return strings.ReplaceAll(RealClientIP(r), ":", "_")
}
