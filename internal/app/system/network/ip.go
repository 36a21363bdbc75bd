// Package network resolves the address a request came from.
package network

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating client address. The first hop of
// X-Forwarded-For wins, then X-Real-IP, then RemoteAddr without its port.
// Forwarding headers are trusted as-is; run behind a proxy that sets them.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
