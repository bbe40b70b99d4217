// Package metadata extracts client IP and User-Agent at the edge.
package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"proctor/pkg/requestcontext"
)

// MaxForwardedLength bounds X-Forwarded-For values that are considered at all.
const MaxForwardedLength = 500

// Middleware stores client metadata in the request context. X-Forwarded-For
// is honored only when the direct peer is a trusted proxy.
type Middleware struct {
	trusted []netip.Prefix
}

func New(trustedProxies []netip.Prefix) *Middleware {
	return &Middleware{trusted: trustedProxies}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), m.clientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if peer == "" {
		return "unknown"
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" || len(xff) > MaxForwardedLength || !m.isTrusted(peer) {
		return peer
	}
	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if _, err := netip.ParseAddr(first); err != nil {
		return peer
	}
	return first
}

func (m *Middleware) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
