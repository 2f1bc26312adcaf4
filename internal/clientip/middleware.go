// Package clientip resolves the real client IP behind proxies (Fly.io,
// Cloudflare, nginx) for logging and per-client rate limits.
package clientip

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
)

type contextKey struct{}

// Info contains extracted client IP information
type Info struct {
	// Primary is the most trusted single IP, used for logs
	Primary string

	// RateLimitKey joins every IP seen on the request. RemoteAddr is always
	// part of it, so spoofing a header cannot move a client into another
	// bucket on its own.
	RateLimitKey string
}

// trustedHeaders in priority order. X-Forwarded-For is handled separately
// because only its first hop is used.
var trustedHeaders = []string{
	"Fly-Client-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
}

// Middleware stores Info in the request context and rewrites r.RemoteAddr
// to the primary IP.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := extract(r)
		r.RemoteAddr = info.Primary
		ctx := context.WithValue(r.Context(), contextKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext retrieves Info from context. The zero Info is returned when
// the middleware has not run.
func FromContext(ctx context.Context) Info {
	if info, ok := ctx.Value(contextKey{}).(Info); ok {
		return info
	}
	return Info{}
}

// FromRequest is a convenience wrapper around FromContext
func FromRequest(r *http.Request) Info {
	return FromContext(r.Context())
}

func extract(r *http.Request) Info {
	var primary string
	var all []string
	add := func(ip string) {
		if ip == "" || slices.Contains(all, ip) {
			return
		}
		all = append(all, ip)
	}

	remoteIP := extractIPFromAddr(r.RemoteAddr)
	add(remoteIP)

	for _, h := range trustedHeaders {
		ip := validIP(r.Header.Get(h))
		add(ip)
		if primary == "" {
			primary = ip
		}
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		ip := validIP(first)
		add(ip)
		if primary == "" {
			primary = ip
		}
	}

	if primary == "" {
		primary = remoteIP
	}

	slices.Sort(all)
	return Info{
		Primary:      primary,
		RateLimitKey: strings.Join(all, "|"),
	}
}

// validIP returns the trimmed value when it parses as an IP, else "".
// Headers are client controlled; anything else would end up in logs.
func validIP(s string) string {
	s = strings.TrimSpace(s)
	if net.ParseIP(s) == nil {
		return ""
	}
	return s
}

// extractIPFromAddr strips the port from "IP:port" and "[IPv6]:port"
func extractIPFromAddr(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
