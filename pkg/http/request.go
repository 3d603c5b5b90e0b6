package http

import (
	"net"
	"net/http"
	"strings"
)

// ExtractClientIP returns the client address for audit records. It prefers
// X-Forwarded-For and X-Real-IP, falling back to RemoteAddr. Header values
// are only meaningful when the service sits behind a proxy that sets them;
// the router's RealIP middleware handles the trust decision upstream.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return "unknown"
}
