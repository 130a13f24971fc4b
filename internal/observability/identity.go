package observability

import (
	"net"
	"net/http"
	"strings"
)

// Identity describes where a request came from, for lifecycle events.
type Identity struct {
	DeviceID  string
	IP        string
	RequestID string
}

// IdentityFromRequest reads the device and request ids set by the gateway and the client IP.
func IdentityFromRequest(r *http.Request) Identity {
	return Identity{
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
		RequestID: r.Header.Get("X-Request-Id"),
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
