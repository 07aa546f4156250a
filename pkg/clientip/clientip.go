package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is returned when no usable client address can be resolved.
// Requests without a resolvable address all share one admission bucket.
const Unknown = "unknown"

// GetIP resolves the client IP address for an HTTP request.
//
// Resolution order: X-Forwarded-For (leftmost hop), X-Real-IP, the
// connection's remote address, and finally Unknown. Header values are
// validated and normalized; malformed entries fall through to the next tier.
func GetIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple hops: "client, proxy1, proxy2".
	// The leftmost entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := normalize(first); ip != "" {
			return ip
		}
	}

	if real := r.Header.Get("X-Real-IP"); real != "" {
		if ip := normalize(real); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil {
		if ip := normalize(host); ip != "" {
			return ip
		}
	} else if ip := normalize(r.RemoteAddr); ip != "" {
		// RemoteAddr without a port, as some test harnesses set it.
		return ip
	}

	return Unknown
}

// normalize validates a candidate address and returns its canonical form,
// or "" when the candidate is not a valid IP.
func normalize(candidate string) string {
	ip := net.ParseIP(strings.TrimSpace(candidate))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
