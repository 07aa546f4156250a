// Package clientip extracts real client IP addresses from HTTP requests.
//
// It resolves the admission identity for unauthenticated callers through a
// three-tier fallback: proxy-resolved headers first (X-Forwarded-For
// leftmost hop, then X-Real-IP), then the transport-level remote address,
// and finally the literal "unknown" when neither yields a usable address.
//
// Returning "unknown" rather than failing keeps admission control total: a
// request that defeats IP resolution still lands in a shared bucket instead
// of escaping rate limiting entirely.
//
// All header-supplied addresses are validated with net.ParseIP and
// normalized; malformed headers are silently skipped.
//
// When deploying behind proxies, ensure they set the appropriate headers:
//   - Nginx: proxy_set_header X-Real-IP $remote_addr;
//   - Apache: RequestHeader set X-Forwarded-For %h
package clientip
