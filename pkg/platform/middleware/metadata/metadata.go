// Package metadata copies request identifiers and client metadata from the
// HTTP request into pkg/requestcontext.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"

	"backoffice/pkg/requestcontext"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderDeviceID      = "X-Device-ID"
)

// RequestMetadata assigns a request id (reusing a client-supplied one), echoes
// it on the response and stores correlation id, client IP, User-Agent and
// device id in the context. Proxy headers are ignored. Apply it first in the
// chain.
func RequestMetadata(next http.Handler) http.Handler {
	return New(nil)(next)
}

// New is RequestMetadata with proxy headers honoured for requests whose
// remote address falls inside trustedProxies.
func New(trustedProxies []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, requestID)

			ctx := requestcontext.WithRequestID(r.Context(), requestID)
			if corrID := strings.TrimSpace(r.Header.Get(HeaderCorrelationID)); corrID != "" {
				ctx = requestcontext.WithCorrelationID(ctx, corrID)
			}
			ctx = requestcontext.WithClientMetadata(ctx, ClientIPFromRequest(r, trustedProxies), r.Header.Get("User-Agent"))
			if deviceID := r.Header.Get(HeaderDeviceID); deviceID != "" {
				ctx = requestcontext.WithDeviceID(ctx, deviceID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseTrustedProxies accepts bare addresses and CIDR prefixes.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// ClientIPFromRequest extracts the client IP. X-Forwarded-For and X-Real-IP
// are only read when the direct peer is a trusted proxy.
func ClientIPFromRequest(r *http.Request, trustedProxies []netip.Prefix) string {
	remote := remoteHost(r.RemoteAddr)
	if !trusted(remote, trustedProxies) {
		if remote == "" {
			return "unknown"
		}
		return remote
	}
	// X-Forwarded-For lists client, proxy1, proxy2, ...
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return remote
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func trusted(host string, proxies []netip.Prefix) bool {
	if len(proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
