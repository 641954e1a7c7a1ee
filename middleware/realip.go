package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/MrEthical07/sessiongate"
)

// IPResolver applies one real-IP policy everywhere: forwarded headers are
// honoured only when the transport peer is a trusted proxy.
type IPResolver struct {
	trusted []netip.Prefix
}

// NewIPResolver parses trusted proxy CIDRs. A bare address is treated as a
// single-host prefix.
func NewIPResolver(trustedProxies []string) (*IPResolver, error) {
	r := &IPResolver{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			r.trusted = append(r.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		r.trusted = append(r.trusted, prefix.Masked())
	}
	return r, nil
}

// ClientIP returns the client address for r. When the peer is trusted the
// left-most X-Forwarded-For entry wins, then X-Real-IP. Otherwise, and when
// neither header parses, the peer address is used.
func (r *IPResolver) ClientIP(req *http.Request) string {
	peer := peerAddr(req.RemoteAddr)
	if r == nil || !r.isTrusted(peer) {
		return peer
	}

	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return ip.Unmap().String()
		}
	}
	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		if ip, err := netip.ParseAddr(realIP); err == nil {
			return ip.Unmap().String()
		}
	}
	return peer
}

// ClientInfo stores the resolved IP and the User-Agent in the request context
// for the engine's sessions, login log and audit events.
func (r *IPResolver) ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := sessiongate.WithClientIP(req.Context(), r.ClientIP(req))
		ctx = sessiongate.WithUserAgent(ctx, req.UserAgent())
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *IPResolver) isTrusted(peer string) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	for _, p := range r.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return ip.Unmap().String()
	}
	return host
}
