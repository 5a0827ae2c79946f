// internal/app/system/ratelimit/clientip.go
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
)

var (
	proxyMu sync.RWMutex
	proxies []netip.Prefix
)

// ParseProxies turns a list of IPs and CIDR ranges into prefixes.
// A bare IP becomes a single-address prefix.
func ParseProxies(specs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// SetTrustedProxies replaces the set of peers whose forwarding headers
// ClientIP believes. An empty list means no headers are believed.
func SetTrustedProxies(specs []string) error {
	p, err := ParseProxies(specs)
	if err != nil {
		return err
	}
	proxyMu.Lock()
	proxies = p
	proxyMu.Unlock()
	return nil
}

func trusted(a netip.Addr) bool {
	proxyMu.RLock()
	defer proxyMu.RUnlock()
	for _, p := range proxies {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP extracts the client IP from an HTTP request.
//
// The socket peer is the answer unless it is a trusted proxy. Behind a
// trusted proxy, X-Forwarded-For is walked from the right and the first hop
// that is not itself a trusted proxy wins; X-Real-IP is the next choice.
func ClientIP(r *http.Request) string {
	peer, ok := remoteAddr(r.RemoteAddr)
	if !ok {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	if !trusted(peer) {
		return peer.String()
	}

	if hops := forwardedHops(r); len(hops) > 0 {
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(hops[i])
			if err != nil {
				// Anything left of a garbled hop came from the client.
				return peer.String()
			}
			a = a.Unmap()
			if !trusted(a) {
				return a.String()
			}
		}
		// Every hop is a proxy we run; the left-most one is closest to the client.
		if a, err := netip.ParseAddr(hops[0]); err == nil {
			return a.Unmap().String()
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if a, err := netip.ParseAddr(xri); err == nil {
			return a.Unmap().String()
		}
	}
	return peer.String()
}

// forwardedHops flattens every X-Forwarded-For header into one hop list.
func forwardedHops(r *http.Request) []string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(v, ",") {
			if h := strings.TrimSpace(part); h != "" {
				hops = append(hops, h)
			}
		}
	}
	return hops
}

func remoteAddr(s string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		// RemoteAddr might not have a port
		host = s
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
