package middleware

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// ClientIdentity resolves the client address used for admission and analytics.
// X-Forwarded-For and X-Real-IP are only honoured when the direct peer is a trusted proxy.
type ClientIdentity struct {
	trusted []netip.Prefix
}

// NewClientIdentity parses trusted proxies given as IPs or CIDR prefixes. With no
// trusted proxies the peer address is always used.
func NewClientIdentity(trustedProxies []string) (*ClientIdentity, error) {
	c := &ClientIdentity{}

	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}

			addr = addr.Unmap()
			c.trusted = append(c.trusted, netip.PrefixFrom(addr, addr.BitLen()))

			continue
		}

		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}

		c.trusted = append(c.trusted, prefix.Masked())
	}

	return c, nil
}

// Resolve returns the client address of the request. Behind trusted proxies it is the
// rightmost X-Forwarded-For hop that is not itself a trusted proxy.
func (c *ClientIdentity) Resolve(ctx huma.Context) string {
	peer := peerAddr(ctx)
	if !c.isTrusted(peer) {
		return peer
	}

	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")

		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}

			if i == 0 || !c.isTrusted(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(ctx.Header("X-Real-IP")); xri != "" {
		return xri
	}

	return peer
}

func (c *ClientIdentity) isTrusted(host string) bool {
	if len(c.trusted) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}

	addr = addr.Unmap()

	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// peerAddr is the host of the direct connection, falling back to the Host header.
func peerAddr(ctx huma.Context) string {
	addr := ctx.RemoteAddr()
	if addr == "" {
		addr = ctx.Host()
	}

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
