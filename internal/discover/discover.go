package discover

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// Family selects which address family a lookup should discover.
type Family string

const (
	IPv4 Family = "ipv4"
	IPv6 Family = "ipv6"
)

const (
	lookupTimeout = 10 * time.Second
	maxBodySize   = 256
)

// Resolver discovers the caller's current public address for one family.
type Resolver interface {
	Lookup(ctx context.Context, family Family) (netip.Addr, error)
}

// HTTPResolver queries a plain-text what-is-my-ip endpoint. It keeps one
// HTTP client per family, each forced onto tcp4/tcp6 so the endpoint sees
// the source address of the requested family.
type HTTPResolver struct {
	endpoint string
	clients  map[Family]*http.Client
}

func NewHTTPResolver(endpoint string) *HTTPResolver {
	return &HTTPResolver{
		endpoint: endpoint,
		clients: map[Family]*http.Client{
			IPv4: familyClient("tcp4"),
			IPv6: familyClient("tcp6"),
		},
	}
}

func familyClient(network string) *http.Client {
	dialer := &net.Dialer{Timeout: lookupTimeout}
	return &http.Client{
		Timeout: lookupTimeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}

func (r *HTTPResolver) Lookup(ctx context.Context, family Family) (netip.Addr, error) {
	client, ok := r.clients[family]
	if !ok {
		return netip.Addr{}, fmt.Errorf("unsupported address family %q", family)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("building %s discovery request: %w", family, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s discovery request failed: %w", family, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("%s discovery endpoint returned status %d", family, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("reading %s discovery response: %w", family, err)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s discovery returned invalid address %q: %w", family, strings.TrimSpace(string(body)), err)
	}
	addr = addr.Unmap()

	if family == IPv4 && !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("ipv4 discovery returned non-IPv4 address %s", addr)
	}
	if family == IPv6 && !addr.Is6() {
		return netip.Addr{}, fmt.Errorf("ipv6 discovery returned non-IPv6 address %s", addr)
	}
	return addr, nil
}
