package engine

import (
	"context"
	"log/slog"
	"net/netip"

	"hcloud-firewall-controller/internal/discover"
	"hcloud-firewall-controller/internal/metrics"
	"hcloud-firewall-controller/internal/model"
	"hcloud-firewall-controller/internal/netparse"
)

// SourceProvider contributes additional allow-list networks to every cycle,
// e.g. from a shared database table.
type SourceProvider interface {
	FetchCIDRs(ctx context.Context) ([]netip.Prefix, error)
}

// AddressBook resolves the full set of source networks for one cycle:
// dynamically discovered public addresses per enabled family, configured
// static networks and optionally provider-supplied networks.
type AddressBook struct {
	resolver   discover.Resolver
	provider   SourceProvider // may be nil
	enableIPv4 bool
	enableIPv6 bool
	static     []netip.Prefix
}

func NewAddressBook(resolver discover.Resolver, provider SourceProvider, enableIPv4, enableIPv6 bool, static []netip.Prefix) *AddressBook {
	return &AddressBook{
		resolver:   resolver,
		provider:   provider,
		enableIPv4: enableIPv4,
		enableIPv6: enableIPv6,
		static:     static,
	}
}

// Resolve builds the merged address set for this cycle. A discovery or
// provider failure only drops its own contribution: a transient outage on
// one family must not block applying known-good static rules or the other
// family's address. The result may be empty, which is still a valid
// desired state.
func (b *AddressBook) Resolve(ctx context.Context) []netip.Prefix {
	set := make(map[netip.Prefix]struct{})
	for _, p := range b.static {
		set[p] = struct{}{}
	}

	if b.enableIPv4 {
		b.lookup(ctx, discover.IPv4, set)
	}
	if b.enableIPv6 {
		b.lookup(ctx, discover.IPv6, set)
	}

	if b.provider != nil {
		extra, err := b.provider.FetchCIDRs(ctx)
		if err != nil {
			slog.Warn("allow-list provider fetch failed, continuing without it", "error", err)
		}
		for _, p := range extra {
			set[p] = struct{}{}
		}
	}

	sources := make([]netip.Prefix, 0, len(set))
	for p := range set {
		sources = append(sources, p)
	}
	model.SortPrefixes(sources)
	return sources
}

func (b *AddressBook) lookup(ctx context.Context, family discover.Family, set map[netip.Prefix]struct{}) {
	addr, err := b.resolver.Lookup(ctx, family)
	if err != nil {
		slog.Warn("public address discovery failed, omitting family this cycle", "family", family, "error", err)
		metrics.DiscoveryFailuresTotal.WithLabelValues(string(family)).Inc()
		return
	}
	set[netparse.HostPrefix(addr)] = struct{}{}
}
