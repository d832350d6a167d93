package netparse

import (
	"fmt"
	"net/netip"
)

// ParseNetworkPrefix parses a CIDR and requires it to be a network id, i.e.
// the bits below the prefix length must be zero. The cloud API rejects
// prefixes with host bits set, so this is validated once at startup instead
// of failing every reconciliation cycle.
func ParseNetworkPrefix(s string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", s, err)
	}
	if prefix.Addr() != prefix.Masked().Addr() {
		return netip.Prefix{}, fmt.Errorf("CIDR %q is not a network id: host bits must be zero (did you mean %s?)", s, prefix.Masked())
	}
	return prefix, nil
}

// ParseNetworkPrefixes parses a list of CIDRs, all of which must be network ids.
func ParseNetworkPrefixes(specs []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, s := range specs {
		p, err := ParseNetworkPrefix(s)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}

// HostPrefix converts a bare address into its single-host CIDR,
// /32 for IPv4 and /128 for IPv6.
func HostPrefix(addr netip.Addr) netip.Prefix {
	return netip.PrefixFrom(addr, addr.BitLen())
}
