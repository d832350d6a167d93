package model

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
)

type Protocol string // "icmp", "gre", "esp", "tcp", "udp"

const (
	ICMP Protocol = "icmp"
	GRE  Protocol = "gre"
	ESP  Protocol = "esp"
	TCP  Protocol = "tcp"
	UDP  Protocol = "udp"
)

// HasPorts reports whether the protocol carries a port specification.
func (p Protocol) HasPorts() bool {
	return p == TCP || p == UDP
}

var protocolOrder = map[Protocol]int{
	ICMP: 0,
	GRE:  1,
	ESP:  2,
	TCP:  3,
	UDP:  4,
}

// PortRange is an inclusive port interval. A single port is Start == End.
type PortRange struct {
	Start uint16
	End   uint16
}

func (r PortRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// DirectionIn is the only direction this controller manages. Remote rules
// with other directions still participate in comparisons so that foreign
// rules on the firewall trigger a convergence update.
const DirectionIn = "in"

// RuleSpec is one allow rule: a protocol, the port ranges it applies to
// (empty for icmp/gre/esp) and the source networks permitted to connect.
type RuleSpec struct {
	Direction string
	Protocol  Protocol
	Ports     []PortRange
	SourceIPs []netip.Prefix
}

// Equal reports structural equality of two canonical rules.
func (r RuleSpec) Equal(o RuleSpec) bool {
	return r.Direction == o.Direction &&
		r.Protocol == o.Protocol &&
		slices.Equal(r.Ports, o.Ports) &&
		slices.Equal(r.SourceIPs, o.SourceIPs)
}

// Firewall is the remote resource as reported by the cloud API.
type Firewall struct {
	ID    int64
	Name  string
	Rules []RuleSpec
}

// Account is one independently reconciled credential/firewall pair.
type Account struct {
	Token        string
	FirewallName string
}

// Redacted returns a token fragment suitable for logging.
func (a Account) Redacted() string {
	if len(a.Token) <= 8 {
		return "****"
	}
	return a.Token[:4] + "****"
}

func comparePortRanges(a, b PortRange) int {
	if a.Start != b.Start {
		return int(a.Start) - int(b.Start)
	}
	return int(a.End) - int(b.End)
}

func comparePrefixes(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}

// Canonical returns a copy of the rule with ports and sources sorted and
// deduplicated. The remote API does not preserve submission order, so
// comparisons must only ever happen on canonical rules.
func (r RuleSpec) Canonical() RuleSpec {
	out := RuleSpec{
		Direction: r.Direction,
		Protocol:  r.Protocol,
		Ports:     slices.Clone(r.Ports),
		SourceIPs: slices.Clone(r.SourceIPs),
	}
	slices.SortFunc(out.Ports, comparePortRanges)
	out.Ports = slices.Compact(out.Ports)
	slices.SortFunc(out.SourceIPs, comparePrefixes)
	out.SourceIPs = slices.Compact(out.SourceIPs)
	return out
}

// CanonicalRules canonicalizes every rule and sorts the list by protocol.
func CanonicalRules(rules []RuleSpec) []RuleSpec {
	out := make([]RuleSpec, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Canonical())
	}
	slices.SortFunc(out, func(a, b RuleSpec) int {
		if a.Direction != b.Direction {
			return strings.Compare(a.Direction, b.Direction)
		}
		return protocolOrder[a.Protocol] - protocolOrder[b.Protocol]
	})
	return out
}

// SortPrefixes sorts a prefix list in place into canonical order.
func SortPrefixes(prefixes []netip.Prefix) {
	slices.SortFunc(prefixes, comparePrefixes)
}
