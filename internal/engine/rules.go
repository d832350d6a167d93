package engine

import (
	"net/netip"
	"slices"

	"hcloud-firewall-controller/internal/model"
)

// RuleConfig is the protocol/port side of the desired state, parsed and
// normalized once at startup.
type RuleConfig struct {
	ICMP     bool
	GRE      bool
	ESP      bool
	TCPPorts []model.PortRange
	UDPPorts []model.PortRange
}

// BuildRules derives the desired rule list from the configured protocols
// and the cycle's resolved source set. One rule per enabled simple
// protocol, one TCP and one UDP rule iff ports are configured. An empty
// source set still emits rules; a rule permitting nothing is a valid
// desired state, not an error.
func BuildRules(cfg RuleConfig, sources []netip.Prefix) []model.RuleSpec {
	var rules []model.RuleSpec

	for _, p := range []struct {
		enabled  bool
		protocol model.Protocol
	}{
		{cfg.ICMP, model.ICMP},
		{cfg.GRE, model.GRE},
		{cfg.ESP, model.ESP},
	} {
		if !p.enabled {
			continue
		}
		rules = append(rules, model.RuleSpec{
			Direction: model.DirectionIn,
			Protocol:  p.protocol,
			SourceIPs: slices.Clone(sources),
		})
	}

	if len(cfg.TCPPorts) > 0 {
		rules = append(rules, model.RuleSpec{
			Direction: model.DirectionIn,
			Protocol:  model.TCP,
			Ports:     slices.Clone(cfg.TCPPorts),
			SourceIPs: slices.Clone(sources),
		})
	}
	if len(cfg.UDPPorts) > 0 {
		rules = append(rules, model.RuleSpec{
			Direction: model.DirectionIn,
			Protocol:  model.UDP,
			Ports:     slices.Clone(cfg.UDPPorts),
			SourceIPs: slices.Clone(sources),
		})
	}

	return rules
}

// RulesEqual compares two rule lists after canonicalization, so ordering
// of rules, ports and sources never matters. Any structural difference
// means the remote state needs replacing.
func RulesEqual(desired, current []model.RuleSpec) bool {
	a := model.CanonicalRules(desired)
	b := model.CanonicalRules(current)
	return slices.EqualFunc(a, b, model.RuleSpec.Equal)
}
