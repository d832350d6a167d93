package engine

import (
	"net/netip"
	"testing"

	"hcloud-firewall-controller/internal/model"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("failed to parse prefix %s: %v", s, err)
	}
	return p
}

func TestBuildRules(t *testing.T) {
	sources := []netip.Prefix{
		mustPrefix(t, "198.51.100.0/24"),
		mustPrefix(t, "203.0.113.9/32"),
	}

	tests := []struct {
		name      string
		cfg       RuleConfig
		sources   []netip.Prefix
		wantCount int
		wantProto []model.Protocol
	}{
		{
			name: "all protocols",
			cfg: RuleConfig{
				ICMP:     true,
				GRE:      true,
				ESP:      true,
				TCPPorts: []model.PortRange{{Start: 80, End: 80}},
				UDPPorts: []model.PortRange{{Start: 53, End: 53}},
			},
			sources:   sources,
			wantCount: 5,
			wantProto: []model.Protocol{model.ICMP, model.GRE, model.ESP, model.TCP, model.UDP},
		},
		{
			name:      "no tcp rule without tcp ports",
			cfg:       RuleConfig{ICMP: true},
			sources:   sources,
			wantCount: 1,
			wantProto: []model.Protocol{model.ICMP},
		},
		{
			name:      "empty sources still emit rules",
			cfg:       RuleConfig{ICMP: true, TCPPorts: []model.PortRange{{Start: 22, End: 22}}},
			sources:   nil,
			wantCount: 2,
			wantProto: []model.Protocol{model.ICMP, model.TCP},
		},
		{
			name:      "nothing enabled",
			cfg:       RuleConfig{},
			sources:   sources,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildRules(tt.cfg, tt.sources)
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d rules, got %d: %+v", tt.wantCount, len(got), got)
			}
			for i, proto := range tt.wantProto {
				if got[i].Protocol != proto {
					t.Errorf("rule %d: expected protocol %s, got %s", i, proto, got[i].Protocol)
				}
				if got[i].Direction != model.DirectionIn {
					t.Errorf("rule %d: expected inbound direction, got %q", i, got[i].Direction)
				}
				if len(got[i].SourceIPs) != len(tt.sources) {
					t.Errorf("rule %d: expected %d sources, got %d", i, len(tt.sources), len(got[i].SourceIPs))
				}
			}
		})
	}
}

func TestBuildRulesEachRuleCarriesFullPortSet(t *testing.T) {
	cfg := RuleConfig{
		TCPPorts: []model.PortRange{{Start: 80, End: 80}, {Start: 443, End: 443}},
	}
	rules := BuildRules(cfg, nil)
	if len(rules) != 1 {
		t.Fatalf("expected one TCP rule, got %d", len(rules))
	}
	if len(rules[0].Ports) != 2 {
		t.Fatalf("expected the TCP rule to carry both port ranges, got %v", rules[0].Ports)
	}
}

func TestRulesEqualIsOrderInsensitive(t *testing.T) {
	desired := []model.RuleSpec{
		{
			Direction: model.DirectionIn,
			Protocol:  model.TCP,
			Ports:     []model.PortRange{{Start: 80, End: 80}, {Start: 443, End: 443}},
			SourceIPs: []netip.Prefix{mustPrefix(t, "198.51.100.0/24"), mustPrefix(t, "203.0.113.9/32")},
		},
		{
			Direction: model.DirectionIn,
			Protocol:  model.ICMP,
			SourceIPs: []netip.Prefix{mustPrefix(t, "203.0.113.9/32"), mustPrefix(t, "198.51.100.0/24")},
		},
	}
	// Same rules, every nested collection permuted.
	current := []model.RuleSpec{
		{
			Direction: model.DirectionIn,
			Protocol:  model.ICMP,
			SourceIPs: []netip.Prefix{mustPrefix(t, "198.51.100.0/24"), mustPrefix(t, "203.0.113.9/32")},
		},
		{
			Direction: model.DirectionIn,
			Protocol:  model.TCP,
			Ports:     []model.PortRange{{Start: 443, End: 443}, {Start: 80, End: 80}},
			SourceIPs: []netip.Prefix{mustPrefix(t, "203.0.113.9/32"), mustPrefix(t, "198.51.100.0/24")},
		},
	}

	if !RulesEqual(desired, current) {
		t.Fatal("permuted rule lists must compare equal")
	}
}

func TestRulesEqualDetectsDifferences(t *testing.T) {
	base := []model.RuleSpec{
		{
			Direction: model.DirectionIn,
			Protocol:  model.TCP,
			Ports:     []model.PortRange{{Start: 80, End: 80}},
			SourceIPs: []netip.Prefix{mustPrefix(t, "198.51.100.0/24")},
		},
	}

	tests := []struct {
		name    string
		current []model.RuleSpec
	}{
		{"extra rule", append([]model.RuleSpec{{Direction: model.DirectionIn, Protocol: model.ICMP}}, base...)},
		{"missing rule", nil},
		{"different port", []model.RuleSpec{{Direction: model.DirectionIn, Protocol: model.TCP, Ports: []model.PortRange{{Start: 81, End: 81}}, SourceIPs: base[0].SourceIPs}}},
		{"different source", []model.RuleSpec{{Direction: model.DirectionIn, Protocol: model.TCP, Ports: base[0].Ports, SourceIPs: []netip.Prefix{mustPrefix(t, "192.0.2.0/24")}}}},
		{"foreign outbound rule present", append([]model.RuleSpec{{Direction: "out", Protocol: model.TCP, Ports: base[0].Ports}}, base...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if RulesEqual(base, tt.current) {
				t.Error("expected rule lists to differ")
			}
		})
	}
}
