package hcloud

import (
	"log/slog"
	"net/netip"
	"strconv"
	"strings"

	"hcloud-firewall-controller/internal/model"
)

// wireRule mirrors the API's firewall rule object. The API takes a single
// port string per rule, so one RuleSpec with several port ranges becomes
// several wire rules and fetched wire rules are folded back per protocol.
type wireRule struct {
	Description    string   `json:"description,omitempty"`
	DestinationIPs []string `json:"destination_ips"`
	Direction      string   `json:"direction"`
	Port           *string  `json:"port,omitempty"`
	Protocol       string   `json:"protocol"`
	SourceIPs      []string `json:"source_ips"`
}

type wireFirewall struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Rules []wireRule `json:"rules"`
}

func encodeRules(rules []model.RuleSpec) []wireRule {
	out := []wireRule{}
	for _, rule := range rules {
		sources := make([]string, 0, len(rule.SourceIPs))
		for _, p := range rule.SourceIPs {
			sources = append(sources, p.String())
		}

		if !rule.Protocol.HasPorts() {
			out = append(out, wireRule{
				Description:    strings.ToUpper(string(rule.Protocol)),
				DestinationIPs: []string{},
				Direction:      rule.Direction,
				Protocol:       string(rule.Protocol),
				SourceIPs:      sources,
			})
			continue
		}

		for _, r := range rule.Ports {
			port := r.String()
			out = append(out, wireRule{
				Description:    strings.ToUpper(string(rule.Protocol)) + "-" + port,
				DestinationIPs: []string{},
				Direction:      rule.Direction,
				Port:           &port,
				Protocol:       string(rule.Protocol),
				SourceIPs:      sources,
			})
		}
	}
	return out
}

func decodeFirewall(fw wireFirewall) *model.Firewall {
	return &model.Firewall{
		ID:    fw.ID,
		Name:  fw.Name,
		Rules: decodeRules(fw.Rules),
	}
}

// decodeRules groups wire rules by direction and protocol into RuleSpecs.
// Grouping is only valid when the per-protocol source lists agree; a rule
// whose sources differ from an earlier rule of the same protocol stays a
// separate RuleSpec so that the difference is visible to the differ.
func decodeRules(rules []wireRule) []model.RuleSpec {
	var specs []model.RuleSpec
	for _, wr := range rules {
		sources := parsePrefixes(wr.SourceIPs)

		var ports []model.PortRange
		if wr.Port != nil && *wr.Port != "" {
			r, ok := parseWirePort(*wr.Port)
			if !ok {
				slog.Warn("ignoring unparsable port on remote rule", "protocol", wr.Protocol, "port", *wr.Port)
				continue
			}
			ports = []model.PortRange{r}
		}

		merged := false
		for i := range specs {
			if specs[i].Direction == wr.Direction &&
				specs[i].Protocol == model.Protocol(wr.Protocol) &&
				prefixesEqual(specs[i].SourceIPs, sources) {
				specs[i].Ports = append(specs[i].Ports, ports...)
				merged = true
				break
			}
		}
		if !merged {
			specs = append(specs, model.RuleSpec{
				Direction: wr.Direction,
				Protocol:  model.Protocol(wr.Protocol),
				Ports:     ports,
				SourceIPs: sources,
			})
		}
	}
	return specs
}

func parsePrefixes(raw []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			slog.Warn("ignoring unparsable source on remote rule", "source", s)
			continue
		}
		prefixes = append(prefixes, p)
	}
	model.SortPrefixes(prefixes)
	return prefixes
}

func prefixesEqual(a, b []netip.Prefix) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func parseWirePort(s string) (model.PortRange, bool) {
	start, end, found := strings.Cut(s, "-")
	if !found {
		end = start
	}
	lo, err := strconv.ParseUint(strings.TrimSpace(start), 10, 16)
	if err != nil {
		return model.PortRange{}, false
	}
	hi, err := strconv.ParseUint(strings.TrimSpace(end), 10, 16)
	if err != nil || lo == 0 || lo > hi {
		return model.PortRange{}, false
	}
	return model.PortRange{Start: uint16(lo), End: uint16(hi)}, true
}
