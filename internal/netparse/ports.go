package netparse

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"hcloud-firewall-controller/internal/model"
	"hcloud-firewall-controller/pkg/wellknown"
)

// ParsePortRanges parses port specifications for one protocol. Each element
// may itself be a comma separated list; entries are single ports ("80"),
// ranges ("80-85") or well-known service names ("ssh"). The result is
// normalized into the minimal covering set so that rule comparisons stay
// representation-insensitive.
func ParsePortRanges(proto model.Protocol, specs []string) ([]model.PortRange, error) {
	var ranges []model.PortRange
	for _, spec := range specs {
		for _, item := range strings.Split(spec, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			r, err := parsePortItem(proto, item)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, r...)
		}
	}
	return NormalizePortRanges(ranges), nil
}

func parsePortItem(proto model.Protocol, item string) ([]model.PortRange, error) {
	if start, end, found := strings.Cut(item, "-"); found {
		lo, err := parsePort(start)
		if err != nil {
			return nil, fmt.Errorf("invalid port range %q: %w", item, err)
		}
		hi, err := parsePort(end)
		if err != nil {
			return nil, fmt.Errorf("invalid port range %q: %w", item, err)
		}
		if lo > hi {
			return nil, fmt.Errorf("invalid port range %q: start exceeds end", item)
		}
		return []model.PortRange{{Start: lo, End: hi}}, nil
	}

	if port, err := parsePort(item); err == nil {
		return []model.PortRange{{Start: port, End: port}}, nil
	}

	// Not numeric, try a well-known service name for this protocol.
	entries, ok := wellknown.GetService(item)
	if !ok {
		return nil, fmt.Errorf("unknown %s port specification %q", proto, item)
	}
	var ranges []model.PortRange
	for _, e := range entries {
		if e.Protocol == proto {
			ranges = append(ranges, model.PortRange{Start: e.Start, End: e.End})
		}
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("service %q has no %s port assignment", item, proto)
	}
	return ranges, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("port must be a number between 1 and 65535")
	}
	if n == 0 {
		return 0, fmt.Errorf("port must be a number between 1 and 65535")
	}
	return uint16(n), nil
}

// NormalizePortRanges sorts ranges and merges overlapping or adjacent ones
// into the minimal covering set.
func NormalizePortRanges(ranges []model.PortRange) []model.PortRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b model.PortRange) int {
		if a.Start != b.Start {
			return int(a.Start) - int(b.Start)
		}
		return int(a.End) - int(b.End)
	})

	merged := []model.PortRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if uint32(r.Start) <= uint32(last.End)+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
