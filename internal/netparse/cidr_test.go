package netparse

import (
	"net/netip"
	"strings"
	"testing"
)

func TestParseNetworkPrefix(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "valid ipv4 network", input: "198.51.100.0/24"},
		{name: "valid ipv4 host", input: "203.0.113.9/32"},
		{name: "valid ipv6 network", input: "2001:db8::/64"},
		{name: "host bits set ipv4", input: "127.0.0.1/24", wantErr: "not a network id"},
		{name: "host bits set ipv6", input: "2001:db8::1/64", wantErr: "not a network id"},
		{name: "not a cidr", input: "198.51.100.0", wantErr: "invalid CIDR"},
		{name: "garbage", input: "nonsense", wantErr: "invalid CIDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNetworkPrefix(tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.input {
				t.Errorf("expected %s, got %s", tt.input, got)
			}
		})
	}
}

func TestParseNetworkPrefixesStopsOnFirstError(t *testing.T) {
	_, err := ParseNetworkPrefixes([]string{"198.51.100.0/24", "10.0.0.1/8"})
	if err == nil {
		t.Fatal("expected error for host bits in second entry")
	}
}

func TestHostPrefix(t *testing.T) {
	v4 := HostPrefix(netip.MustParseAddr("203.0.113.5"))
	if v4.String() != "203.0.113.5/32" {
		t.Errorf("expected /32 host prefix, got %s", v4)
	}
	v6 := HostPrefix(netip.MustParseAddr("2001:db8::1"))
	if v6.String() != "2001:db8::1/128" {
		t.Errorf("expected /128 host prefix, got %s", v6)
	}
}
