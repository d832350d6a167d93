package wellknown

import (
	"strings"

	"hcloud-firewall-controller/internal/model"
)

// ServiceEntry is one well-known port assignment for a named service.
type ServiceEntry struct {
	Protocol model.Protocol
	Start    uint16
	End      uint16
}

var serviceRegistry = map[string][]ServiceEntry{
	"SSH":        {{Protocol: model.TCP, Start: 22, End: 22}},
	"HTTP":       {{Protocol: model.TCP, Start: 80, End: 80}},
	"HTTPS":      {{Protocol: model.TCP, Start: 443, End: 443}},
	"SMTP":       {{Protocol: model.TCP, Start: 25, End: 25}},
	"SUBMISSION": {{Protocol: model.TCP, Start: 587, End: 587}},
	"IMAPS":      {{Protocol: model.TCP, Start: 993, End: 993}},
	"RDP":        {{Protocol: model.TCP, Start: 3389, End: 3389}},
	"MYSQL":      {{Protocol: model.TCP, Start: 3306, End: 3306}},
	"POSTGRES":   {{Protocol: model.TCP, Start: 5432, End: 5432}},
	"DOMAIN": {
		{Protocol: model.TCP, Start: 53, End: 53},
		{Protocol: model.UDP, Start: 53, End: 53},
	},
	"DNS": {
		{Protocol: model.TCP, Start: 53, End: 53},
		{Protocol: model.UDP, Start: 53, End: 53},
	},
	"NTP":       {{Protocol: model.UDP, Start: 123, End: 123}},
	"WIREGUARD": {{Protocol: model.UDP, Start: 51820, End: 51820}},
	"OPENVPN":   {{Protocol: model.UDP, Start: 1194, End: 1194}},
	"MOSH":      {{Protocol: model.UDP, Start: 60000, End: 61000}},
}

// GetService returns the port assignments for a well-known service name.
func GetService(name string) ([]ServiceEntry, bool) {
	entry, ok := serviceRegistry[strings.ToUpper(name)]
	return entry, ok
}
