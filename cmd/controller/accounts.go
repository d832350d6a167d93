package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hcloud-firewall-controller/internal/model"
)

type accountsFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	Token        string `yaml:"token"`
	FirewallName string `yaml:"firewall_name,omitempty"`
}

// loadAccounts merges --token flags and the optional accounts file into the
// list of independently reconciled accounts. File entries may override the
// global firewall name per account.
func loadAccounts(path, defaultName string, tokens []string) ([]model.Account, error) {
	var accounts []model.Account
	for _, token := range tokens {
		accounts = append(accounts, model.Account{Token: token, FirewallName: defaultName})
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading accounts file: %w", err)
		}
		var file accountsFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
		}
		for i, entry := range file.Accounts {
			if entry.Token == "" {
				return nil, fmt.Errorf("accounts file %s: account %d has no token", path, i+1)
			}
			name := entry.FirewallName
			if name == "" {
				name = defaultName
			}
			accounts = append(accounts, model.Account{Token: entry.Token, FirewallName: name})
		}
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured: pass --token or --accounts-file")
	}
	return accounts, nil
}
