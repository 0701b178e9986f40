package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ZoneAccounts maps one revenue zone to its ledger accounts.
type ZoneAccounts struct {
	Revenue string `yaml:"revenue"`
	Expense string `yaml:"expense"`
}

// Accounts is the posting map: which chart-of-accounts codes each posting
// rule uses. It is loaded from a YAML file so deployments can re-point rules
// without a rebuild.
type Accounts struct {
	PresentationCurrency string `yaml:"presentation_currency"`

	Cash             string `yaml:"cash"`
	CardClearing     string `yaml:"card_clearing"`
	Bank             string `yaml:"bank"`
	SuppliersControl string `yaml:"suppliers_control"`
	PartnersControl  string `yaml:"partners_control"`
	Purchases        string `yaml:"purchases"`

	Zones map[string]ZoneAccounts `yaml:"zones"`
}

// LoadAccounts reads and validates the posting map from a YAML file.
func LoadAccounts(path string) (*Accounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts config: %w", err)
	}

	var a Accounts
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse accounts config: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks the fields every posting rule depends on. Zone accounts are
// checked lazily at posting time since zones come and go.
func (a *Accounts) Validate() error {
	var missing []string

	if a.PresentationCurrency == "" {
		missing = append(missing, "presentation_currency")
	}
	if a.Cash == "" {
		missing = append(missing, "cash")
	}
	if a.CardClearing == "" {
		missing = append(missing, "card_clearing")
	}
	if a.SuppliersControl == "" {
		missing = append(missing, "suppliers_control")
	}
	if a.PartnersControl == "" {
		missing = append(missing, "partners_control")
	}
	if a.Purchases == "" {
		missing = append(missing, "purchases")
	}

	if len(missing) > 0 {
		return errors.New("accounts config missing required keys: " + strings.Join(missing, ", "))
	}
	return nil
}

// ZoneRevenue returns the revenue account for a zone, empty when unmapped.
func (a *Accounts) ZoneRevenue(zone string) string {
	return a.Zones[zone].Revenue
}

// ZoneExpense returns the expense account for a zone, empty when unmapped.
func (a *Accounts) ZoneExpense(zone string) string {
	return a.Zones[zone].Expense
}
