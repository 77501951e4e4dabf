package pricing

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Policy holds the commercial parameters used to build proformas.
type Policy struct {
	MinDownPayment      decimal.Decimal
	MaxPromoDays        int
	DefaultInstallments int
	AnnualInterestPct   decimal.Decimal
}

// DefaultPolicy is used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		MinDownPayment:      DefaultMinDownPayment,
		MaxPromoDays:        DefaultMaxPromoDays,
		DefaultInstallments: 12,
		AnnualInterestPct:   decimal.Zero,
	}
}

type policyFile struct {
	MinDownPayment      *float64 `yaml:"min_down_payment"`
	MaxPromoDays        *int     `yaml:"max_promo_days"`
	DefaultInstallments *int     `yaml:"default_installments"`
	AnnualInterestPct   *float64 `yaml:"annual_interest_pct"`
}

// LoadPolicy reads a YAML policy file on top of DefaultPolicy.  Keys that
// are absent keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("pricing policy: %w", err)
	}
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return p, fmt.Errorf("pricing policy %s: %w", path, err)
	}
	if f.MinDownPayment != nil {
		if *f.MinDownPayment < 0 {
			return p, fmt.Errorf("pricing policy %s: min_down_payment must not be negative", path)
		}
		p.MinDownPayment = decimal.NewFromFloat(*f.MinDownPayment)
	}
	if f.MaxPromoDays != nil {
		if *f.MaxPromoDays < 1 {
			return p, fmt.Errorf("pricing policy %s: max_promo_days must be at least 1", path)
		}
		p.MaxPromoDays = *f.MaxPromoDays
	}
	if f.DefaultInstallments != nil {
		if *f.DefaultInstallments < 1 {
			return p, fmt.Errorf("pricing policy %s: default_installments must be at least 1", path)
		}
		p.DefaultInstallments = *f.DefaultInstallments
	}
	if f.AnnualInterestPct != nil {
		p.AnnualInterestPct = decimal.NewFromFloat(*f.AnnualInterestPct)
	}
	return p, nil
}
