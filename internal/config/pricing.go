package config

import "github.com/iliyamo/lot-map/internal/pricing"

// LoadPricingPolicy reads the YAML policy named by PRICING_CONFIG, or the
// default policy when unset.
func LoadPricingPolicy(c Config) (pricing.Policy, error) {
	return pricing.LoadPolicy(c.PricingConfig)
}
