// Package config loads the data-driven rule tables the pipeline runs
// on: field mappings, pricing catalogs, transfer thresholds, matching
// thresholds, and validation parameters. The core treats everything
// here as already-parsed immutable structures.
package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	apperrors "license-recon/internal/errors"
	"license-recon/internal/logging"
)

// Config is the full set of rule tables for one run
type Config struct {
	// FieldMappings drives license-type name normalization
	FieldMappings FieldMappings `yaml:"field_mappings"`

	// Pricing defines the price resolution cascade
	Pricing PricingConfig `yaml:"pricing"`

	// Transfer defines priority thresholds and detection criteria
	Transfer TransferConfig `yaml:"transfer"`

	// Matching defines fuzzy-match thresholds
	Matching MatchingConfig `yaml:"matching"`

	// Validation defines record validation parameters
	Validation ValidationConfig `yaml:"validation"`

	// Logging configures the run logger
	Logging logging.Config `yaml:"logging"`
}

// FieldMappings holds the entitlement-to-usage vocabulary table
type FieldMappings struct {
	// LicenseToUsage maps an entitlement-side license type to its
	// canonical usage-side name, optionally with a fallback chain
	LicenseToUsage map[string]FieldMapping `yaml:"license_to_usage"`
}

// FieldMapping is one mapping entry. In YAML it is either a bare
// string (direct synonym) or a {primary, fallback} object.
type FieldMapping struct {
	// Primary is the canonical usage-side name
	Primary string `yaml:"primary"`

	// Fallbacks are candidate names tried in order when the primary
	// field is absent, most specific first
	Fallbacks []string `yaml:"fallback"`
}

// UnmarshalYAML accepts both the shorthand string form and the full
// object form.
func (m *FieldMapping) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var direct string
	if err := unmarshal(&direct); err == nil {
		m.Primary = direct
		m.Fallbacks = nil
		return nil
	}
	var full struct {
		Primary   string   `yaml:"primary"`
		Fallbacks []string `yaml:"fallback"`
	}
	if err := unmarshal(&full); err != nil {
		return err
	}
	m.Primary = full.Primary
	m.Fallbacks = full.Fallbacks
	return nil
}

// PricingConfig defines the ordered cascade of pricing sources
type PricingConfig struct {
	// Strategy lists the sources, consulted in ascending priority
	Strategy []PricingStrategy `yaml:"pricing_strategy"`

	// Calculation tunes the cost formula
	Calculation CalculationRules `yaml:"calculation"`
}

// PricingStrategy is one tier of the pricing cascade. A tier either
// references a catalog file or carries a fixed placeholder value.
type PricingStrategy struct {
	// Name is recorded verbatim as the price provenance
	Name string `yaml:"name"`

	// Priority orders the cascade, lower is consulted first
	Priority int `yaml:"priority"`

	// Source is the catalog file, relative to the config directory
	Source string `yaml:"source,omitempty"`

	// Value, when set, makes this tier a fixed placeholder price
	Value *float64 `yaml:"value,omitempty"`

	// Catalog is the loaded catalog content (populated by Load)
	Catalog map[string]CatalogEntry `yaml:"-"`
}

// CatalogEntry prices one license type
type CatalogEntry struct {
	// UnitCost is the price per Per increment
	UnitCost float64 `yaml:"unit_cost"`

	// Per is the quantity increment, defaults to 1
	Per int `yaml:"per"`
}

// CalculationRules tunes cost computation
type CalculationRules struct {
	// IncludeZeroQuantities also prices license types licensed at
	// zero quantity; off by default
	IncludeZeroQuantities bool `yaml:"include_zero_quantities"`

	// MinimumCharge floors each line total
	MinimumCharge float64 `yaml:"minimum_charge"`
}

// TransferConfig defines transfer candidate classification
type TransferConfig struct {
	// HighThreshold: excess value strictly above this is HIGH
	HighThreshold float64 `yaml:"high_threshold"`

	// MediumThreshold: excess value at or above this (and at or below
	// HighThreshold) is MEDIUM; below is LOW
	MediumThreshold float64 `yaml:"medium_threshold"`
}

// MatchingConfig defines fuzzy matching behavior
type MatchingConfig struct {
	// MinSimilarity is the floor for accepting a fuzzy match (0..1)
	MinSimilarity float64 `yaml:"min_similarity"`

	// AmbiguityDelta flags a match when the top two candidates are
	// within this similarity distance
	AmbiguityDelta float64 `yaml:"ambiguity_delta"`
}

// ValidationConfig defines record validation parameters
type ValidationConfig struct {
	// CustomerPatterns are substrings expected in customer names
	CustomerPatterns []string `yaml:"customer_patterns"`

	// MaxLicenseAgeDays flags licenses older than this
	MaxLicenseAgeDays int `yaml:"max_license_age_days"`
}

var defaultPlaceholderPrice = 100.0

// Default returns a configuration with the standard thresholds, an
// empty mapping table, and the placeholder pricing tier only. Tests
// and programmatic callers start here.
func Default() *Config {
	return &Config{
		FieldMappings: FieldMappings{LicenseToUsage: map[string]FieldMapping{}},
		Pricing: PricingConfig{
			Strategy: []PricingStrategy{
				{Name: "Placeholder $100", Priority: 99, Value: &defaultPlaceholderPrice},
			},
			Calculation: CalculationRules{},
		},
		Transfer: TransferConfig{
			HighThreshold:   50000,
			MediumThreshold: 10000,
		},
		Matching: MatchingConfig{
			MinSimilarity:  0.8,
			AmbiguityDelta: 0.05,
		},
		Validation: ValidationConfig{
			MaxLicenseAgeDays: 3650,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the rule tables from a config directory. Expected files:
//
//	field_mappings.yaml   (required)
//	cost_rules.yaml       (required; catalog sources resolved relative
//	                       to the directory)
//	transfer_rules.yaml   (optional, defaults apply)
//	matching_rules.yaml   (optional, defaults apply)
//	validation_rules.yaml (optional, defaults apply)
//
// Missing required files are structural failures: the run cannot
// produce meaningful output without them.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if err := loadYAML(filepath.Join(dir, "field_mappings.yaml"), &cfg.FieldMappings, true); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "cost_rules.yaml"), &cfg.Pricing, true); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "transfer_rules.yaml"), &cfg.Transfer, false); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "matching_rules.yaml"), &cfg.Matching, false); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "validation_rules.yaml"), &cfg.Validation, false); err != nil {
		return nil, err
	}

	if err := loadCatalogs(dir, cfg.Pricing.Strategy); err != nil {
		return nil, err
	}
	sort.SliceStable(cfg.Pricing.Strategy, func(i, j int) bool {
		return cfg.Pricing.Strategy[i].Priority < cfg.Pricing.Strategy[j].Priority
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks run-level configuration invariants
func (c *Config) Validate() error {
	if len(c.Pricing.Strategy) == 0 {
		return apperrors.Structural("pricing configuration defines no sources")
	}
	for _, s := range c.Pricing.Strategy {
		if s.Name == "" {
			return apperrors.Structural("pricing source missing name")
		}
		if s.Value == nil && s.Source == "" && s.Catalog == nil {
			return apperrors.Newf(apperrors.TypeConfig,
				"pricing source %q has neither a catalog nor a placeholder value", s.Name)
		}
	}
	if c.Matching.MinSimilarity <= 0 || c.Matching.MinSimilarity > 1 {
		return apperrors.Newf(apperrors.TypeConfig,
			"matching min_similarity %v outside (0, 1]", c.Matching.MinSimilarity)
	}
	if c.Transfer.MediumThreshold > c.Transfer.HighThreshold {
		return apperrors.Newf(apperrors.TypeConfig,
			"transfer medium threshold %v above high threshold %v",
			c.Transfer.MediumThreshold, c.Transfer.HighThreshold)
	}
	return nil
}

func loadYAML(path string, out interface{}, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		if os.IsNotExist(err) {
			return apperrors.Newf(apperrors.TypeStructural, "required config file missing: %s", path)
		}
		return apperrors.Config("reading "+path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return apperrors.Config("parsing "+path, err)
	}
	return nil
}

func loadCatalogs(dir string, strategy []PricingStrategy) error {
	for i := range strategy {
		s := &strategy[i]
		if s.Source == "" || s.Catalog != nil {
			continue
		}
		catalog := map[string]CatalogEntry{}
		if err := loadYAML(filepath.Join(dir, s.Source), &catalog, true); err != nil {
			return err
		}
		for name, entry := range catalog {
			if entry.Per == 0 {
				entry.Per = 1
				catalog[name] = entry
			}
		}
		s.Catalog = catalog
	}
	return nil
}
