// Package costing resolves a unit price for each licensed type through
// the configured cascade of pricing sources and computes line totals
// in exact decimal arithmetic. The cascade stops at the first source
// that defines a price; the chosen source is recorded verbatim so
// reports can tell firm numbers from estimates.
package costing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"license-recon/core/mapping"
	"license-recon/core/types"
	"license-recon/internal/config"
)

// Quote is a resolved price for one license type
type Quote struct {
	// UnitCost is the price per Per increment
	UnitCost decimal.Decimal

	// Per is the quantity increment the price applies to
	Per int

	// Source names the pricing tier, verbatim
	Source string

	// Placeholder marks a fallback price used only because no real
	// source defined one
	Placeholder bool
}

type tier struct {
	name        string
	catalog     map[string]config.CatalogEntry
	placeholder *decimal.Decimal
}

// Calculator prices entitlement lines through the cascade
type Calculator struct {
	tiers         []tier
	mapper        *mapping.Mapper
	includeZero   bool
	minimumCharge decimal.Decimal

	// noted tracks license types already reported as unmapped, so a
	// name recurring across records is noted once per run
	noted map[string]bool
}

// New builds a Calculator from pricing configuration. Sources are
// consulted in ascending priority order.
func New(cfg config.PricingConfig, mapper *mapping.Mapper) *Calculator {
	strategy := make([]config.PricingStrategy, len(cfg.Strategy))
	copy(strategy, cfg.Strategy)
	sort.SliceStable(strategy, func(i, j int) bool {
		return strategy[i].Priority < strategy[j].Priority
	})

	c := &Calculator{
		mapper:        mapper,
		noted:         make(map[string]bool),
		includeZero:   cfg.Calculation.IncludeZeroQuantities,
		minimumCharge: decimal.NewFromFloat(cfg.Calculation.MinimumCharge),
	}
	for _, s := range strategy {
		t := tier{name: s.Name, catalog: s.Catalog}
		if s.Value != nil {
			v := decimal.NewFromFloat(*s.Value)
			t.placeholder = &v
		}
		c.tiers = append(c.tiers, t)
	}
	return c
}

// Resolve walks the cascade for one license type. The boolean is
// false only when no source, placeholder included, defines a price.
// A zero price from a catalog is a valid price, not "no price".
func (c *Calculator) Resolve(licenseType string) (Quote, bool) {
	canonical := c.mapper.Canonical(licenseType).Target
	for _, t := range c.tiers {
		if entry, ok := lookup(t.catalog, licenseType, canonical); ok {
			per := entry.Per
			if per <= 0 {
				per = 1
			}
			return Quote{
				UnitCost: decimal.NewFromFloat(entry.UnitCost),
				Per:      per,
				Source:   t.name,
			}, true
		}
		if t.placeholder != nil {
			return Quote{
				UnitCost:    *t.placeholder,
				Per:         1,
				Source:      t.name,
				Placeholder: true,
			}, true
		}
	}
	return Quote{}, false
}

// Calculate prices every licensed type on one entitlement record.
// Placeholder pricing produces a warning note; a license type priced
// by no source at all also warns but never fails the run.
func (c *Calculator) Calculate(ent *types.EntitlementRecord, report *types.RunReport) []types.CostCalculation {
	var lines []types.CostCalculation

	for _, licenseType := range sortedTypes(ent.Licensed) {
		quantity := ent.Licensed[licenseType]
		if quantity == 0 && !c.includeZero {
			continue
		}

		if c.mapper.Canonical(licenseType).Unmapped && !c.noted[licenseType] {
			c.noted[licenseType] = true
			mapping.NoteUnmapped(report, ent.DisplayName(), licenseType)
		}

		quote, ok := c.Resolve(licenseType)
		if !ok {
			report.AddWarning(types.StageCosting, ent.DisplayName(),
				fmt.Sprintf("no pricing source defines %s; line skipped", licenseType))
			continue
		}
		if quote.Placeholder {
			report.AddWarning(types.StageCosting, ent.DisplayName(),
				fmt.Sprintf("placeholder price used for %s (source %q)", licenseType, quote.Source))
		}

		lines = append(lines, types.CostCalculation{
			Cluster:          ent.Cluster,
			MSID:             ent.MSID,
			SystemNumber:     ent.SystemNumber,
			LicenseType:      licenseType,
			LicensedQuantity: quantity,
			UnitPrice:        quote.UnitCost,
			Per:              quote.Per,
			TotalCost:        c.lineTotal(quantity, quote),
			PriceSource:      quote.Source,
			Placeholder:      quote.Placeholder,
		})
	}
	return lines
}

// CalculateAll prices a whole batch, preserving record order
func (c *Calculator) CalculateAll(entitlements []*types.EntitlementRecord, report *types.RunReport) []types.CostCalculation {
	var all []types.CostCalculation
	for _, ent := range entitlements {
		all = append(all, c.Calculate(ent, report)...)
	}
	return all
}

// Total sums line totals exactly
func Total(lines []types.CostCalculation) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalCost)
	}
	return total
}

// lineTotal applies (quantity / per) * unit_cost, rounded to cents,
// floored at the configured minimum charge.
func (c *Calculator) lineTotal(quantity int, quote Quote) decimal.Decimal {
	q := decimal.NewFromInt(int64(quantity))
	total := q.Div(decimal.NewFromInt(int64(quote.Per))).Mul(quote.UnitCost).Round(2)
	if total.LessThan(c.minimumCharge) {
		return c.minimumCharge
	}
	return total
}

// lookup tries the entitlement-side name first, then the canonical
// usage-side name, so catalogs may be keyed in either vocabulary.
func lookup(catalog map[string]config.CatalogEntry, name, canonical string) (config.CatalogEntry, bool) {
	if catalog == nil {
		return config.CatalogEntry{}, false
	}
	if entry, ok := catalog[name]; ok {
		return entry, true
	}
	if canonical != name {
		if entry, ok := catalog[canonical]; ok {
			return entry, true
		}
	}
	return config.CatalogEntry{}, false
}

func sortedTypes(licensed map[string]int) []string {
	out := make([]string, 0, len(licensed))
	for name := range licensed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
