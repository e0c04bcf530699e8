// Package mapping normalizes license-type names between the
// entitlement vocabulary and the usage vocabulary. The table is
// configuration data, loaded once and treated as immutable; mapping
// gaps degrade to pass-through rather than failing the run.
package mapping

import (
	"sort"

	"license-recon/core/types"
	"license-recon/internal/config"
)

// Resolution is the outcome of resolving one license-type name
type Resolution struct {
	// Target is the resolved canonical name
	Target string

	// Found reports whether the target (or a fallback) was actually
	// present when presence was checked. Absence is not zero.
	Found bool

	// FallbackUsed is set when the primary name was absent and a
	// fallback-chain candidate was used instead
	FallbackUsed bool

	// Fallback is the chain entry that supplied the value
	Fallback string

	// Unmapped is set when the name had no table entry and passed
	// through unchanged
	Unmapped bool
}

// Mapper resolves license-type names through the configured synonym
// table and fallback chains.
type Mapper struct {
	table map[string]config.FieldMapping
}

// New builds a Mapper over a mapping table
func New(mappings config.FieldMappings) *Mapper {
	table := make(map[string]config.FieldMapping, len(mappings.LicenseToUsage))
	for name, m := range mappings.LicenseToUsage {
		if m.Primary == "" {
			m.Primary = name
		}
		table[name] = m
	}
	return &Mapper{table: table}
}

// Canonical returns the canonical usage-side name for an
// entitlement-side name without checking presence anywhere.
func (m *Mapper) Canonical(name string) Resolution {
	entry, ok := m.table[name]
	if !ok {
		return Resolution{Target: name, Found: true, Unmapped: true}
	}
	return Resolution{Target: entry.Primary, Found: true}
}

// Resolve maps a name and walks its fallback chain against a presence
// check: the canonical name is tried first, then each fallback in
// order, and the first present candidate wins. When nothing is
// present the field is absent, which callers must not conflate with
// an explicit zero.
func (m *Mapper) Resolve(name string, present func(string) bool) Resolution {
	entry, ok := m.table[name]
	if !ok {
		return Resolution{Target: name, Found: present(name), Unmapped: true}
	}

	if present(entry.Primary) {
		return Resolution{Target: entry.Primary, Found: true}
	}
	for _, fb := range entry.Fallbacks {
		// A fallback may itself be a mapped name.
		candidate := fb
		if fbEntry, ok := m.table[fb]; ok {
			candidate = fbEntry.Primary
		}
		if present(candidate) {
			return Resolution{
				Target:       candidate,
				Found:        true,
				FallbackUsed: true,
				Fallback:     fb,
			}
		}
	}
	return Resolution{Target: entry.Primary, Found: false}
}

// UsageValue resolves a name against a usage quantity map. The bool
// distinguishes absence from an explicit zero quantity.
func (m *Mapper) UsageValue(name string, usage map[string]int) (int, Resolution) {
	res := m.Resolve(name, func(candidate string) bool {
		_, ok := usage[candidate]
		return ok
	})
	if !res.Found {
		return 0, res
	}
	return usage[res.Target], res
}

// ReverseLookup returns every entitlement-side name whose primary or
// fallback chain reaches the given usage-side name, sorted for
// deterministic iteration.
func (m *Mapper) ReverseLookup(target string) []string {
	var out []string
	for name, entry := range m.table {
		if entry.Primary == target {
			out = append(out, name)
			continue
		}
		for _, fb := range entry.Fallbacks {
			if fb == target {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// NoteUnmapped emits the INFO-level pass-through note for an
// unmapped name. Mapping gaps never halt the pipeline.
func NoteUnmapped(report *types.RunReport, record, name string) {
	report.AddInfo(types.StageMapping, record,
		"unmapped field "+name+": no mapping entry, treated as its own canonical name")
}
