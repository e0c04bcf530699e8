// Package matching associates deduplicated entitlement records with
// their usage records. Tiers are evaluated in order, first success
// wins: exact key match, then fuzzy textual match, then unmatched.
// An unmatched entitlement never blocks downstream stages.
package matching

import (
	"fmt"
	"sort"
	"strings"

	"license-recon/core/types"
	"license-recon/internal/config"
)

// Matcher runs the tiered matching policy
type Matcher struct {
	minSimilarity  float64
	ambiguityDelta float64
}

// Result carries the match records and the run statistics operators
// use to judge how much to trust downstream valuations.
type Result struct {
	Matches []*types.MatchRecord
	Stats   types.MatchStats
}

// New builds a Matcher from the configured thresholds
func New(cfg config.MatchingConfig) *Matcher {
	return &Matcher{
		minSimilarity:  cfg.MinSimilarity,
		ambiguityDelta: cfg.AmbiguityDelta,
	}
}

// Match associates each entitlement with its usage records. Exact
// matches always outrank fuzzy ones; fuzzy matching only runs when no
// exact match exists for the entitlement key.
func (m *Matcher) Match(entitlements []*types.EntitlementRecord, usage []*types.UsageRecord) *Result {
	byMSID := groupUsage(usage)

	result := &Result{}
	fuzzyWinners := make(map[string][]*types.MatchRecord)

	for _, ent := range entitlements {
		rec := m.matchOne(ent, byMSID)
		result.Matches = append(result.Matches, rec)
		if rec.Confidence == types.ConfidenceFuzzy && len(rec.MatchedUsage) > 0 {
			winner := normalize(rec.MatchedUsage[0].MSID)
			fuzzyWinners[winner] = append(fuzzyWinners[winner], rec)
		}
	}

	// A usage record fuzzy-matched to several entitlements is a real
	// data-quality problem; keep every match but flag them all.
	for msid, recs := range fuzzyWinners {
		if len(recs) < 2 {
			continue
		}
		for _, rec := range recs {
			rec.SharedUsage = true
			rec.Notes = append(rec.Notes,
				fmt.Sprintf("usage record %s fuzzy-matched to %d entitlements", msid, len(recs)))
		}
	}

	for _, rec := range result.Matches {
		result.Stats.Total++
		switch rec.Confidence {
		case types.ConfidenceExact:
			result.Stats.Exact++
		case types.ConfidenceFuzzy:
			result.Stats.Fuzzy++
		default:
			result.Stats.Unmatched++
		}
		if rec.Ambiguous {
			result.Stats.Ambiguous++
		}
		if rec.SharedUsage {
			result.Stats.SharedUsage++
		}
	}
	return result
}

// Report converts per-match annotations into issue-report entries
func (r *Result) Report() *types.RunReport {
	report := &types.RunReport{}
	for _, rec := range r.Matches {
		name := rec.Key.String()
		switch rec.Confidence {
		case types.ConfidenceUnmatched:
			report.AddInfo(types.StageMatching, name,
				"no usage data found; analysis proceeds with used quantity 0")
		case types.ConfidenceFuzzy:
			report.AddInfo(types.StageMatching, name,
				fmt.Sprintf("fuzzy match at %.0f%% similarity", rec.Similarity*100))
		}
		if rec.Ambiguous {
			report.AddWarning(types.StageMatching, name,
				"ambiguous fuzzy match: top candidates within similarity delta")
		}
		if rec.SharedUsage {
			report.AddWarning(types.StageMatching, name,
				"usage record shared with another entitlement via fuzzy matching")
		}
	}
	return report
}

type usageGroup struct {
	msid string
	rows []*types.UsageRecord
}

// groupUsage indexes usage rows by normalized MSID, preserving a
// deterministic row order within each group.
func groupUsage(usage []*types.UsageRecord) map[string]*usageGroup {
	grouped := make(map[string]*usageGroup)
	for _, u := range usage {
		key := normalize(u.MSID)
		g, ok := grouped[key]
		if !ok {
			g = &usageGroup{msid: u.MSID}
			grouped[key] = g
		}
		g.rows = append(g.rows, u)
	}
	for _, g := range grouped {
		sort.SliceStable(g.rows, func(i, j int) bool {
			if g.rows[i].LicenseType != g.rows[j].LicenseType {
				return g.rows[i].LicenseType < g.rows[j].LicenseType
			}
			return g.rows[i].SourcePath < g.rows[j].SourcePath
		})
	}
	return grouped
}

func (m *Matcher) matchOne(ent *types.EntitlementRecord, byMSID map[string]*usageGroup) *types.MatchRecord {
	rec := &types.MatchRecord{
		Key:         ent.Key(),
		Entitlement: ent,
		Confidence:  types.ConfidenceUnmatched,
	}

	// Tier 1: exact MSID, and cluster when the usage side knows one.
	if g, ok := byMSID[normalize(ent.MSID)]; ok {
		rows := clusterCompatible(g.rows, ent.Cluster)
		if len(rows) > 0 {
			rec.MatchedUsage = rows
			rec.Confidence = types.ConfidenceExact
			rec.Similarity = 1
			return rec
		}
	}

	// Tier 2: fuzzy similarity across cluster-compatible candidates.
	type candidate struct {
		key   string
		group *usageGroup
		score float64
	}
	var candidates []candidate
	for key, g := range byMSID {
		rows := clusterCompatible(g.rows, ent.Cluster)
		if len(rows) == 0 {
			continue
		}
		score := similarity(ent.MSID, g.msid)
		if score >= m.minSimilarity {
			candidates = append(candidates, candidate{key: key, group: g, score: score})
		}
	}
	if len(candidates) > 0 {
		// Highest similarity wins; ties broken by MSID for
		// reproducibility across runs.
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].key < candidates[j].key
		})
		best := candidates[0]
		rec.MatchedUsage = clusterCompatible(best.group.rows, ent.Cluster)
		rec.Confidence = types.ConfidenceFuzzy
		rec.Similarity = best.score
		rec.Notes = append(rec.Notes,
			fmt.Sprintf("fuzzy matched %s to usage %s (%.0f%%)", ent.MSID, best.group.msid, best.score*100))
		if len(candidates) > 1 && best.score-candidates[1].score <= m.ambiguityDelta {
			// Never silently drop the record: keep the top candidate
			// and surface the ambiguity for operator review.
			rec.Ambiguous = true
		}
		return rec
	}

	// Tier 3: unmatched. Downstream uses used quantity 0, which is
	// conservative: the whole entitlement surfaces as excess for an
	// operator to investigate.
	return rec
}

// clusterCompatible keeps rows whose cluster matches the entitlement
// cluster, or that carry no cluster at all.
func clusterCompatible(rows []*types.UsageRecord, cluster string) []*types.UsageRecord {
	var out []*types.UsageRecord
	for _, u := range rows {
		if u.Cluster == "" || strings.EqualFold(u.Cluster, cluster) {
			out = append(out, u)
		}
	}
	return out
}
