// Package pipeline orchestrates the reconciliation stages from
// extracted records to transfer candidates. Each stage receives the
// previous stage's output and contributes issues to a shared report;
// a record-level problem excludes or downgrades that record, it never
// aborts the batch. Only structural failures (no usable input, broken
// config) stop a run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"license-recon/core/costing"
	"license-recon/core/dedup"
	"license-recon/core/mapping"
	"license-recon/core/matching"
	"license-recon/core/transfer"
	"license-recon/core/types"
	"license-recon/core/validate"
	"license-recon/internal/config"
	apperrors "license-recon/internal/errors"
	"license-recon/internal/logging"
)

// Coordinator wires the reconciliation stages together. Build one per
// run with New; it is not safe for concurrent use.
type Coordinator struct {
	cfg        *config.Config
	mapper     *mapping.Mapper
	validator  *validate.Validator
	matcher    *matching.Matcher
	calculator *costing.Calculator
	detector   *transfer.Detector
	log        *zap.Logger
}

// New builds a coordinator from validated configuration.
func New(cfg *config.Config) (*Coordinator, error) {
	if cfg == nil {
		return nil, apperrors.Structural("pipeline requires configuration")
	}
	mapper := mapping.New(cfg.FieldMappings)
	return &Coordinator{
		cfg:        cfg,
		mapper:     mapper,
		validator:  validate.New(cfg.Validation),
		matcher:    matching.New(cfg.Matching),
		calculator: costing.New(cfg.Pricing, mapper),
		detector:   transfer.New(cfg.Transfer),
		log:        logging.Stage("pipeline"),
	}, nil
}

// Run executes the full stage chain over already-extracted inputs and
// returns the aggregated result. The context is checked between
// stages; cancellation returns the error with the partial report
// discarded.
func (c *Coordinator) Run(ctx context.Context, in Inputs) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:      uuid.NewString(),
		StartedAt:  start,
		StageTimes: make(map[types.Stage]time.Duration),
		Report:     &types.RunReport{},
	}
	c.log.Info("run started",
		zap.String("run_id", res.RunID),
		zap.Int("entitlement_records", len(in.Entitlements)),
		zap.Int("usage_records", len(in.Usage)))

	c.reportExtractionFailures(res, in)

	stages := []struct {
		name types.Stage
		fn   func(context.Context, *Inputs, *Result) error
	}{
		{types.StageValidation, c.runValidation},
		{types.StageDedup, c.runDedup},
		{types.StageMatching, c.runMatching},
		{types.StageCosting, c.runCosting},
		{types.StageTransfer, c.runTransfer},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.TypeInternal, "run cancelled", err)
		}
		stageStart := time.Now()
		err := s.fn(ctx, &in, res)
		res.StageTimes[s.name] = time.Since(stageStart)
		if err != nil {
			c.log.Error("stage failed", zap.String("stage", string(s.name)), zap.Error(err))
			return nil, err
		}
		c.log.Debug("stage complete",
			zap.String("stage", string(s.name)),
			zap.Duration("elapsed", res.StageTimes[s.name]))
	}

	res.Duration = time.Since(start)
	res.Success = res.Report.Count(types.SeverityError) == 0
	c.log.Info("run finished",
		zap.String("run_id", res.RunID),
		zap.Bool("success", res.Success),
		zap.Int("errors", res.Report.Count(types.SeverityError)),
		zap.Int("warnings", res.Report.Count(types.SeverityWarning)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// reportExtractionFailures records per-file extraction failures as
// ERROR issues. The batch continues with whatever extracted cleanly.
func (c *Coordinator) reportExtractionFailures(res *Result, in Inputs) {
	failures := append(append([]SourceError{}, in.EntitlementFailures...), in.UsageFailures...)
	for _, f := range failures {
		for _, msg := range f.Errors {
			res.Report.Add(types.Issue{
				Stage:    types.StageExtraction,
				Severity: types.SeverityError,
				Message:  msg,
				Source:   f.Path,
			})
		}
	}
}

// runValidation screens records before they enter the dedup and match
// stages. An ERROR finding excludes the record from every later
// stage; WARNING and INFO findings travel with it. Every finding
// lands in the report, so excluded records stay visible there.
func (c *Coordinator) runValidation(_ context.Context, in *Inputs, res *Result) error {
	var ents []*types.EntitlementRecord
	for _, rec := range in.Entitlements {
		issues := c.validator.Entitlement(rec)
		for _, issue := range issues {
			res.Report.Add(issue)
		}
		if validate.Blocks(issues) {
			res.ExcludedEntitlements++
			c.log.Warn("entitlement record excluded",
				zap.String("record", rec.DisplayName()),
				zap.String("source", rec.SourcePath))
			continue
		}
		ents = append(ents, rec)
	}
	in.Entitlements = ents

	var usageRecs []*types.UsageRecord
	for _, rec := range in.Usage {
		issues := c.validator.Usage(rec)
		for _, issue := range issues {
			res.Report.Add(issue)
		}
		if validate.Blocks(issues) {
			res.ExcludedUsage++
			c.log.Warn("usage record excluded",
				zap.String("msid", rec.MSID),
				zap.String("source", rec.SourcePath))
			continue
		}
		usageRecs = append(usageRecs, rec)
	}
	in.Usage = usageRecs
	return nil
}

func (c *Coordinator) runDedup(_ context.Context, in *Inputs, res *Result) error {
	if len(in.Entitlements) == 0 && res.ExcludedEntitlements > 0 {
		return apperrors.Structural("validation excluded every entitlement record; nothing to reconcile")
	}
	out, err := dedup.Deduplicate(in.Entitlements)
	if err != nil {
		return err
	}
	res.Entitlements = out.Unique
	res.Conflicts = out.Conflicts
	res.DedupStats = out.Stats
	res.Report.Merge(out.Report())
	return nil
}

func (c *Coordinator) runMatching(_ context.Context, in *Inputs, res *Result) error {
	out := c.matcher.Match(res.Entitlements, in.Usage)
	res.Usage = in.Usage
	res.Matches = out.Matches
	res.MatchStats = out.Stats
	res.Report.Merge(out.Report())
	return nil
}

func (c *Coordinator) runCosting(_ context.Context, _ *Inputs, res *Result) error {
	res.Costs = c.calculator.CalculateAll(res.Entitlements, res.Report)
	res.TotalCost = costing.Total(res.Costs)
	return nil
}

// runTransfer assembles per-license-type valuation lines from the
// match and cost outputs, then runs excess detection over them. Used
// quantities are resolved through the field-mapping fallback chain so
// a usage report naming a fallback field still counts against the
// canonical licensed entry.
func (c *Coordinator) runTransfer(_ context.Context, _ *Inputs, res *Result) error {
	prices := indexCosts(res.Costs)

	var lines []transfer.Line
	for _, m := range res.Matches {
		if m.Entitlement == nil {
			continue
		}
		used := m.UsedQuantities()
		for _, name := range sortedTypes(used) {
			if c.entitlementCovers(m.Entitlement.Licensed, name) {
				continue
			}
			res.Report.AddInfo(types.StageTransfer, m.Entitlement.DisplayName(),
				fmt.Sprintf("usage field %q has no licensed counterpart on this system", name))
		}
		for _, licenseType := range sortedTypes(m.Entitlement.Licensed) {
			cost, ok := prices[costKey(m.Key, licenseType)]
			if !ok {
				// no price line (zero quantity or no source); nothing to value
				continue
			}
			qty, resolution := c.mapper.UsageValue(licenseType, used)
			if resolution.FallbackUsed {
				res.Report.AddInfo(types.StageTransfer, m.Entitlement.DisplayName(),
					fmt.Sprintf("usage for %q resolved via fallback field %q",
						licenseType, resolution.Fallback))
			}
			lines = append(lines, transfer.Line{
				Cluster:      m.Entitlement.Cluster,
				MSID:         m.Entitlement.MSID,
				SystemNumber: m.Entitlement.SystemNumber,
				LicenseType:  licenseType,
				Licensed:     cost.LicensedQuantity,
				Used:         qty,
				UnitPrice:    cost.EffectiveUnitPrice(),
				PriceSource:  cost.PriceSource,
				Placeholder:  cost.Placeholder,
			})
		}
	}

	out := c.detector.Detect(lines)
	res.Transfers = out.Candidates
	res.TotalExcessValue = out.TotalExcessValue
	for _, cand := range out.Candidates {
		if cand.PlaceholderPrice {
			res.Report.AddWarning(types.StageTransfer,
				fmt.Sprintf("%s/%s", cand.MSID, cand.SystemNumber),
				fmt.Sprintf("excess value for %q is based on a placeholder price", cand.LicenseType))
		}
	}
	return nil
}

// entitlementCovers reports whether a usage-side field counts against
// any licensed entry, either under its own name or through an
// entitlement-side name whose mapping chain reaches it.
func (c *Coordinator) entitlementCovers(licensed map[string]int, usageField string) bool {
	if _, ok := licensed[usageField]; ok {
		return true
	}
	for _, name := range c.mapper.ReverseLookup(usageField) {
		if _, ok := licensed[name]; ok {
			return true
		}
	}
	return false
}

func costKey(key types.EntitlementKey, licenseType string) string {
	return key.String() + "|" + licenseType
}

func indexCosts(costs []types.CostCalculation) map[string]types.CostCalculation {
	idx := make(map[string]types.CostCalculation, len(costs))
	for _, cost := range costs {
		key := types.EntitlementKey{
			Cluster:      cost.Cluster,
			MSID:         cost.MSID,
			SystemNumber: cost.SystemNumber,
		}
		idx[costKey(key, cost.LicenseType)] = cost
	}
	return idx
}

func sortedTypes(licensed map[string]int) []string {
	names := make([]string, 0, len(licensed))
	for name := range licensed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
