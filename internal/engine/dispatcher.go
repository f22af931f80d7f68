package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/pkg/domain"
)

// errNoReconciler marks a cross-file rule evaluated without a sibling
// reconciler wired in.
var errNoReconciler = errors.New("no sibling reconciler configured")

// dispatch evaluates the ordered rule set against the decoded submission.
//
// Structure rules run first, sequentially, in catalog order: a failed
// Critical Structure rule marks every remaining Structure rule Skipped,
// since field-level structure checks on a file whose shape is already
// known broken only repeat the same defect. All other rule types still
// run, bounded by cfg.RuleParallelism, so the submitter gets the complete
// error picture in one pass. Outcome order always mirrors catalog order
// regardless of scheduling.
func (e *Engine) dispatch(ctx context.Context, defs []rules.Definition, rc *runContext, sub *models.Submission) []RuleOutcome {
	outcomes := make([]RuleOutcome, len(defs))

	structuralShortCircuit := false
	var deferred []int

	for i, def := range defs {
		if def.Type != rules.TypeStructure {
			deferred = append(deferred, i)
			continue
		}
		if structuralShortCircuit {
			outcomes[i] = RuleOutcome{
				RuleCode:    def.Code,
				RuleType:    def.Type,
				Criticality: def.Criticality,
				Skipped:     true,
			}
			continue
		}
		outcomes[i] = e.evalRule(ctx, def, rc, sub)
		if !outcomes[i].Passed && def.Criticality == domain.SeverityCritical {
			structuralShortCircuit = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RuleParallelism)
	for _, i := range deferred {
		i := i
		g.Go(func() error {
			outcomes[i] = e.evalRule(gctx, defs[i], rc, sub)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// evalRule runs one rule, times it, and folds its findings into an outcome.
// A failing outcome carries the worst severity its findings actually
// reached, so an advisory degradation (e.g. lookup unavailable on a
// non-critical rule) never escalates beyond what was reported.
func (e *Engine) evalRule(ctx context.Context, def rules.Definition, rc *runContext, sub *models.Submission) RuleOutcome {
	start := time.Now()

	var findings []Finding
	switch def.Type {
	case rules.TypeStructure:
		findings = evalStructure(def, rc)
	case rules.TypeFormat:
		findings = evalFormat(def, rc)
	case rules.TypeRange:
		findings = evalRange(def, rc)
	case rules.TypeCalculation:
		findings = evalCalculation(def, rc)
	case rules.TypeLogic:
		findings = evalLogic(def, rc)
	case rules.TypeCatalog:
		findings = evalCatalog(ctx, def, rc, e.lookup, e.cfg.LookupTimeout)
	case rules.TypeExternalAPI:
		findings = evalCatalog(ctx, def, rc, e.external, e.cfg.LookupTimeout)
	case rules.TypeCompliance:
		findings = evalCompliance(ctx, def, rc, e.lookup, e.cfg.LookupTimeout)
	case rules.TypeCrossFile:
		if e.recon == nil {
			// An assembly without a reconciler must not silently pass a
			// rule whose whole point is the counterpart file.
			findings = []Finding{lookupUnavailableFinding(def, 0, "", "cross-file evaluation",
				errNoReconciler)}
		} else {
			findings = e.recon.evalCrossFile(ctx, def, rc, sub, e.cfg.LookupTimeout)
		}
	}

	duration := time.Since(start)
	outcome := RuleOutcome{
		RuleCode:    def.Code,
		RuleType:    def.Type,
		Criticality: def.Criticality,
		Passed:      len(findings) == 0,
		Findings:    findings,
		Duration:    duration,
	}
	if !outcome.Passed {
		outcome.Criticality = worstSeverity(findings)
	}

	if e.metrics != nil {
		e.metrics.ObserveRule(string(def.Type), duration)
		for _, f := range findings {
			e.metrics.CountFinding(string(f.Severity))
			if f.LookupUnavailable {
				e.metrics.IncrementLookupFailures()
			}
		}
	}
	return outcome
}

func worstSeverity(findings []Finding) domain.Severity {
	worst := domain.SeverityInfo
	for _, f := range findings {
		if f.Severity.AtLeast(worst) {
			worst = f.Severity
		}
	}
	return worst
}
