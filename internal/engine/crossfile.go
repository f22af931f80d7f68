package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/pkg/domain"
)

// Cross-file check names.
const (
	CheckSiblingPresent   = "sibling_present"
	CheckFooterTotalMatch = "footer_total_matches"
	CheckFieldExistsInSib = "field_exists_in_sibling"
	ParamSiblingField     = "sibling_field"
)

// maxDecodedSiblings caps the in-process memo of decoded sibling files.
// Raw bytes live in redis with a TTL; the memo only skips re-decoding
// within a burst of runs on the same period, so it is cheap to drop.
const maxDecodedSiblings = 64

// SiblingSource locates the most recent active (non-superseded) sibling
// submission for a tenant and reporting period, together with its raw
// bytes. Returns (nil, nil, nil) when no sibling exists - absence is a
// finding, not an error.
type SiblingSource interface {
	ActiveSibling(ctx context.Context, tenantID domain.TenantID, period string, ft domain.FileType) (*models.Submission, []byte, error)
}

// Reconciler resolves sibling submissions for cross-file rules and exposes
// them as read-only decoded record sets. Decoded siblings are memoized per
// reconciler and raw bytes are cached in redis so concurrent runs on the
// same period do not refetch.
type Reconciler struct {
	source SiblingSource
	cache  *redis.Client
	ttl    time.Duration

	mu      sync.Mutex
	decoded map[domain.SubmissionID][]layout.Record
}

// NewReconciler builds a reconciler. cache may be nil (no redis).
func NewReconciler(source SiblingSource, cache *redis.Client, ttl time.Duration) *Reconciler {
	return &Reconciler{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		decoded: make(map[domain.SubmissionID][]layout.Record),
	}
}

// resolve returns the active sibling and its decoded records.
func (r *Reconciler) resolve(ctx context.Context, tenantID domain.TenantID, period string, ft domain.FileType) (*models.Submission, []layout.Record, error) {
	sib, raw, err := r.source.ActiveSibling(ctx, tenantID, period, ft)
	if err != nil {
		return nil, nil, err
	}
	if sib == nil {
		return nil, nil, nil
	}

	r.mu.Lock()
	cached, ok := r.decoded[sib.ID]
	r.mu.Unlock()
	if ok {
		return sib, cached, nil
	}

	if raw == nil && r.cache != nil {
		if payload, err := r.cache.Get(ctx, siblingKey(sib.ID)).Bytes(); err == nil {
			raw = payload
		}
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("sibling %s has no stored content", sib.ID)
	}
	if r.cache != nil {
		r.cache.Set(ctx, siblingKey(sib.ID), raw, r.ttl)
	}

	// Structural defects of the sibling were that submission's own
	// validation concern; cross-file rules read whatever decoded cleanly.
	records, _ := layout.Decode(raw, ft)

	r.mu.Lock()
	if len(r.decoded) >= maxDecodedSiblings {
		r.decoded = make(map[domain.SubmissionID][]layout.Record)
	}
	r.decoded[sib.ID] = records
	r.mu.Unlock()
	return sib, records, nil
}

func siblingKey(id domain.SubmissionID) string {
	return "certus:sibling:" + id.String()
}

// evalCrossFile resolves every required sibling file type and applies the
// rule's reconciliation check against the joined record sets. A missing
// sibling fails the rule with a "missing counterpart file" finding rather
// than skipping: absence of required cross-file data is itself a
// compliance gap.
func (r *Reconciler) evalCrossFile(ctx context.Context, rule rules.Definition, rc *runContext, sub *models.Submission, timeout time.Duration) []Finding {
	var findings []Finding

	for _, ftName := range splitList(rule.Params[ParamRequires]) {
		ft := domain.FileType(ftName)

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		sib, sibRecords, err := r.resolve(callCtx, sub.TenantID, sub.Period, ft)
		cancel()

		if err != nil {
			findings = append(findings, lookupUnavailableFinding(rule, 0, "", "sibling "+ftName, err))
			continue
		}
		if sib == nil {
			findings = append(findings, findingf(rule, rule.Criticality, 0, "", "",
				string(ft)+" submission for period "+sub.Period,
				"missing counterpart file: no active %s submission for period %s", ft, sub.Period))
			continue
		}

		switch rule.Params[ParamCheck] {
		case "", CheckSiblingPresent:
			// Presence was the whole check.
		case CheckFooterTotalMatch:
			findings = append(findings, checkFooterTotals(rule, rc, ft, sibRecords)...)
		case CheckFieldExistsInSib:
			findings = append(findings, checkFieldExists(rule, rc, ft, sibRecords)...)
		}
	}
	return findings
}

// checkFooterTotals compares this file's declared footer total against the
// sibling's, within the layout tolerance.
func checkFooterTotals(rule rules.Definition, rc *runContext, sibType domain.FileType, sibRecords []layout.Record) []Finding {
	if rc.footer == nil {
		return nil
	}
	ours, ok := rc.footer.Field(layout.FieldTotalAmount)
	if !ok || !ours.Valid() {
		return nil
	}

	var sibFooter *layout.Record
	for i := range sibRecords {
		if sibRecords[i].Role == layout.RoleFooter {
			sibFooter = &sibRecords[i]
			break
		}
	}
	if sibFooter == nil {
		return []Finding{findingf(rule, rule.Criticality, 0, layout.FieldTotalAmount, "", "",
			"counterpart %s file has no readable footer to reconcile against", sibType)}
	}
	theirs, ok := sibFooter.Field(layout.FieldTotalAmount)
	if !ok || !theirs.Valid() {
		return []Finding{findingf(rule, rule.Criticality, 0, layout.FieldTotalAmount, "", "",
			"counterpart %s footer total is unreadable", sibType)}
	}

	delta := ours.Dec.Sub(theirs.Dec).Abs()
	if delta.GreaterThan(rc.lay.Tolerance) {
		return []Finding{findingf(rule, rule.Criticality, rc.footer.LineNumber, layout.FieldTotalAmount,
			ours.Dec.String(), theirs.Dec.String(),
			"declared total %s differs from counterpart %s total %s by %s",
			ours.Dec.String(), sibType, theirs.Dec.String(), delta.String())}
	}
	return nil
}

// checkFieldExists verifies every candidate record's field value appears in
// the sibling's detail records (e.g. a transferred NSS must hold a position
// in the contributions file for the same period).
func checkFieldExists(rule rules.Definition, rc *runContext, sibType domain.FileType, sibRecords []layout.Record) []Finding {
	field := rule.Params[ParamField]
	sibField := rule.Params[ParamSiblingField]
	if sibField == "" {
		sibField = field
	}

	sibValues := make(map[string]struct{})
	for _, rec := range sibRecords {
		if rec.Role != layout.RoleDetail {
			continue
		}
		if fv, ok := rec.Field(sibField); ok {
			if v := strings.TrimSpace(fv.Raw); v != "" {
				sibValues[v] = struct{}{}
			}
		}
	}

	var findings []Finding
	for _, rec := range rc.candidates(rule.Condition) {
		fv, ok := rec.Field(field)
		if !ok {
			continue
		}
		v := strings.TrimSpace(fv.Raw)
		if v == "" {
			continue
		}
		if _, ok := sibValues[v]; !ok {
			findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, v,
				"present in "+string(sibType), "%s %q has no matching record in the %s file", field, v, sibType))
		}
	}
	return findings
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
