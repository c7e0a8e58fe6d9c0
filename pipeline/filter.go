package pipeline

import (
	"strings"

	"daangn-crawler/models"
)

// Verdict is the three-way outcome of checking one category.
type Verdict int

const (
	Unknown Verdict = iota
	Allowed
	Disallowed
)

// CategoryFilter admits listings by category. A disabled filter admits
// everything.
type CategoryFilter struct {
	enabled bool
	allowed map[string]struct{}
}

// NewCategoryFilter builds a filter over the allowed categories.
func NewCategoryFilter(allowed []string, enabled bool) CategoryFilter {
	set := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		if c = strings.TrimSpace(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return CategoryFilter{enabled: enabled, allowed: set}
}

// Enabled reports whether the filter drops anything at all.
func (f CategoryFilter) Enabled() bool {
	return f.enabled
}

// Allowed returns the allowed categories in no particular order.
func (f CategoryFilter) Allowed() []string {
	out := make([]string, 0, len(f.allowed))
	for c := range f.allowed {
		out = append(out, c)
	}
	return out
}

// Check classifies a possibly absent category.
func (f CategoryFilter) Check(category *string) Verdict {
	if category == nil {
		return Unknown
	}
	c := strings.TrimSpace(*category)
	if c == "" {
		return Unknown
	}
	if _, ok := f.allowed[c]; ok {
		return Allowed
	}
	return Disallowed
}

// Pre narrows summaries before the detail stage. Unknown categories are
// admitted so the detail page can decide; known disallowed ones are dropped.
func (f CategoryFilter) Pre(summaries []models.ListingSummary) (admitted []models.ListingSummary, dropped int) {
	if !f.enabled {
		return summaries, 0
	}

	admitted = make([]models.ListingSummary, 0, len(summaries))
	for _, s := range summaries {
		if f.Check(s.Category) == Disallowed {
			dropped++
			continue
		}
		admitted = append(admitted, s)
	}
	return admitted, dropped
}

// Post keeps only records whose resolved category is allowed. Records with no
// category at all are dropped and counted apart from known rejections.
func (f CategoryFilter) Post(records []models.MergedRecord) (kept []models.MergedRecord, rejected, unresolved int) {
	if !f.enabled {
		return records, 0, 0
	}

	kept = make([]models.MergedRecord, 0, len(records))
	for _, r := range records {
		switch f.Check(r.Category) {
		case Allowed:
			kept = append(kept, r)
		case Disallowed:
			rejected++
		case Unknown:
			unresolved++
		}
	}
	return kept, rejected, unresolved
}
