package optimizer

import (
	"context"
	"fmt"
)

// SiteReport records the full measurement of one embedded query site.
type SiteReport struct {
	FilePath        string   `json:"file_path"`
	Symbol          string   `json:"symbol"`
	LineStart       int      `json:"line_start"`
	LineEnd         int      `json:"line_end"`
	OriginalQuery   string   `json:"original_query"`
	ChosenQuery     string   `json:"chosen_query"`
	OriginalCost    float64  `json:"original_cost"`
	ChosenCost      float64  `json:"chosen_cost"`
	OriginalTimeMS  float64  `json:"original_time_ms"`
	ChosenTimeMS    float64  `json:"chosen_time_ms"`
	ImprovementRate float64  `json:"improvement_rate"`
	Improved        bool     `json:"improved"`
	Candidates      []string `json:"candidates"`
}

// Evaluate measures the original query and every candidate, then picks the
// cheapest plan. Candidates that fail to plan are discarded; a failure to
// measure the original discards the whole site (the returned error is
// site-level, never a pipeline failure). Selection: minimum total cost, then
// minimum actual runtime, then stable candidate order. A candidate no
// cheaper than the original keeps the original.
func Evaluate(ctx context.Context, ex Explainer, original string, candidates []string) (*SiteReport, error) {
	baseline, err := ex.Explain(ctx, original)
	if err != nil {
		return nil, fmt.Errorf("baseline measurement: %w", err)
	}

	report := &SiteReport{
		OriginalQuery:  original,
		ChosenQuery:    original,
		OriginalCost:   baseline.TotalCost,
		ChosenCost:     baseline.TotalCost,
		OriginalTimeMS: baseline.TimeMS,
		ChosenTimeMS:   baseline.TimeMS,
		Candidates:     candidates,
	}

	best := baseline
	bestQuery := ""
	for _, candidate := range candidates {
		plan, err := ex.Explain(ctx, candidate)
		if err != nil {
			continue // unplannable candidate: discarded
		}
		if bestQuery == "" && plan.TotalCost < baseline.TotalCost {
			best, bestQuery = plan, candidate
			continue
		}
		if bestQuery != "" && better(plan, best) {
			best, bestQuery = plan, candidate
		}
	}

	if bestQuery == "" {
		return report, nil // no improvement
	}

	report.ChosenQuery = bestQuery
	report.ChosenCost = best.TotalCost
	report.ChosenTimeMS = best.TimeMS
	report.Improved = true
	report.ImprovementRate = ImprovementRate(baseline.TotalCost, best.TotalCost)
	return report, nil
}

// better reports whether a beats b: lower cost, then lower runtime. Equal on
// both keeps b (stable order).
func better(a, b *Plan) bool {
	if a.TotalCost != b.TotalCost {
		return a.TotalCost < b.TotalCost
	}
	return a.TimeMS < b.TimeMS
}

// ImprovementRate is the relative cost reduction in percent.
func ImprovementRate(original, chosen float64) float64 {
	denom := original
	if denom < 1 {
		denom = 1
	}
	return (original - chosen) / denom * 100
}
