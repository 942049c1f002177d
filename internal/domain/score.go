package domain

import (
	"fmt"
	"math"
)

// =============================================================================
// Score Summary
// =============================================================================

// CategoryScore is the computed result for one category. A category whose
// criteria are all rated Non Applicable is itself not applicable: absence
// of evidence is not a failure, so it contributes neither to the score
// nor to the weight sum of the overall average.
type CategoryScore struct {
	Category   Category
	Applicable bool
	Percent    int // rounded to the nearest integer percent; 0 when not applicable
}

// Display returns the score as shown on the report ("78%" or "N/A").
func (s CategoryScore) Display() string {
	if !s.Applicable {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", s.Percent)
}

// ScoreSummary holds the derived scores for one report. It is never stored
// authoritatively: it is a pure function of the report's ratings and is
// recomputed from scratch on every read.
type ScoreSummary struct {
	Categories []CategoryScore // one per category, in Categories order

	OverallApplicable bool
	Overall           float64 // weighted percentage, one decimal place
}

// Category returns the score entry for the given category.
func (s ScoreSummary) Category(cat Category) CategoryScore {
	for _, cs := range s.Categories {
		if cs.Category == cat {
			return cs
		}
	}
	return CategoryScore{Category: cat}
}

// OverallDisplay returns the overall score as shown on the report.
func (s ScoreSummary) OverallDisplay() string {
	if !s.OverallApplicable {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", s.Overall)
}

// =============================================================================
// Scoring Engine
// =============================================================================

// ComputeScores aggregates the report's ratings into per-category
// percentages and one weighted overall percentage. Deterministic and
// side-effect free: the same report always yields the same summary.
//
// Per category: mean of the numeric rating values (Non Applicable
// excluded), times 100, rounded to the nearest integer with halves going
// to the even neighbor. Overall: mean of the applicable category
// percentages weighted by Category.Weight, rounded to one decimal the
// same way.
func ComputeScores(r *Report, catalog *Catalog) ScoreSummary {
	summary := ScoreSummary{Categories: make([]CategoryScore, 0, len(Categories))}

	var weightedSum, weightSum float64
	for _, cat := range Categories {
		var total float64
		var count int
		for _, name := range catalog.Criteria(cat) {
			if v, ok := r.Rating(cat, name).Value(); ok {
				total += v
				count++
			}
		}

		cs := CategoryScore{Category: cat}
		if count > 0 {
			cs.Applicable = true
			cs.Percent = int(math.RoundToEven(total / float64(count) * 100))
			weightedSum += float64(cs.Percent) * cat.Weight()
			weightSum += cat.Weight()
		}
		summary.Categories = append(summary.Categories, cs)
	}

	if weightSum > 0 {
		summary.OverallApplicable = true
		summary.Overall = math.RoundToEven(weightedSum/weightSum*10) / 10
	}
	return summary
}
