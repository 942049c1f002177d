package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeScores_CategoryMean(t *testing.T) {
	catalog := DefaultCatalog()
	r := NewReport(catalog)

	// Satisfaisant, Satisfaisant, Non Satisfaisant, Non Applicable
	// => round(mean(1, 1, 1/3) * 100) = 78
	crits := catalog.Criteria(CategoryAdministratif)
	require.GreaterOrEqual(t, len(crits), 4)
	r.SetRating(CategoryAdministratif, crits[0], RatingSatisfactory)
	r.SetRating(CategoryAdministratif, crits[1], RatingSatisfactory)
	r.SetRating(CategoryAdministratif, crits[2], RatingNotSatisfactory)
	r.SetRating(CategoryAdministratif, crits[3], RatingNotApplicable)

	summary := ComputeScores(r, catalog)
	admin := summary.Category(CategoryAdministratif)
	assert.True(t, admin.Applicable)
	assert.Equal(t, 78, admin.Percent)
	assert.Equal(t, "78%", admin.Display())
}

func TestComputeScores_HalfPercentRoundsToEven(t *testing.T) {
	catalog := DefaultCatalog()
	r := NewReport(catalog)

	// Values 1/3, 1/3, 1/3, 1/3, 2/3, 1, 1, 1 => mean 0.625, an exact half percent.
	// Ties go to the even neighbor: 62, not 63.
	sec := catalog.Criteria(CategorySecurite)
	require.GreaterOrEqual(t, len(sec), 8)
	for i := 0; i < 4; i++ {
		r.SetRating(CategorySecurite, sec[i], RatingNotSatisfactory)
	}
	r.SetRating(CategorySecurite, sec[4], RatingPartiallySatisfactory)
	for i := 5; i < 8; i++ {
		r.SetRating(CategorySecurite, sec[i], RatingSatisfactory)
	}

	summary := ComputeScores(r, catalog)
	assert.Equal(t, 62, summary.Category(CategorySecurite).Percent)
}

func TestComputeScores_AllNotApplicableCategoryIsExcluded(t *testing.T) {
	catalog := DefaultCatalog()
	r := NewReport(catalog)

	// Only Sécurité gets ratings; the other two stay all Non Applicable.
	for _, name := range catalog.Criteria(CategorySecurite) {
		r.SetRating(CategorySecurite, name, RatingSatisfactory)
	}

	summary := ComputeScores(r, catalog)

	assert.False(t, summary.Category(CategoryAdministratif).Applicable)
	assert.Equal(t, "N/A", summary.Category(CategoryAdministratif).Display())
	assert.False(t, summary.Category(CategoryEnvironnement).Applicable)

	// The NA categories must not count as zero in the weighted average:
	// the overall equals the Sécurité score exactly.
	assert.True(t, summary.OverallApplicable)
	assert.InDelta(t, 100.0, summary.Overall, 0.001)
}

func TestComputeScores_WeightedOverall(t *testing.T) {
	catalog := DefaultCatalog()
	r := NewReport(catalog)

	// Administratif at 80%: values 1, 1, 2/3, 2/3, 2/3 -> mean 0.8.
	admin := catalog.Criteria(CategoryAdministratif)
	r.SetRating(CategoryAdministratif, admin[0], RatingSatisfactory)
	r.SetRating(CategoryAdministratif, admin[1], RatingSatisfactory)
	r.SetRating(CategoryAdministratif, admin[2], RatingPartiallySatisfactory)
	r.SetRating(CategoryAdministratif, admin[3], RatingPartiallySatisfactory)
	r.SetRating(CategoryAdministratif, admin[4], RatingPartiallySatisfactory)

	// Sécurité at 60%: five rated criteria with values 1, 1, 1/3, 1/3, 1/3
	// -> mean 0.6; the remaining criteria stay Non Applicable.
	sec := catalog.Criteria(CategorySecurite)
	r.SetRating(CategorySecurite, sec[0], RatingSatisfactory)
	r.SetRating(CategorySecurite, sec[1], RatingSatisfactory)
	r.SetRating(CategorySecurite, sec[2], RatingNotSatisfactory)
	r.SetRating(CategorySecurite, sec[3], RatingNotSatisfactory)
	r.SetRating(CategorySecurite, sec[4], RatingNotSatisfactory)

	// Environnement at 100%.
	for _, name := range catalog.Criteria(CategoryEnvironnement) {
		r.SetRating(CategoryEnvironnement, name, RatingSatisfactory)
	}

	summary := ComputeScores(r, catalog)
	assert.Equal(t, 80, summary.Category(CategoryAdministratif).Percent)
	assert.Equal(t, 60, summary.Category(CategorySecurite).Percent)
	assert.Equal(t, 100, summary.Category(CategoryEnvironnement).Percent)

	// round((80*0.5 + 60*3 + 100*1) / (0.5+3+1), 1) = round(320/4.5, 1) = 71.1
	assert.True(t, summary.OverallApplicable)
	assert.InDelta(t, 71.1, summary.Overall, 0.001)
	assert.Equal(t, "71.1%", summary.OverallDisplay())
}

func TestComputeScores_EmptyReportIsNotApplicable(t *testing.T) {
	catalog := DefaultCatalog()
	r := NewReport(catalog)

	summary := ComputeScores(r, catalog)
	for _, cs := range summary.Categories {
		assert.False(t, cs.Applicable, "category %s", cs.Category)
	}
	assert.False(t, summary.OverallApplicable)
	assert.Equal(t, "N/A", summary.OverallDisplay())
}

func TestComputeScores_Deterministic(t *testing.T) {
	catalog := DefaultCatalog()
	r := NewReport(catalog)
	for _, cat := range Categories {
		for i, name := range catalog.Criteria(cat) {
			r.SetRating(cat, name, Ratings[i%len(Ratings)])
		}
	}

	first := ComputeScores(r, catalog)
	second := ComputeScores(r, catalog)
	assert.Equal(t, first, second)
}

func TestRating_Value(t *testing.T) {
	tests := []struct {
		rating Rating
		value  float64
		ok     bool
	}{
		{RatingSatisfactory, 1, true},
		{RatingPartiallySatisfactory, 2.0 / 3.0, true},
		{RatingNotSatisfactory, 1.0 / 3.0, true},
		{RatingNotApplicable, 0, false},
		{Rating("Inconnu"), 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.rating), func(t *testing.T) {
			v, ok := tt.rating.Value()
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.value, v, 0.0001)
			}
		})
	}
}
