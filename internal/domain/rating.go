package domain

// =============================================================================
// Rating Scale
// =============================================================================

// Rating is the ordinal compliance value assigned to a criterion.
type Rating string

const (
	// RatingNotApplicable carries no numeric value and is excluded from
	// score aggregation. It is the default for every criterion.
	RatingNotApplicable Rating = "Non Applicable"

	RatingNotSatisfactory       Rating = "Non Satisfaisant"
	RatingPartiallySatisfactory Rating = "Partiellement Satisfaisant"
	RatingSatisfactory          Rating = "Satisfaisant"
)

// Ratings lists the scale in ascending order, as presented to the user.
var Ratings = []Rating{
	RatingNotApplicable,
	RatingNotSatisfactory,
	RatingPartiallySatisfactory,
	RatingSatisfactory,
}

// String returns the string representation of the rating.
func (r Rating) String() string {
	return string(r)
}

// IsValid returns true if the rating is a recognized value.
func (r Rating) IsValid() bool {
	switch r {
	case RatingNotApplicable, RatingNotSatisfactory,
		RatingPartiallySatisfactory, RatingSatisfactory:
		return true
	}
	return false
}

// Value returns the numeric weight of the rating and whether it
// participates in aggregation. Non Applicable (and any unrecognized
// value) returns ok=false.
func (r Rating) Value() (v float64, ok bool) {
	switch r {
	case RatingSatisfactory:
		return 1, true
	case RatingPartiallySatisfactory:
		return 2.0 / 3.0, true
	case RatingNotSatisfactory:
		return 1.0 / 3.0, true
	default:
		return 0, false
	}
}
