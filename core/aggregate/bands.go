package aggregate

// Bands holds the utilization display cutoffs. Values at or above Good
// render as good, at or above Fair as fair, anything below as poor.
type Bands struct {
	Good float64 `json:"good"`
	Fair float64 `json:"fair"`
}

// DefaultBands matches the dashboard's historical 80/60 cutoffs.
var DefaultBands = Bands{Good: 80, Fair: 60}

// Rating names for Classify.
const (
	RatingGood = "good"
	RatingFair = "fair"
	RatingPoor = "poor"
)

// Classify maps a utilization percentage onto a display band.
func (b Bands) Classify(pct float64) string {
	switch {
	case pct >= b.Good:
		return RatingGood
	case pct >= b.Fair:
		return RatingFair
	default:
		return RatingPoor
	}
}

// SetDefaults applies the historical cutoffs to unset fields.
func (b *Bands) SetDefaults() {
	if b.Good == 0 {
		b.Good = DefaultBands.Good
	}
	if b.Fair == 0 {
		b.Fair = DefaultBands.Fair
	}
}
