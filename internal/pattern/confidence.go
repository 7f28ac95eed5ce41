package pattern

// ConfidenceLevel buckets a confidence score into a threshold category.
type ConfidenceLevel string

const (
	// ConfidenceHigh indicates high confidence (>= 0.85).
	ConfidenceHigh ConfidenceLevel = "high"
	// ConfidenceMedium indicates medium confidence (0.70 - 0.84).
	ConfidenceMedium ConfidenceLevel = "medium"
	// ConfidenceLow indicates low confidence (0.50 - 0.69).
	ConfidenceLow ConfidenceLevel = "low"
	// ConfidenceUncertain indicates uncertain confidence (< 0.50).
	ConfidenceUncertain ConfidenceLevel = "uncertain"
)

// ConfidenceThresholds defines the boundaries for confidence levels.
var ConfidenceThresholds = struct {
	High   float64
	Medium float64
	Low    float64
}{
	High:   0.85,
	Medium: 0.70,
	Low:    0.50,
}

// LevelForConfidence returns the confidence level for a given score.
func LevelForConfidence(score float64) ConfidenceLevel {
	switch {
	case score >= ConfidenceThresholds.High:
		return ConfidenceHigh
	case score >= ConfidenceThresholds.Medium:
		return ConfidenceMedium
	case score >= ConfidenceThresholds.Low:
		return ConfidenceLow
	default:
		return ConfidenceUncertain
	}
}
