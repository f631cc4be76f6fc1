package mmodel

// GradingStatus is the review state of a submission grade.
type GradingStatus int

const (
	GradingStatusNotReviewed GradingStatus = iota
	GradingStatusCorrected
	GradingStatusCorrectionNecessary
	GradingStatusImprovementPossible
)

// String returns the wire value of the status. Unknown values map to
// "not_reviewed" so malformed rows never break a projection.
func (s GradingStatus) String() string {
	switch s {
	case GradingStatusCorrected:
		return "corrected"
	case GradingStatusCorrectionNecessary:
		return "correction_necessary"
	case GradingStatusImprovementPossible:
		return "improvement_possible"
	default:
		return "not_reviewed"
	}
}

// ParseGradingStatus maps a wire value back to its GradingStatus.
func ParseGradingStatus(s string) GradingStatus {
	switch s {
	case "corrected":
		return GradingStatusCorrected
	case "correction_necessary":
		return GradingStatusCorrectionNecessary
	case "improvement_possible":
		return GradingStatusImprovementPossible
	default:
		return GradingStatusNotReviewed
	}
}
