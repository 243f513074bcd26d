package calculation

import (
	"github.com/ehr/vitalscores/internal/domain/scoring"
	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/pkg/optional"
)

// Summary is a score result without its breakdown.
type Summary struct {
	Score      optional.Optional[int]               `json:"score"`
	RiskLevel  optional.Optional[scoring.RiskLevel] `json:"riskLevel"`
	IsComplete bool                                 `json:"isComplete"`
}

func summarize(r scoring.ScoreResult) Summary {
	return Summary{Score: r.Score, RiskLevel: r.RiskLevel, IsComplete: r.IsComplete}
}

// CalculationResults pairs the NEWS2 and q-SOFA summaries computed from one
// snapshot.
type CalculationResults struct {
	NEWS2 Summary `json:"news2"`
	QSOFA Summary `json:"qsofa"`
}

// DetailedResults pairs the full NEWS2 and q-SOFA results, breakdowns
// included, computed from one snapshot.
type DetailedResults struct {
	NEWS2 scoring.ScoreResult `json:"news2"`
	QSOFA scoring.ScoreResult `json:"qsofa"`
}

// Summary strips the breakdowns.
func (d DetailedResults) Summary() CalculationResults {
	return CalculationResults{NEWS2: summarize(d.NEWS2), QSOFA: summarize(d.QSOFA)}
}

// SystemCompleteness describes how much of one system's required data is
// present.
type SystemCompleteness struct {
	IsComplete           bool           `json:"isComplete"`
	MissingFields        []vitals.Field `json:"missingFields"`
	CompletionPercentage int            `json:"completionPercentage"`
}

// Completeness reports data completeness for both systems.
type Completeness struct {
	NEWS2 SystemCompleteness `json:"news2"`
	QSOFA SystemCompleteness `json:"qsofa"`
}

// FieldRequirements lists the parameters each system scores and the ones they
// share.
type FieldRequirements struct {
	NEWS2  []vitals.Field `json:"news2"`
	QSOFA  []vitals.Field `json:"qsofa"`
	Shared []vitals.Field `json:"shared"`
}

// MinimumRequirements lists the observations needed before each system, or
// either of them, can produce a score.
type MinimumRequirements struct {
	ForNEWS2  []vitals.Field `json:"forNews2"`
	ForQSOFA  []vitals.Field `json:"forQsofa"`
	ForEither []vitals.Field `json:"forEither"`
}
