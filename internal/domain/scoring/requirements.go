package scoring

import (
	"math"

	"github.com/ehr/vitalscores/internal/domain/vitals"
)

var news2Required = []vitals.Field{
	vitals.FieldRespiratoryRate,
	vitals.FieldOxygenSaturation,
	vitals.FieldTemperature,
	vitals.FieldSystolicBP,
	vitals.FieldHeartRate,
	vitals.FieldConsciousnessLevel,
}

var qsofaRequired = []vitals.Field{
	vitals.FieldRespiratoryRate,
	vitals.FieldSystolicBP,
	vitals.FieldConsciousnessLevel,
}

// RequiredFields returns the observations that gate completeness for s.
// SupplementalOxygen is never listed because it is always present.
func RequiredFields(s System) []vitals.Field {
	var src []vitals.Field
	switch s {
	case NEWS2:
		src = news2Required
	case QSOFA:
		src = qsofaRequired
	}
	return append([]vitals.Field(nil), src...)
}

// ScoredFields returns every parameter that contributes points under s.
func ScoredFields(s System) []vitals.Field {
	if s == NEWS2 {
		return append([]vitals.Field(nil), vitals.Fields...)
	}
	return RequiredFields(s)
}

// SharedFields returns the parameters scored by both systems, in NEWS2 order.
func SharedFields() []vitals.Field {
	inQSOFA := make(map[vitals.Field]bool, len(qsofaRequired))
	for _, f := range qsofaRequired {
		inQSOFA[f] = true
	}
	var shared []vitals.Field
	for _, f := range ScoredFields(NEWS2) {
		if inQSOFA[f] {
			shared = append(shared, f)
		}
	}
	return shared
}

// Missing returns the required fields of s that v has not observed.
func Missing(s System, v vitals.VitalSigns) []vitals.Field {
	return v.Missing(RequiredFields(s))
}

// CompletionPercentage returns present/required as a whole percentage,
// rounded to the nearest integer.
func CompletionPercentage(present, required int) int {
	if required <= 0 {
		return 100
	}
	return int(math.Round(float64(present) / float64(required) * 100))
}
