package validation

import (
	"math"

	"github.com/ehr/vitalscores/internal/domain/vitals"
)

// hardRange is the envelope of values a device or clinician could plausibly
// record. Anything outside it is rejected.
type hardRange struct {
	lo, hi  float64
	message string
}

var hardRanges = map[vitals.Field]hardRange{
	vitals.FieldRespiratoryRate:  {0, 60, "Respiratory rate must be between 0 and 60 breaths/min"},
	vitals.FieldHeartRate:        {0, 300, "Heart rate must be between 0 and 300 bpm"},
	vitals.FieldSystolicBP:       {50, 300, "Systolic blood pressure must be between 50 and 300 mmHg"},
	vitals.FieldTemperature:      {25, 45, "Temperature must be between 25 and 45°C"},
	vitals.FieldOxygenSaturation: {70, 100, "Oxygen saturation must be between 70 and 100%"},
}

// Range checks v against the hard range for f. Fields without a range, and
// NaN, are valid.
func Range(f vitals.Field, v float64) Result {
	r, ok := hardRanges[f]
	if !ok || (v >= r.lo && v <= r.hi) || math.IsNaN(v) {
		return valid()
	}
	return invalid(r.message)
}

func RespiratoryRate(v float64) Result  { return Range(vitals.FieldRespiratoryRate, v) }
func HeartRate(v float64) Result        { return Range(vitals.FieldHeartRate, v) }
func SystolicBP(v float64) Result       { return Range(vitals.FieldSystolicBP, v) }
func Temperature(v float64) Result      { return Range(vitals.FieldTemperature, v) }
func OxygenSaturation(v float64) Result { return Range(vitals.FieldOxygenSaturation, v) }

// contextRule separates impossible values, which are errors, from unusual
// ones, which only warn. Checks run in order: too low, too high, unusually
// low, unusually high.
type contextRule struct {
	errBelow    float64
	errBelowMsg string
	errAbove    float64
	errAboveMsg string

	warnBelow    float64
	warnBelowMsg string
	// zero is not flagged as unusually low
	warnBelowPositive bool
	warnAbove         float64
	warnAboveMsg      string
}

var contextRules = map[vitals.Field]contextRule{
	vitals.FieldRespiratoryRate: {
		errBelow: 0, errBelowMsg: "Respiratory rate cannot be negative",
		errAbove: 60, errAboveMsg: "Respiratory rate above 60 breaths/min is extremely high - please verify",
		warnBelow: 8, warnBelowMsg: "Very low respiratory rate - please verify", warnBelowPositive: true,
		warnAbove: 30, warnAboveMsg: "High respiratory rate - please verify",
	},
	vitals.FieldHeartRate: {
		errBelow: 0, errBelowMsg: "Heart rate cannot be negative",
		errAbove: 300, errAboveMsg: "Heart rate above 300 bpm is not physiologically possible",
		warnBelow: 30, warnBelowMsg: "Very low heart rate - please verify", warnBelowPositive: true,
		warnAbove: 150, warnAboveMsg: "High heart rate - please verify",
	},
	vitals.FieldSystolicBP: {
		errBelow: 50, errBelowMsg: "Systolic blood pressure below 50 mmHg is critically low",
		errAbove: 300, errAboveMsg: "Systolic blood pressure above 300 mmHg is not physiologically possible",
		warnBelow: 90, warnBelowMsg: "Low blood pressure - please verify",
		warnAbove: 180, warnAboveMsg: "High blood pressure - please verify",
	},
	vitals.FieldTemperature: {
		errBelow: 25, errBelowMsg: "Temperature below 25°C is not compatible with life",
		errAbove: 45, errAboveMsg: "Temperature above 45°C is not compatible with life",
		warnBelow: 35, warnBelowMsg: "Low body temperature (hypothermia) - please verify",
		warnAbove: 40, warnAboveMsg: "High fever - please verify",
	},
	vitals.FieldOxygenSaturation: {
		errBelow: 70, errBelowMsg: "Oxygen saturation below 70% is critically low",
		errAbove: 100, errAboveMsg: "Oxygen saturation cannot exceed 100%",
		warnBelow: 90, warnBelowMsg: "Low oxygen saturation - please verify",
		warnAbove: math.Inf(1),
	},
}

func (r contextRule) check(v float64) Result {
	switch {
	case v < r.errBelow:
		return invalid(r.errBelowMsg)
	case v > r.errAbove:
		return invalid(r.errAboveMsg)
	case v < r.warnBelow && (!r.warnBelowPositive || v > 0):
		return warning(r.warnBelowMsg)
	case v > r.warnAbove:
		return warning(r.warnAboveMsg)
	default:
		return valid()
	}
}

// genericRange applies cfg.Min and cfg.Max to fields without built-in rules.
func genericRange(name string, v float64, cfg FieldConfig) Result {
	if lo, ok := cfg.Min.Get(); ok && v < lo {
		return invalid(name + " must be at least " + formatNumber(lo))
	}
	if hi, ok := cfg.Max.Get(); ok && v > hi {
		return invalid(name + " must be no more than " + formatNumber(hi))
	}
	return valid()
}
