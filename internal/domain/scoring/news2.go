package scoring

import "github.com/ehr/vitalscores/internal/domain/vitals"

const supplementalOxygenPoints = 2

// CalculateNEWS2 scores v with the National Early Warning Score 2. Any missing
// required observation yields an incomplete result with no partial score.
func CalculateNEWS2(v vitals.VitalSigns) ScoreResult {
	rr, okRR := v.RespiratoryRate.Get()
	spo2, okSpO2 := v.OxygenSaturation.Get()
	temp, okTemp := v.Temperature.Get()
	sbp, okSBP := v.SystolicBP.Get()
	hr, okHR := v.HeartRate.Get()
	level, okLevel := v.ConsciousnessLevel.Get()
	if !okRR || !okSpO2 || !okTemp || !okSBP || !okHR || !okLevel {
		return incomplete(NEWS2)
	}

	oxygen := 0
	if v.SupplementalOxygen {
		oxygen = supplementalOxygenPoints
	}
	consciousness := 3
	if level.IsAlert() {
		consciousness = 0
	}

	return complete(NEWS2, Breakdown{
		{vitals.FieldRespiratoryRate, news2RespiratoryRate.points(rr)},
		{vitals.FieldOxygenSaturation, news2OxygenSaturation.points(spo2)},
		{vitals.FieldSupplementalOxygen, oxygen},
		{vitals.FieldTemperature, news2Temperature.points(temp)},
		{vitals.FieldSystolicBP, news2SystolicBP.points(sbp)},
		{vitals.FieldHeartRate, news2HeartRate.points(hr)},
		{vitals.FieldConsciousnessLevel, consciousness},
	}, NEWS2RiskLevel)
}

// NEWS2RiskLevel maps a NEWS2 total to its tier: 7 and above is high, 5-6 is
// medium, anything lower is low.
func NEWS2RiskLevel(score int) RiskLevel {
	switch {
	case score >= 7:
		return RiskHigh
	case score >= 5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// NEWS2ClinicalResponse returns the escalation the NEWS2 guidance attaches to
// a tier.
func NEWS2ClinicalResponse(level RiskLevel) string {
	switch level {
	case RiskHigh:
		return "emergency response"
	case RiskMedium:
		return "urgent ward-based response"
	case RiskLow:
		return "ward-based response"
	}
	return ""
}
