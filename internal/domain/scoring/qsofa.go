package scoring

import "github.com/ehr/vitalscores/internal/domain/vitals"

// CalculateQSOFA scores v with the quick Sequential Organ Failure Assessment.
// Only respiratory rate, systolic blood pressure and consciousness level are
// read; other observations do not affect the result.
func CalculateQSOFA(v vitals.VitalSigns) ScoreResult {
	rr, okRR := v.RespiratoryRate.Get()
	sbp, okSBP := v.SystolicBP.Get()
	level, okLevel := v.ConsciousnessLevel.Get()
	if !okRR || !okSBP || !okLevel {
		return incomplete(QSOFA)
	}

	mentation := 1
	if level.IsAlert() {
		mentation = 0
	}

	return complete(QSOFA, Breakdown{
		{vitals.FieldRespiratoryRate, qsofaRespiratoryRate.points(rr)},
		{vitals.FieldSystolicBP, qsofaSystolicBP.points(sbp)},
		{vitals.FieldConsciousnessLevel, mentation},
	}, QSOFARiskLevel)
}

// QSOFARiskLevel maps a q-SOFA total to its tier; 2 or more is high.
func QSOFARiskLevel(score int) RiskLevel {
	if score >= 2 {
		return RiskHigh
	}
	return RiskLow
}
