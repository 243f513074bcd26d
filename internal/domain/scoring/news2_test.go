package scoring

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/pkg/optional"
)

// normal returns a complete snapshot where every NEWS2 parameter scores 0.
func normal() vitals.VitalSigns {
	return vitals.NewUpdate().
		RespiratoryRate(16).
		OxygenSaturation(98).
		SupplementalOxygen(false).
		Temperature(37.0).
		SystolicBP(120).
		HeartRate(70).
		ConsciousnessLevel(vitals.Alert).
		Apply(vitals.Empty())
}

func with(v vitals.VitalSigns, u *vitals.Update) vitals.VitalSigns {
	return u.Apply(v)
}

func points(t *testing.T, r ScoreResult, f vitals.Field) int {
	t.Helper()
	require.True(t, r.IsComplete)
	p, ok := r.Breakdown.Points(f)
	require.True(t, ok, "breakdown has no entry for %s", f)
	return p
}

func TestCalculateNEWS2_AllNormal(t *testing.T) {
	r := CalculateNEWS2(normal())

	assert.True(t, r.IsComplete)
	assert.Equal(t, optional.Some(0), r.Score)
	assert.Equal(t, optional.Some(RiskLow), r.RiskLevel)
	assert.Len(t, r.Breakdown, 7)
	assert.Empty(t, r.ExtremeParameters())
}

func TestCalculateNEWS2_Critical(t *testing.T) {
	v := vitals.NewUpdate().
		RespiratoryRate(8).
		OxygenSaturation(90).
		SupplementalOxygen(true).
		Temperature(35.0).
		SystolicBP(85).
		HeartRate(130).
		ConsciousnessLevel(vitals.Voice).
		Apply(vitals.Empty())

	r := CalculateNEWS2(v)

	assert.Equal(t, optional.Some(19), r.Score)
	assert.Equal(t, optional.Some(RiskHigh), r.RiskLevel)
	assert.Equal(t, 2, points(t, r, vitals.FieldSupplementalOxygen))
	assert.Equal(t, 2, points(t, r, vitals.FieldHeartRate))
	assert.ElementsMatch(t, []vitals.Field{
		vitals.FieldRespiratoryRate,
		vitals.FieldOxygenSaturation,
		vitals.FieldTemperature,
		vitals.FieldSystolicBP,
		vitals.FieldConsciousnessLevel,
	}, r.ExtremeParameters())
}

// missingSubsets returns every non-empty subset of fields, each as an
// update that clears it.
func missingSubsets(fields []vitals.Field) map[string]*vitals.Update {
	subsets := make(map[string]*vitals.Update)
	for mask := 1; mask < 1<<len(fields); mask++ {
		u := vitals.NewUpdate()
		var names []string
		for i, f := range fields {
			if mask&(1<<i) != 0 {
				u.Clear(f)
				names = append(names, string(f))
			}
		}
		subsets[strings.Join(names, "+")] = u
	}
	return subsets
}

func TestCalculateNEWS2_MissingAnyRequiredField(t *testing.T) {
	required := RequiredFields(NEWS2)
	subsets := missingSubsets(required)
	require.Len(t, subsets, 1<<len(required)-1)

	for name, u := range subsets {
		t.Run(name, func(t *testing.T) {
			r := CalculateNEWS2(with(normal(), u))

			assert.False(t, r.IsComplete)
			assert.False(t, r.Score.IsPresent())
			assert.False(t, r.RiskLevel.IsPresent())
			assert.Nil(t, r.Breakdown)
		})
	}
}

func TestCalculateNEWS2_EmptySnapshot(t *testing.T) {
	r := CalculateNEWS2(vitals.Empty())
	assert.Equal(t, ScoreResult{System: NEWS2}, r)
}

func TestCalculateNEWS2_ZeroIsAnObservation(t *testing.T) {
	v := with(normal(), vitals.NewUpdate().RespiratoryRate(0))
	r := CalculateNEWS2(v)
	require.True(t, r.IsComplete)
	assert.Equal(t, 3, points(t, r, vitals.FieldRespiratoryRate))
}

func TestCalculateNEWS2_RespiratoryRateBoundaries(t *testing.T) {
	cases := map[float64]int{8: 3, 9: 1, 11: 1, 12: 0, 20: 0, 21: 2, 24: 2, 25: 3, 40: 3}
	for value, want := range cases {
		r := CalculateNEWS2(with(normal(), vitals.NewUpdate().RespiratoryRate(value)))
		assert.Equal(t, want, points(t, r, vitals.FieldRespiratoryRate), "respiratoryRate=%v", value)
	}
}

func TestCalculateNEWS2_OxygenSaturationBoundaries(t *testing.T) {
	cases := map[float64]int{85: 3, 91: 3, 92: 2, 93: 2, 94: 1, 95: 1, 96: 0, 100: 0}
	for value, want := range cases {
		r := CalculateNEWS2(with(normal(), vitals.NewUpdate().OxygenSaturation(value)))
		assert.Equal(t, want, points(t, r, vitals.FieldOxygenSaturation), "oxygenSaturation=%v", value)
	}
}

func TestCalculateNEWS2_TemperatureBoundaries(t *testing.T) {
	cases := map[float64]int{34.0: 3, 35.0: 3, 35.1: 1, 36.0: 1, 36.1: 0, 38.0: 0, 38.1: 1, 39.0: 1, 39.1: 2, 41: 2}
	for value, want := range cases {
		r := CalculateNEWS2(with(normal(), vitals.NewUpdate().Temperature(value)))
		assert.Equal(t, want, points(t, r, vitals.FieldTemperature), "temperature=%v", value)
	}
}

func TestCalculateNEWS2_SystolicBPBoundaries(t *testing.T) {
	cases := map[float64]int{90: 3, 91: 2, 100: 2, 101: 1, 110: 1, 111: 0, 219: 0, 220: 3}
	for value, want := range cases {
		r := CalculateNEWS2(with(normal(), vitals.NewUpdate().SystolicBP(value)))
		assert.Equal(t, want, points(t, r, vitals.FieldSystolicBP), "systolicBP=%v", value)
	}
}

func TestCalculateNEWS2_HeartRateBoundaries(t *testing.T) {
	cases := map[float64]int{40: 3, 41: 1, 50: 1, 51: 0, 90: 0, 91: 1, 110: 1, 111: 2, 130: 2, 131: 3}
	for value, want := range cases {
		r := CalculateNEWS2(with(normal(), vitals.NewUpdate().HeartRate(value)))
		assert.Equal(t, want, points(t, r, vitals.FieldHeartRate), "heartRate=%v", value)
	}
}

func TestCalculateNEWS2_Consciousness(t *testing.T) {
	for _, level := range vitals.ConsciousnessLevels {
		r := CalculateNEWS2(with(normal(), vitals.NewUpdate().ConsciousnessLevel(level)))
		want := 3
		if level == vitals.Alert {
			want = 0
		}
		assert.Equal(t, want, points(t, r, vitals.FieldConsciousnessLevel), "level=%s", level)
	}
}

func TestCalculateNEWS2_ValuesBetweenBandsScoreZero(t *testing.T) {
	tests := []struct {
		name  string
		field vitals.Field
		u     *vitals.Update
	}{
		{"respiratory rate 8.5", vitals.FieldRespiratoryRate, vitals.NewUpdate().RespiratoryRate(8.5)},
		{"temperature 35.05", vitals.FieldTemperature, vitals.NewUpdate().Temperature(35.05)},
		{"heart rate 40.5", vitals.FieldHeartRate, vitals.NewUpdate().HeartRate(40.5)},
		{"systolic NaN", vitals.FieldSystolicBP, vitals.NewUpdate().SystolicBP(math.NaN())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CalculateNEWS2(with(normal(), tt.u))
			assert.Equal(t, 0, points(t, r, tt.field))
		})
	}
}

func TestCalculateNEWS2_NegativeValuesFallInLowestBand(t *testing.T) {
	r := CalculateNEWS2(with(normal(), vitals.NewUpdate().RespiratoryRate(-4)))
	assert.Equal(t, 3, points(t, r, vitals.FieldRespiratoryRate))
}

func TestNEWS2RiskLevel(t *testing.T) {
	cases := map[int]RiskLevel{0: RiskLow, 4: RiskLow, 5: RiskMedium, 6: RiskMedium, 7: RiskHigh, 20: RiskHigh}
	for score, want := range cases {
		assert.Equal(t, want, NEWS2RiskLevel(score), "score=%d", score)
	}
}

func TestNEWS2ClinicalResponse(t *testing.T) {
	assert.Equal(t, "ward-based response", NEWS2ClinicalResponse(RiskLow))
	assert.Equal(t, "urgent ward-based response", NEWS2ClinicalResponse(RiskMedium))
	assert.Equal(t, "emergency response", NEWS2ClinicalResponse(RiskHigh))
}

func TestCalculateNEWS2_ScoreEqualsBreakdownSum(t *testing.T) {
	snapshots := []vitals.VitalSigns{
		normal(),
		with(normal(), vitals.NewUpdate().RespiratoryRate(22).HeartRate(112).SupplementalOxygen(true)),
		with(normal(), vitals.NewUpdate().Temperature(39.5).SystolicBP(95).ConsciousnessLevel(vitals.Confusion)),
		with(normal(), vitals.NewUpdate().OxygenSaturation(93).HeartRate(45)),
	}
	for _, v := range snapshots {
		r := CalculateNEWS2(v)
		require.True(t, r.IsComplete)
		score, _ := r.Score.Get()
		assert.Equal(t, r.Breakdown.Total(), score)
		assert.LessOrEqual(t, score, NEWS2.MaxScore())
	}
}

func TestCalculateNEWS2_Idempotent(t *testing.T) {
	v := with(normal(), vitals.NewUpdate().RespiratoryRate(23))
	assert.Equal(t, CalculateNEWS2(v), CalculateNEWS2(v))
}

func TestScoreResult_JSON(t *testing.T) {
	out, err := json.Marshal(CalculateNEWS2(normal()))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"system": "news2",
		"score": 0,
		"riskLevel": "low",
		"isComplete": true,
		"breakdown": {
			"respiratoryRate": 0,
			"oxygenSaturation": 0,
			"supplementalOxygen": 0,
			"temperature": 0,
			"systolicBP": 0,
			"heartRate": 0,
			"consciousnessLevel": 0
		}
	}`, string(out))

	out, err = json.Marshal(CalculateNEWS2(vitals.Empty()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"system":"news2","score":null,"riskLevel":null,"isComplete":false,"breakdown":null}`, string(out))
}
