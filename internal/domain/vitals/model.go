// Package vitals holds the bedside observation snapshot shared by the NEWS2
// and q-SOFA scorers.
package vitals

import (
	"github.com/ehr/vitalscores/pkg/optional"
)

// Field names one observable input using its canonical camelCase name.
type Field string

const (
	FieldRespiratoryRate    Field = "respiratoryRate"
	FieldOxygenSaturation   Field = "oxygenSaturation"
	FieldSupplementalOxygen Field = "supplementalOxygen"
	FieldTemperature        Field = "temperature"
	FieldSystolicBP         Field = "systolicBP"
	FieldHeartRate          Field = "heartRate"
	FieldConsciousnessLevel Field = "consciousnessLevel"
)

// Fields lists every input in canonical order.
var Fields = []Field{
	FieldRespiratoryRate,
	FieldOxygenSaturation,
	FieldSupplementalOxygen,
	FieldTemperature,
	FieldSystolicBP,
	FieldHeartRate,
	FieldConsciousnessLevel,
}

// ParseField returns the Field with the given canonical name.
func ParseField(name string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// IsNumeric reports whether f carries a real-valued measurement.
func (f Field) IsNumeric() bool {
	switch f {
	case FieldRespiratoryRate, FieldOxygenSaturation, FieldTemperature, FieldSystolicBP, FieldHeartRate:
		return true
	}
	return false
}

// Unit returns the measurement unit shown next to f.
func (f Field) Unit() string {
	switch f {
	case FieldRespiratoryRate:
		return "breaths/min"
	case FieldOxygenSaturation:
		return "%"
	case FieldTemperature:
		return "°C"
	case FieldSystolicBP:
		return "mmHg"
	case FieldHeartRate:
		return "bpm"
	}
	return ""
}

// VitalSigns is one patient's current observations. Absent measurements mean
// "not yet observed" and are never equivalent to zero.
type VitalSigns struct {
	RespiratoryRate    optional.Optional[float64]            `json:"respiratoryRate"`
	OxygenSaturation   optional.Optional[float64]            `json:"oxygenSaturation"`
	SupplementalOxygen bool                                  `json:"supplementalOxygen"`
	Temperature        optional.Optional[float64]            `json:"temperature"`
	SystolicBP         optional.Optional[float64]            `json:"systolicBP"`
	HeartRate          optional.Optional[float64]            `json:"heartRate"`
	ConsciousnessLevel optional.Optional[ConsciousnessLevel] `json:"consciousnessLevel"`
}

// Empty returns the snapshot with no observations and room air.
func Empty() VitalSigns {
	return VitalSigns{SupplementalOxygen: false}
}

// Clone returns an independent copy of v.
func (v VitalSigns) Clone() VitalSigns {
	return v
}

// Numeric returns the measurement held for a numeric field. ok is false when
// f is not numeric.
func (v VitalSigns) Numeric(f Field) (value optional.Optional[float64], ok bool) {
	switch f {
	case FieldRespiratoryRate:
		return v.RespiratoryRate, true
	case FieldOxygenSaturation:
		return v.OxygenSaturation, true
	case FieldTemperature:
		return v.Temperature, true
	case FieldSystolicBP:
		return v.SystolicBP, true
	case FieldHeartRate:
		return v.HeartRate, true
	}
	return optional.None[float64](), false
}

// Has reports whether f has been observed. SupplementalOxygen is always
// present.
func (v VitalSigns) Has(f Field) bool {
	switch f {
	case FieldSupplementalOxygen:
		return true
	case FieldConsciousnessLevel:
		return v.ConsciousnessLevel.IsPresent()
	}
	n, ok := v.Numeric(f)
	return ok && n.IsPresent()
}

// Missing returns the fields from required that have not been observed, in
// the order given.
func (v VitalSigns) Missing(required []Field) []Field {
	missing := []Field{}
	for _, f := range required {
		if !v.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}
