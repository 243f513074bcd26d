package validation

import (
	"strings"

	"github.com/ehr/vitalscores/internal/domain/vitals"
)

// Field validates one value by name. Known vital sign names get their hard
// range; any other name is checked against cfg.Min and cfg.Max. An empty
// value is valid unless cfg.Required is set.
func Field(name string, value Input, cfg FieldConfig) Result {
	if value.IsEmpty() {
		if cfg.Required {
			return invalid(name + " is required")
		}
		return valid()
	}
	v, ok := value.Float()
	if !ok {
		return invalid(name + " must be a valid number")
	}
	if f, known := lookupField(name); known {
		return Range(f, v)
	}
	return genericRange(name, v, cfg)
}

// WithPhysiologicalContext is Field with graded rules: clinically impossible
// values are errors, unusual but possible ones are valid with a warning.
func WithPhysiologicalContext(name string, value Input, cfg FieldConfig) Result {
	if value.IsEmpty() {
		if cfg.Required {
			return invalid(name + " is required for accurate calculation")
		}
		return valid()
	}
	v, ok := value.Float()
	if !ok {
		return invalid(name + " must be a valid number")
	}
	if f, known := lookupField(name); known {
		return contextRules[f].check(v)
	}
	return genericRange(name, v, cfg)
}

var numericNames = []string{"respiratoryrate", "heartrate", "systolicbp", "temperature", "oxygensaturation"}

// InputChange validates text as it is being typed. Partial numbers such as
// "-" or "12." are valid with a prompt to finish them.
func InputChange(name, raw string) Result {
	if raw == "" {
		return valid()
	}
	if raw == "." || raw == "-" || strings.HasSuffix(raw, ".") {
		return warning("Enter a complete number")
	}

	lower := strings.ToLower(name)
	for _, n := range numericNames {
		if strings.Contains(lower, n) {
			if _, ok := parseLeadingFloat(raw); !ok {
				return invalid("Please enter a valid number")
			}
			break
		}
	}
	return Field(name, Text(raw), FieldConfig{})
}

// ConsciousnessLevel accepts an ACVPU code in either case. Empty input is
// valid.
func ConsciousnessLevel(raw string) Result {
	if raw == "" {
		return valid()
	}
	switch strings.ToUpper(raw) {
	case "A", "C", "V", "P", "U":
		return valid()
	}
	return invalid("Consciousness level must be A (Alert), C (Confusion), V (Voice), P (Pain), or U (Unresponsive)")
}

// VitalSigns applies the hard ranges to every present numeric field.
func VitalSigns(v vitals.VitalSigns) State {
	state := State{}
	for _, f := range vitals.Fields {
		if !f.IsNumeric() {
			continue
		}
		if x, ok := v.Numeric(f); ok {
			if n, present := x.Get(); present {
				state[f] = Range(f, n)
			}
		}
	}
	return state
}

// QSOFAInputs validates the present q-SOFA fields.
func QSOFAInputs(v vitals.VitalSigns) State {
	state := State{}
	if n, ok := v.RespiratoryRate.Get(); ok {
		state[vitals.FieldRespiratoryRate] = RespiratoryRate(n)
	}
	if n, ok := v.SystolicBP.Get(); ok {
		state[vitals.FieldSystolicBP] = SystolicBP(n)
	}
	if l, ok := v.ConsciousnessLevel.Get(); ok {
		if l.Valid() {
			state[vitals.FieldConsciousnessLevel] = valid()
		} else {
			state[vitals.FieldConsciousnessLevel] = invalid("Consciousness level must be one of: A, C, V, P, U")
		}
	}
	return state
}

// IsQSOFAComplete reports whether all three q-SOFA fields are present.
func IsQSOFAComplete(v vitals.VitalSigns) bool {
	return v.RespiratoryRate.IsPresent() && v.SystolicBP.IsPresent() && v.ConsciousnessLevel.IsPresent()
}

// AllVitalSigns applies the physiological context rules to every present
// field. Supplemental oxygen is always valid.
func AllVitalSigns(v vitals.VitalSigns) State {
	state := State{}
	for _, f := range vitals.Fields {
		switch {
		case f == vitals.FieldSupplementalOxygen:
			state[f] = valid()
		case f == vitals.FieldConsciousnessLevel:
			if l, ok := v.ConsciousnessLevel.Get(); ok {
				code := l.Code()
				if !l.Valid() {
					code = l.String()
				}
				state[f] = ConsciousnessLevel(code)
			}
		default:
			x, _ := v.Numeric(f)
			if n, ok := x.Get(); ok {
				state[f] = WithPhysiologicalContext(string(f), Number(n), FieldConfig{})
			}
		}
	}
	return state
}
