package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ehr/vitalscores/internal/domain/validation"
	"github.com/ehr/vitalscores/internal/domain/vitals"
)

var fieldAliases = map[string]vitals.Field{
	"rr":    vitals.FieldRespiratoryRate,
	"resp":  vitals.FieldRespiratoryRate,
	"spo2":  vitals.FieldOxygenSaturation,
	"sats":  vitals.FieldOxygenSaturation,
	"o2":    vitals.FieldSupplementalOxygen,
	"temp":  vitals.FieldTemperature,
	"sbp":   vitals.FieldSystolicBP,
	"bp":    vitals.FieldSystolicBP,
	"hr":    vitals.FieldHeartRate,
	"pulse": vitals.FieldHeartRate,
	"avpu":  vitals.FieldConsciousnessLevel,
	"acvpu": vitals.FieldConsciousnessLevel,
}

// ResolveField accepts a canonical field name, in any case, or one of the
// short bedside aliases such as "rr" or "spo2".
func ResolveField(name string) (vitals.Field, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, f := range vitals.Fields {
		if strings.ToLower(string(f)) == lower {
			return f, nil
		}
	}
	if f, ok := fieldAliases[lower]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", vitals.ErrUnknownField, name)
}

// Assignment is one "field=value" term. An empty Raw clears the field.
type Assignment struct {
	Field vitals.Field
	Raw   string
}

var errMissingEquals = errors.New("expected field=value")

// ParseAssignments splits a line of whitespace or comma separated
// "field=value" terms.
func ParseAssignments(line string) ([]Assignment, error) {
	terms := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]Assignment, 0, len(terms))
	for _, term := range terms {
		name, raw, ok := strings.Cut(term, "=")
		if !ok {
			return nil, fmt.Errorf("%w, got %q", errMissingEquals, term)
		}
		f, err := ResolveField(name)
		if err != nil {
			return nil, err
		}
		out = append(out, Assignment{Field: f, Raw: strings.TrimSpace(raw)})
	}
	return out, nil
}

// ApplyTo records the assignment on u. Numeric text follows the same
// leading-number rule the validator uses.
func (a Assignment) ApplyTo(u *vitals.Update) error {
	if a.Raw == "" {
		u.Clear(a.Field)
		return nil
	}
	switch {
	case a.Field.IsNumeric():
		v, ok := validation.Text(a.Raw).Float()
		if !ok {
			return fmt.Errorf("%s: %q is not a number", a.Field, a.Raw)
		}
		return u.SetNumber(a.Field, v)
	case a.Field == vitals.FieldSupplementalOxygen:
		on, err := parseBool(a.Raw)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Field, err)
		}
		u.SupplementalOxygen(on)
	case a.Field == vitals.FieldConsciousnessLevel:
		l, err := vitals.ParseConsciousnessLevel(a.Raw)
		if err != nil {
			return err
		}
		u.ConsciousnessLevel(l)
	}
	return nil
}

// Validate runs the interactive input checks for the assignment.
func (a Assignment) Validate() validation.Result {
	switch {
	case a.Field.IsNumeric():
		return validation.InputChange(string(a.Field), a.Raw)
	case a.Field == vitals.FieldConsciousnessLevel:
		l, err := vitals.ParseConsciousnessLevel(a.Raw)
		if err != nil {
			return validation.ConsciousnessLevel(a.Raw)
		}
		return validation.ConsciousnessLevel(l.Code())
	default:
		return validation.Result{IsValid: true}
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off", "air":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%q is not a yes/no value", s)
	}
	return b, nil
}
