// Package validation checks vital sign input against physiological ranges.
// Results are advisory: nothing here stops a value from being stored or
// scored.
package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/pkg/optional"
)

// Result is the outcome of validating one field. At most one of
// ErrorMessage and WarningMessage is set.
type Result struct {
	IsValid        bool   `json:"isValid"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	WarningMessage string `json:"warningMessage,omitempty"`
}

// Severity grades a Result for display.
type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func valid() Result             { return Result{IsValid: true} }
func invalid(msg string) Result { return Result{ErrorMessage: msg} }
func warning(msg string) Result { return Result{IsValid: true, WarningMessage: msg} }

// Severity reports error for invalid results, warning for valid results that
// carry a warning, and none otherwise.
func (r Result) Severity() Severity {
	switch {
	case !r.IsValid:
		return SeverityError
	case r.WarningMessage != "":
		return SeverityWarning
	default:
		return SeverityNone
	}
}

// Message returns the text to show next to field: the warning (or nothing)
// for a valid result, the error for an invalid one.
func (r Result) Message(field string) string {
	if r.IsValid {
		return r.WarningMessage
	}
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return "Invalid " + field
}

// FieldConfig tunes Field and WithPhysiologicalContext. Min and Max only
// apply to field names that have no built-in range.
type FieldConfig struct {
	Required bool
	Min      optional.Optional[float64]
	Max      optional.Optional[float64]
}

// Input is a raw value as typed or as already parsed. The zero Input is
// empty.
type Input struct {
	text     string
	number   float64
	isNumber bool
}

// Number wraps an already-parsed value.
func Number(v float64) Input { return Input{number: v, isNumber: true} }

// Text wraps typed input. An empty string is an empty Input.
func Text(s string) Input { return Input{text: s} }

// IsEmpty reports whether nothing was entered.
func (in Input) IsEmpty() bool { return !in.isNumber && in.text == "" }

// Float returns the numeric value. Text is read up to the first character
// that cannot continue a number, so "12abc" is 12 and "abc" is no number.
func (in Input) Float() (float64, bool) {
	if in.isNumber {
		return in.number, !math.IsNaN(in.number)
	}
	return parseLeadingFloat(in.text)
}

var leadingNumber = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)

func parseLeadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// out of range still yields ±Inf, which is a number
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// fieldNames maps lower-cased field names, including the spaced forms used in
// labels, to the field whose range rules apply.
var fieldNames = map[string]vitals.Field{
	"respiratoryrate":   vitals.FieldRespiratoryRate,
	"respiratory rate":  vitals.FieldRespiratoryRate,
	"heartrate":         vitals.FieldHeartRate,
	"heart rate":        vitals.FieldHeartRate,
	"systolicbp":        vitals.FieldSystolicBP,
	"systolic bp":       vitals.FieldSystolicBP,
	"blood pressure":    vitals.FieldSystolicBP,
	"temperature":       vitals.FieldTemperature,
	"oxygensaturation":  vitals.FieldOxygenSaturation,
	"oxygen saturation": vitals.FieldOxygenSaturation,
}

func lookupField(name string) (vitals.Field, bool) {
	f, ok := fieldNames[strings.ToLower(name)]
	return f, ok
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
