package validation

import (
	"sort"

	"github.com/ehr/vitalscores/internal/domain/vitals"
)

// State holds the latest result per field.
type State map[vitals.Field]Result

// Summary counts and lists the messages in a State.
type Summary struct {
	ErrorCount   int      `json:"errorCount"`
	WarningCount int      `json:"warningCount"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

func (s State) sortedFields() []vitals.Field {
	fields := make([]vitals.Field, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// HasErrors reports whether any result is invalid.
func (s State) HasErrors() bool {
	for _, r := range s {
		if !r.IsValid {
			return true
		}
	}
	return false
}

// CanSubmit reports whether the state contains no invalid result.
func (s State) CanSubmit() bool { return !s.HasErrors() }

// Errors lists the error messages, ordered by field name.
func (s State) Errors() []string {
	errs := []string{}
	for _, f := range s.sortedFields() {
		if r := s[f]; !r.IsValid && r.ErrorMessage != "" {
			errs = append(errs, r.ErrorMessage)
		}
	}
	return errs
}

// Summary folds the state into counts and message lists, ordered by field
// name.
func (s State) Summary() Summary {
	sum := Summary{Errors: []string{}, Warnings: []string{}}
	for _, f := range s.sortedFields() {
		r := s[f]
		switch {
		case !r.IsValid && r.ErrorMessage != "":
			sum.Errors = append(sum.Errors, r.ErrorMessage)
		case r.IsValid && r.WarningMessage != "":
			sum.Warnings = append(sum.Warnings, r.WarningMessage)
		}
	}
	sum.ErrorCount = len(sum.Errors)
	sum.WarningCount = len(sum.Warnings)
	return sum
}
