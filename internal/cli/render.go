package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ehr/vitalscores/internal/config"
	"github.com/ehr/vitalscores/internal/domain/calculation"
	"github.com/ehr/vitalscores/internal/domain/scoring"
	"github.com/ehr/vitalscores/internal/domain/validation"
	"github.com/ehr/vitalscores/internal/domain/vitals"
)

// Renderer writes results as plain text or indented JSON.
type Renderer struct {
	w      io.Writer
	format string
}

// NewRenderer returns a Renderer for format, which is config.FormatText or
// config.FormatJSON.
func NewRenderer(w io.Writer, format string) (*Renderer, error) {
	switch format {
	case config.FormatText, config.FormatJSON:
		return &Renderer{w: w, format: format}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

func (r *Renderer) writeJSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// Results prints the combined summary delivered to subscribers.
func (r *Renderer) Results(res calculation.CalculationResults) error {
	if r.format == config.FormatJSON {
		return r.writeJSON(res)
	}
	_, err := fmt.Fprintf(r.w, "%s | %s\n",
		summaryLine(scoring.NEWS2, res.NEWS2), summaryLine(scoring.QSOFA, res.QSOFA))
	return err
}

func summaryLine(sys scoring.System, s calculation.Summary) string {
	score, ok := s.Score.Get()
	if !s.IsComplete || !ok {
		return sys.DisplayName() + ": incomplete"
	}
	level, _ := s.RiskLevel.Get()
	return fmt.Sprintf("%s: %d/%d (%s risk)", sys.DisplayName(), score, sys.MaxScore(), level)
}

// Report is everything the calc command prints.
type Report struct {
	Vitals       vitals.VitalSigns           `json:"vitalSigns"`
	Results      calculation.DetailedResults `json:"results"`
	Completeness calculation.Completeness    `json:"completeness"`
	Validation   validation.Summary          `json:"validation"`
}

// Report prints full results with breakdowns, completeness and the
// validation summary.
func (r *Renderer) Report(rep Report) error {
	if r.format == config.FormatJSON {
		return r.writeJSON(rep)
	}
	var b strings.Builder
	writeDetail(&b, rep.Results.NEWS2, rep.Completeness.NEWS2)
	writeDetail(&b, rep.Results.QSOFA, rep.Completeness.QSOFA)

	v := rep.Validation
	if v.ErrorCount+v.WarningCount > 0 {
		fmt.Fprintf(&b, "validation: %d error(s), %d warning(s)\n", v.ErrorCount, v.WarningCount)
		for _, msg := range v.Errors {
			fmt.Fprintf(&b, "  error: %s\n", msg)
		}
		for _, msg := range v.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", msg)
		}
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func writeDetail(b *strings.Builder, res scoring.ScoreResult, c calculation.SystemCompleteness) {
	name := res.System.DisplayName()
	score, ok := res.Score.Get()
	if !res.IsComplete || !ok {
		fmt.Fprintf(b, "%s: incomplete, %d%% of required data (missing: %s)\n",
			name, c.CompletionPercentage, joinFields(c.MissingFields))
		return
	}
	level, _ := res.RiskLevel.Get()
	fmt.Fprintf(b, "%s: %d/%d (%s risk)\n", name, score, res.System.MaxScore(), level)
	for _, contrib := range res.Breakdown {
		fmt.Fprintf(b, "  %-20s %d\n", contrib.Field, contrib.Points)
	}
	if res.System == scoring.NEWS2 {
		fmt.Fprintf(b, "  response: %s\n", scoring.NEWS2ClinicalResponse(level))
		if extreme := res.ExtremeParameters(); len(extreme) > 0 {
			fmt.Fprintf(b, "  single-parameter red score: %s\n", joinFields(extreme))
		}
	}
}

// Completeness prints per-system data completeness.
func (r *Renderer) Completeness(c calculation.Completeness) error {
	if r.format == config.FormatJSON {
		return r.writeJSON(c)
	}
	var b strings.Builder
	for _, row := range []struct {
		sys scoring.System
		c   calculation.SystemCompleteness
	}{{scoring.NEWS2, c.NEWS2}, {scoring.QSOFA, c.QSOFA}} {
		fmt.Fprintf(&b, "%s: %d%%", row.sys.DisplayName(), row.c.CompletionPercentage)
		if len(row.c.MissingFields) > 0 {
			fmt.Fprintf(&b, " (missing: %s)", joinFields(row.c.MissingFields))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Requirements prints which fields each system scores and needs.
func (r *Renderer) Requirements(fields calculation.FieldRequirements, minimum calculation.MinimumRequirements) error {
	if r.format == config.FormatJSON {
		return r.writeJSON(struct {
			Fields  calculation.FieldRequirements   `json:"fields"`
			Minimum calculation.MinimumRequirements `json:"minimum"`
		}{fields, minimum})
	}
	_, err := fmt.Fprintf(r.w,
		"NEWS2 scores:   %s\nq-SOFA scores:  %s\nshared:         %s\n"+
			"NEWS2 needs:    %s\nq-SOFA needs:   %s\neither needs:   %s\n",
		joinFields(fields.NEWS2), joinFields(fields.QSOFA), joinFields(fields.Shared),
		joinFields(minimum.ForNEWS2), joinFields(minimum.ForQSOFA), joinFields(minimum.ForEither))
	return err
}

// Validation prints one field's result. Valid input without a warning
// prints "ok".
func (r *Renderer) Validation(field string, res validation.Result) error {
	if r.format == config.FormatJSON {
		return r.writeJSON(struct {
			Field    string              `json:"field"`
			Severity validation.Severity `json:"severity"`
			validation.Result
		}{field, res.Severity(), res})
	}
	msg := res.Message(field)
	if msg == "" {
		msg = "ok"
	}
	_, err := fmt.Fprintf(r.w, "%s [%s]: %s\n", field, res.Severity(), msg)
	return err
}

// Vitals prints the snapshot.
func (r *Renderer) Vitals(v vitals.VitalSigns) error {
	if r.format == config.FormatJSON {
		return r.writeJSON(v)
	}
	var b strings.Builder
	for _, f := range vitals.Fields {
		fmt.Fprintf(&b, "  %-20s %s\n", f, formatValue(v, f))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func formatValue(v vitals.VitalSigns, f vitals.Field) string {
	switch f {
	case vitals.FieldSupplementalOxygen:
		if v.SupplementalOxygen {
			return "yes"
		}
		return "no"
	case vitals.FieldConsciousnessLevel:
		if l, ok := v.ConsciousnessLevel.Get(); ok {
			return fmt.Sprintf("%s (%s)", l.Code(), l)
		}
		return "-"
	}
	x, _ := v.Numeric(f)
	if n, ok := x.Get(); ok {
		return fmt.Sprintf("%g %s", n, f.Unit())
	}
	return "-"
}

func joinFields(fields []vitals.Field) string {
	if len(fields) == 0 {
		return "none"
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
