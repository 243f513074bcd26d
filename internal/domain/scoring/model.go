// Package scoring implements the NEWS2 and q-SOFA early-warning scores as pure
// functions over a vital signs snapshot.
package scoring

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/pkg/optional"
)

// System identifies a scoring system.
type System string

const (
	NEWS2 System = "news2"
	QSOFA System = "qsofa"
)

// Systems lists the supported scoring systems.
var Systems = []System{NEWS2, QSOFA}

// DisplayName returns the clinical name of the system.
func (s System) DisplayName() string {
	switch s {
	case NEWS2:
		return "NEWS2"
	case QSOFA:
		return "q-SOFA"
	}
	return string(s)
}

// MaxScore returns the highest total the system can produce.
func (s System) MaxScore() int {
	switch s {
	case NEWS2:
		return 20
	case QSOFA:
		return 3
	}
	return 0
}

// RiskLevel is the clinical risk tier derived from a total score. q-SOFA only
// uses RiskLow and RiskHigh.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Contribution is the points one parameter adds to a total.
type Contribution struct {
	Field  vitals.Field
	Points int
}

// Breakdown is the per-parameter contribution list behind a total, in the
// scoring system's parameter order. It is nil for an incomplete result.
type Breakdown []Contribution

// Total sums every contribution.
func (b Breakdown) Total() int {
	total := 0
	for _, c := range b {
		total += c.Points
	}
	return total
}

// Points returns the points awarded for f.
func (b Breakdown) Points(f vitals.Field) (int, bool) {
	for _, c := range b {
		if c.Field == f {
			return c.Points, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the breakdown as an object keyed by field name, keeping
// parameter order. A nil breakdown encodes as null.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(c.Field))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(c.Points))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ScoreResult is the outcome of one scoring system over one snapshot. Score,
// RiskLevel and Breakdown are set exactly when IsComplete is true.
type ScoreResult struct {
	System     System                       `json:"system"`
	Score      optional.Optional[int]       `json:"score"`
	RiskLevel  optional.Optional[RiskLevel] `json:"riskLevel"`
	IsComplete bool                         `json:"isComplete"`
	Breakdown  Breakdown                    `json:"breakdown"`
}

func incomplete(s System) ScoreResult {
	return ScoreResult{System: s}
}

func complete(s System, breakdown Breakdown, tier func(int) RiskLevel) ScoreResult {
	total := breakdown.Total()
	return ScoreResult{
		System:     s,
		Score:      optional.Some(total),
		RiskLevel:  optional.Some(tier(total)),
		IsComplete: true,
		Breakdown:  breakdown,
	}
}

// ExtremeParameters returns the NEWS2 parameters that scored 3 on their own.
// Such a parameter warrants urgent review whatever the total; it never
// changes RiskLevel.
func (r ScoreResult) ExtremeParameters() []vitals.Field {
	if r.System != NEWS2 || !r.IsComplete {
		return nil
	}
	var fields []vitals.Field
	for _, c := range r.Breakdown {
		if c.Points == 3 {
			fields = append(fields, c.Field)
		}
	}
	return fields
}

// Calculate runs the named system over v.
func Calculate(s System, v vitals.VitalSigns) ScoreResult {
	switch s {
	case NEWS2:
		return CalculateNEWS2(v)
	case QSOFA:
		return CalculateQSOFA(v)
	}
	return incomplete(s)
}
