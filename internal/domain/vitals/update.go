package vitals

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ehr/vitalscores/pkg/optional"
)

var (
	// ErrUnknownField is returned for a key that names no input.
	ErrUnknownField = errors.New("unknown vital sign field")
	// ErrNotNumeric is returned when a number is assigned to a non-numeric field.
	ErrNotNumeric = errors.New("field is not numeric")
)

// patch is one key of a partial update: untouched unless set, and when set it
// either carries a value or clears the field.
type patch[T any] struct {
	set   bool
	value optional.Optional[T]
}

func (p *patch[T]) assign(v T) { *p = patch[T]{set: true, value: optional.Some(v)} }
func (p *patch[T]) clear()     { *p = patch[T]{set: true, value: optional.None[T]()} }

func (p patch[T]) applyTo(dst *optional.Optional[T]) {
	if p.set {
		*dst = p.value
	}
}

// Update is a partial set of observations. Keys that were never touched leave
// the snapshot alone; touched keys overwrite it, and a cleared key makes the
// field absent again.
type Update struct {
	respiratoryRate    patch[float64]
	oxygenSaturation   patch[float64]
	supplementalOxygen patch[bool]
	temperature        patch[float64]
	systolicBP         patch[float64]
	heartRate          patch[float64]
	consciousnessLevel patch[ConsciousnessLevel]
}

// NewUpdate returns an update that touches nothing.
func NewUpdate() *Update {
	return &Update{}
}

func (u *Update) RespiratoryRate(v float64) *Update {
	u.respiratoryRate.assign(v)
	return u
}

func (u *Update) OxygenSaturation(v float64) *Update {
	u.oxygenSaturation.assign(v)
	return u
}

func (u *Update) SupplementalOxygen(on bool) *Update {
	u.supplementalOxygen.assign(on)
	return u
}

func (u *Update) Temperature(v float64) *Update {
	u.temperature.assign(v)
	return u
}

func (u *Update) SystolicBP(v float64) *Update {
	u.systolicBP.assign(v)
	return u
}

func (u *Update) HeartRate(v float64) *Update {
	u.heartRate.assign(v)
	return u
}

func (u *Update) ConsciousnessLevel(l ConsciousnessLevel) *Update {
	u.consciousnessLevel.assign(l)
	return u
}

// Clear marks f as absent. Clearing SupplementalOxygen resets it to false.
func (u *Update) Clear(f Field) *Update {
	switch f {
	case FieldRespiratoryRate:
		u.respiratoryRate.clear()
	case FieldOxygenSaturation:
		u.oxygenSaturation.clear()
	case FieldSupplementalOxygen:
		u.supplementalOxygen.clear()
	case FieldTemperature:
		u.temperature.clear()
	case FieldSystolicBP:
		u.systolicBP.clear()
	case FieldHeartRate:
		u.heartRate.clear()
	case FieldConsciousnessLevel:
		u.consciousnessLevel.clear()
	}
	return u
}

// SetNumber assigns v to a numeric field.
func (u *Update) SetNumber(f Field, v float64) error {
	switch f {
	case FieldRespiratoryRate:
		u.RespiratoryRate(v)
	case FieldOxygenSaturation:
		u.OxygenSaturation(v)
	case FieldTemperature:
		u.Temperature(v)
	case FieldSystolicBP:
		u.SystolicBP(v)
	case FieldHeartRate:
		u.HeartRate(v)
	default:
		if _, ok := ParseField(string(f)); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
		return fmt.Errorf("%w: %s", ErrNotNumeric, f)
	}
	return nil
}

// Touched returns the fields this update writes, in canonical order.
func (u *Update) Touched() []Field {
	set := map[Field]bool{
		FieldRespiratoryRate:    u.respiratoryRate.set,
		FieldOxygenSaturation:   u.oxygenSaturation.set,
		FieldSupplementalOxygen: u.supplementalOxygen.set,
		FieldTemperature:        u.temperature.set,
		FieldSystolicBP:         u.systolicBP.set,
		FieldHeartRate:          u.heartRate.set,
		FieldConsciousnessLevel: u.consciousnessLevel.set,
	}
	touched := []Field{}
	for _, f := range Fields {
		if set[f] {
			touched = append(touched, f)
		}
	}
	return touched
}

// IsEmpty reports whether the update touches no field.
func (u *Update) IsEmpty() bool {
	return len(u.Touched()) == 0
}

// Apply merges the update into v and returns the result. v is not modified.
func (u *Update) Apply(v VitalSigns) VitalSigns {
	out := v.Clone()
	if u == nil {
		return out
	}
	u.respiratoryRate.applyTo(&out.RespiratoryRate)
	u.oxygenSaturation.applyTo(&out.OxygenSaturation)
	u.temperature.applyTo(&out.Temperature)
	u.systolicBP.applyTo(&out.SystolicBP)
	u.heartRate.applyTo(&out.HeartRate)
	u.consciousnessLevel.applyTo(&out.ConsciousnessLevel)
	if u.supplementalOxygen.set {
		out.SupplementalOxygen = u.supplementalOxygen.value.OrElse(false)
	}
	return out
}

// UnmarshalJSON decodes a partial object. A missing key is untouched, an
// explicit null clears the field, and unknown keys are rejected.
func (u *Update) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode vital signs update: %w", err)
	}

	next := Update{}
	for key, value := range raw {
		f, ok := ParseField(key)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			next.Clear(f)
			continue
		}

		switch {
		case f.IsNumeric():
			var n float64
			if err := json.Unmarshal(value, &n); err != nil {
				return fmt.Errorf("decode %s: %w", f, err)
			}
			_ = next.SetNumber(f, n)
		case f == FieldSupplementalOxygen:
			var on bool
			if err := json.Unmarshal(value, &on); err != nil {
				return fmt.Errorf("decode %s: %w", f, err)
			}
			next.SupplementalOxygen(on)
		case f == FieldConsciousnessLevel:
			var l ConsciousnessLevel
			if err := json.Unmarshal(value, &l); err != nil {
				return fmt.Errorf("decode %s: %w", f, err)
			}
			if !l.Valid() {
				return fmt.Errorf("decode %s: invalid level %s", f, value)
			}
			next.ConsciousnessLevel(l)
		}
	}

	*u = next
	return nil
}
