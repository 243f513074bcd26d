package vitals

import (
	"fmt"
	"strings"
)

// ConsciousnessLevel is a point on the ACVPU scale. The zero value is not a
// valid level.
type ConsciousnessLevel int

const (
	Alert ConsciousnessLevel = iota + 1
	Confusion
	Voice
	Pain
	Unresponsive
)

// ConsciousnessLevels lists every valid level in ACVPU order.
var ConsciousnessLevels = []ConsciousnessLevel{Alert, Confusion, Voice, Pain, Unresponsive}

var levelCodes = map[ConsciousnessLevel]string{
	Alert:        "A",
	Confusion:    "C",
	Voice:        "V",
	Pain:         "P",
	Unresponsive: "U",
}

var levelNames = map[ConsciousnessLevel]string{
	Alert:        "Alert",
	Confusion:    "Confusion",
	Voice:        "Voice",
	Pain:         "Pain",
	Unresponsive: "Unresponsive",
}

// ParseConsciousnessLevel accepts a single-letter ACVPU code or the full
// level name, case-insensitively.
func ParseConsciousnessLevel(s string) (ConsciousnessLevel, error) {
	s = strings.TrimSpace(s)
	for _, l := range ConsciousnessLevels {
		if strings.EqualFold(s, levelCodes[l]) || strings.EqualFold(s, levelNames[l]) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("invalid consciousness level %q: must be one of A, C, V, P, U", s)
}

// Valid reports whether l is one of the five ACVPU levels.
func (l ConsciousnessLevel) Valid() bool {
	_, ok := levelCodes[l]
	return ok
}

// IsAlert reports whether l is Alert. Every other level counts as altered
// consciousness.
func (l ConsciousnessLevel) IsAlert() bool {
	return l == Alert
}

// Code returns the single-letter ACVPU code.
func (l ConsciousnessLevel) Code() string {
	return levelCodes[l]
}

func (l ConsciousnessLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("ConsciousnessLevel(%d)", int(l))
}

// MarshalText encodes the level as its letter code.
func (l ConsciousnessLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid consciousness level %d", int(l))
	}
	return []byte(l.Code()), nil
}

// UnmarshalText decodes a letter code or level name.
func (l *ConsciousnessLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseConsciousnessLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
