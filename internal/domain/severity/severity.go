// Package severity defines the closed set of classification tiers produced
// by a diagnosis: Mild, Guidance and Emergency, in increasing urgency.
package severity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Severity is a classification tier. The zero value is not a valid tier.
type Severity int

const (
	Mild      Severity = iota + 1 // observe at home
	Guidance                      // seek care soon
	Emergency                     // seek care immediately
)

var ErrUnknown = errors.New("unknown severity")

type tierInfo struct {
	code  string
	label string
}

var tiers = map[Severity]tierInfo{
	Mild:      {code: "mild", label: "Sintomas Leves (Observe)"},
	Guidance:  {code: "guidance", label: "Orientações Iniciais"},
	Emergency: {code: "emergency", label: "Alerta de Emergência (Procure Ajuda Urgente)"},
}

// All lists the tiers from most to least urgent, which is the display order.
func All() []Severity {
	return []Severity{Emergency, Guidance, Mild}
}

func (s Severity) Valid() bool {
	_, ok := tiers[s]
	return ok
}

// Code is the stable lowercase identifier stored in the database.
func (s Severity) Code() string {
	if t, ok := tiers[s]; ok {
		return t.code
	}
	return ""
}

// Label is the Portuguese title shown to the user.
func (s Severity) Label() string {
	if t, ok := tiers[s]; ok {
		return t.label
	}
	return ""
}

func (s Severity) String() string {
	if c := s.Code(); c != "" {
		return c
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Compare orders tiers by urgency: negative when s is less urgent than o.
func (s Severity) Compare(o Severity) int {
	return int(s) - int(o)
}

// MoreUrgentThan reports whether s outranks o.
func (s Severity) MoreUrgentThan(o Severity) bool {
	return s.Compare(o) > 0
}

// Parse accepts a code ("guidance") or a display label, case-insensitively.
// The legacy tier name "urgent" maps to Guidance.
func Parse(v string) (Severity, error) {
	needle := strings.TrimSpace(v)
	if strings.EqualFold(needle, "urgent") {
		return Guidance, nil
	}
	for s, t := range tiers {
		if strings.EqualFold(needle, t.code) || strings.EqualFold(needle, t.label) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, v)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(s))
	}
	return json.Marshal(s.Code())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("severity must be a string: %w", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
