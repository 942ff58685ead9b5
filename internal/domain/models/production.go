package models

import (
	"strings"
)

// SchemaVersion identifies the on-disk ledger layout described by LedgerHeader.
const SchemaVersion = 1

// LedgerHeader is the exact CSV header of a persisted ledger, in column order.
var LedgerHeader = []string{"Data", "Máquina", "Turno", "Peças Totais", "Peças com defeito"}

// Shift enumerates the production shifts a record can belong to.
type Shift int

const (
	// ShiftUnset is the blank placeholder; it is never stored.
	ShiftUnset Shift = iota
	ShiftMorning
	ShiftAfternoon
	ShiftNight
)

var shiftLabels = map[Shift]string{
	ShiftMorning:   "Manhã",
	ShiftAfternoon: "Tarde",
	ShiftNight:     "Noite",
}

var shiftNames = map[Shift]string{
	ShiftMorning:   "Morning",
	ShiftAfternoon: "Afternoon",
	ShiftNight:     "Night",
}

// ParseShift accepts either the persisted label (Manhã, Tarde, Noite) or the
// English name, case-insensitively. Blank input yields ShiftUnset.
func ParseShift(value string) (Shift, bool) {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return ShiftUnset, true
	}

	for shift, label := range shiftLabels {
		if strings.EqualFold(normalized, label) || strings.EqualFold(normalized, shiftNames[shift]) {
			return shift, true
		}
	}

	// Files typed on keyboards without accents.
	if strings.EqualFold(normalized, "manha") {
		return ShiftMorning, true
	}

	return ShiftUnset, false
}

// Label returns the persisted CSV representation of the shift.
func (s Shift) Label() string {
	return shiftLabels[s]
}

// String returns the English shift name, or an empty string for ShiftUnset.
func (s Shift) String() string {
	return shiftNames[s]
}

// MarshalText encodes the shift using its English name.
func (s Shift) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes either a label or an English name.
func (s *Shift) UnmarshalText(text []byte) error {
	shift, ok := ParseShift(string(text))
	if !ok {
		return &FormatError{Reason: "unknown shift " + strings.TrimSpace(string(text))}
	}
	*s = shift
	return nil
}

// ProductionRecord captures one shift's production observation for a machine.
type ProductionRecord struct {
	Date            string `json:"date" bson:"date"`
	Machine         string `json:"machine" bson:"machine"`
	Shift           Shift  `json:"shift" bson:"shift"`
	TotalPieces     int    `json:"total_pieces" bson:"total_pieces"`
	DefectivePieces int    `json:"defective_pieces" bson:"defective_pieces"`
}

// Efficiency returns (total - defective) / total. The second value is false
// when the record has no pieces and the ratio is undefined.
func (r ProductionRecord) Efficiency() (float64, bool) {
	if r.TotalPieces == 0 {
		return 0, false
	}
	return float64(r.TotalPieces-r.DefectivePieces) / float64(r.TotalPieces), true
}

// Validate performs the presence checks required before a record is appended.
func (r ProductionRecord) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(r.Machine) == "" {
		missing = append(missing, "machine")
	}
	if r.Shift == ShiftUnset {
		missing = append(missing, "shift")
	}

	var invalid []string
	if r.TotalPieces < 0 {
		invalid = append(invalid, "total_pieces")
	}
	if r.DefectivePieces < 0 {
		invalid = append(invalid, "defective_pieces")
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}
	return &ValidationError{Missing: missing, Invalid: invalid}
}
