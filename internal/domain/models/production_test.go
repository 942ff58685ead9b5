package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShift(t *testing.T) {
	tests := []struct {
		input string
		want  Shift
		ok    bool
	}{
		{"Manhã", ShiftMorning, true},
		{"manha", ShiftMorning, true},
		{"MORNING", ShiftMorning, true},
		{" Tarde ", ShiftAfternoon, true},
		{"afternoon", ShiftAfternoon, true},
		{"Noite", ShiftNight, true},
		{"night", ShiftNight, true},
		{"", ShiftUnset, true},
		{"Madrugada", ShiftUnset, false},
	}

	for _, tc := range tests {
		got, ok := ParseShift(tc.input)
		assert.Equal(t, tc.ok, ok, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}
}

func TestShiftJSON(t *testing.T) {
	payload, err := json.Marshal(ProductionRecord{Machine: "M1", Shift: ShiftNight})
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"shift":"Night"`)

	var record ProductionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"machine":"M1","shift":"Tarde"}`), &record))
	assert.Equal(t, ShiftAfternoon, record.Shift)

	err = json.Unmarshal([]byte(`{"shift":"Madrugada"}`), &record)
	var formatErr *FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestEfficiency(t *testing.T) {
	eff, ok := ProductionRecord{TotalPieces: 100, DefectivePieces: 5}.Efficiency()
	require.True(t, ok)
	assert.InDelta(t, 0.95, eff, 1e-9)

	_, ok = ProductionRecord{}.Efficiency()
	assert.False(t, ok)

	eff, ok = ProductionRecord{TotalPieces: 10, DefectivePieces: 15}.Efficiency()
	require.True(t, ok)
	assert.InDelta(t, -0.5, eff, 1e-9, "defects above total are not rejected")
}

func TestValidate(t *testing.T) {
	valid := ProductionRecord{Date: "2024-01-01", Machine: "M1", Shift: ShiftMorning, TotalPieces: 80}
	assert.NoError(t, valid.Validate())

	err := ProductionRecord{}.Validate()
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{"date", "machine", "shift"}, validationErr.Missing)
	assert.Equal(t, "invalid record: missing required fields: date, machine, shift", err.Error())
}

func TestFormatErrorMessage(t *testing.T) {
	err := &FormatError{Line: 3, Reason: "total pieces", Err: errors.New(`"x" is not an integer`)}
	assert.Equal(t, `malformed ledger csv at line 3: total pieces: "x" is not an integer`, err.Error())
	assert.EqualError(t, errors.Unwrap(err), `"x" is not an integer`)
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("/PROD 2024-01-01 Torno A Manhã 10 1")
	assert.Equal(t, CommandProduction, cmd.Type)
	assert.Equal(t, []string{"2024-01-01", "Torno", "A", "Manhã", "10", "1"}, cmd.Args)

	assert.Equal(t, CommandReport, ParseCommand("relatório").Type)
	assert.Equal(t, CommandHelp, ParseCommand("/ajuda").Type)
	assert.Equal(t, CommandUnknown, ParseCommand("   ").Type)
	assert.Equal(t, CommandUnknown, ParseCommand("/eggs 10").Type)
}
