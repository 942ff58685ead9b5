package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoData indicates metrics were requested for a ledger without records.
var ErrNoData = errors.New("no production data available")

// ErrSheetsDisabled indicates a Google Sheets operation was requested without credentials.
var ErrSheetsDisabled = errors.New("google sheets integration disabled")

// ErrInvalidFilename rejects export names that would leave the ledger directory.
var ErrInvalidFilename = errors.New("export filename must be a bare file name")

// ErrSnapshotsDisabled indicates snapshot history was requested without a MongoDB store.
var ErrSnapshotsDisabled = errors.New("metrics snapshot store disabled")

// ValidationError reports a record that failed the presence checks. It is a
// user-facing warning: the ledger is left untouched.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

// FormatError reports a malformed ledger file or upload.
type FormatError struct {
	Line   int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "malformed ledger csv"
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
