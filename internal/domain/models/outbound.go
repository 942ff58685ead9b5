package models

// OutboundMessageRequest represents requests to send a message manually via the API.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// AppendRecordRequest is the JSON body accepted when creating a ledger record.
// Shift stays a string so a blank selection reaches the presence check instead
// of failing binding.
type AppendRecordRequest struct {
	Date            string `json:"date"`
	Machine         string `json:"machine"`
	Shift           string `json:"shift"`
	TotalPieces     int    `json:"total_pieces"`
	DefectivePieces int    `json:"defective_pieces"`
}

// ExportRequest names the file the ledger should be exported to.
type ExportRequest struct {
	Filename string `json:"filename"`
}

// ToRecord converts the request into a ProductionRecord. An unrecognized
// shift is reported as a ValidationError.
func (r AppendRecordRequest) ToRecord() (ProductionRecord, error) {
	shift, ok := ParseShift(r.Shift)
	if !ok {
		return ProductionRecord{}, &ValidationError{Invalid: []string{"shift"}}
	}
	return ProductionRecord{
		Date:            r.Date,
		Machine:         r.Machine,
		Shift:           shift,
		TotalPieces:     r.TotalPieces,
		DefectivePieces: r.DefectivePieces,
	}, nil
}
