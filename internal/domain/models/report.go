package models

import "time"

// RecordEfficiency pairs a ledger row with its derived efficiency.
// Efficiency is nil when the record has zero total pieces.
type RecordEfficiency struct {
	Index      int              `json:"index" bson:"index"`
	Record     ProductionRecord `json:"record" bson:"record"`
	Efficiency *float64         `json:"efficiency" bson:"efficiency,omitempty"`
}

// MachineSeries aggregates production for a single machine, suitable for charting.
type MachineSeries struct {
	Machine         string   `json:"machine" bson:"machine"`
	Records         int      `json:"records" bson:"records"`
	TotalPieces     int      `json:"total_pieces" bson:"total_pieces"`
	DefectivePieces int      `json:"defective_pieces" bson:"defective_pieces"`
	Efficiency      *float64 `json:"efficiency" bson:"efficiency,omitempty"`
}

// Metrics holds the aggregate statistics of a non-empty ledger.
type Metrics struct {
	Records           []RecordEfficiency `json:"records" bson:"records"`
	MeanEfficiency    *float64           `json:"mean_efficiency" bson:"mean_efficiency,omitempty"`
	MeanEfficiencyPct *float64           `json:"mean_efficiency_pct" bson:"mean_efficiency_pct,omitempty"`
	TotalPieces       int                `json:"total_pieces" bson:"total_pieces"`
	TotalDefective    int                `json:"total_defective" bson:"total_defective"`
	Machines          []MachineSeries    `json:"machines" bson:"machines"`
	Alerts            []RecordEfficiency `json:"alerts" bson:"alerts"`
}

// MetricsSnapshot is the periodic metrics capture stored in MongoDB.
type MetricsSnapshot struct {
	ID            string          `bson:"_id" json:"id"`
	SchemaVersion int             `bson:"schema_version" json:"schema_version"`
	RecordCount   int             `bson:"record_count" json:"record_count"`
	HasData       bool            `bson:"has_data" json:"has_data"`
	MeanPct       *float64        `bson:"mean_efficiency_pct,omitempty" json:"mean_efficiency_pct,omitempty"`
	TotalPieces   int             `bson:"total_pieces" json:"total_pieces"`
	TotalDefects  int             `bson:"total_defective" json:"total_defective"`
	AlertCount    int             `bson:"alert_count" json:"alert_count"`
	Machines      []MachineSeries `bson:"machines,omitempty" json:"machines,omitempty"`
	CreatedAt     time.Time       `bson:"created_at" json:"created_at"`
}
