package reporting

import (
	"math"

	"github.com/mamadbah2/prodledger/internal/domain/models"
)

const (
	// EfficiencyAlertThreshold flags records producing less than 90% good pieces.
	EfficiencyAlertThreshold = 0.90
	// OutputAlertThreshold flags records with fewer total pieces than this.
	OutputAlertThreshold = 80
)

// ComputeMetrics derives the aggregate statistics of a ledger. An empty
// ledger yields models.ErrNoData rather than zero-valued metrics.
//
// Records with zero total pieces have no efficiency: they are excluded from
// the mean and always land in the alert set because of their output.
func ComputeMetrics(records []models.ProductionRecord) (models.Metrics, error) {
	if len(records) == 0 {
		return models.Metrics{}, models.ErrNoData
	}

	metrics := models.Metrics{
		Records:  make([]models.RecordEfficiency, 0, len(records)),
		Machines: []models.MachineSeries{},
		Alerts:   []models.RecordEfficiency{},
	}

	machineIndex := make(map[string]int)
	var sum float64
	var defined int

	for i, record := range records {
		entry := models.RecordEfficiency{Index: i, Record: record}
		if eff, ok := record.Efficiency(); ok {
			entry.Efficiency = floatPtr(eff)
			sum += eff
			defined++
		}
		metrics.Records = append(metrics.Records, entry)

		metrics.TotalPieces += record.TotalPieces
		metrics.TotalDefective += record.DefectivePieces

		idx, seen := machineIndex[record.Machine]
		if !seen {
			idx = len(metrics.Machines)
			machineIndex[record.Machine] = idx
			metrics.Machines = append(metrics.Machines, models.MachineSeries{Machine: record.Machine})
		}
		series := &metrics.Machines[idx]
		series.Records++
		series.TotalPieces += record.TotalPieces
		series.DefectivePieces += record.DefectivePieces

		if isAlert(entry) {
			metrics.Alerts = append(metrics.Alerts, entry)
		}
	}

	for i := range metrics.Machines {
		series := &metrics.Machines[i]
		if series.TotalPieces > 0 {
			series.Efficiency = floatPtr(float64(series.TotalPieces-series.DefectivePieces) / float64(series.TotalPieces))
		}
	}

	if defined > 0 {
		mean := sum / float64(defined)
		metrics.MeanEfficiency = floatPtr(mean)
		metrics.MeanEfficiencyPct = floatPtr(round2(mean * 100))
	}

	return metrics, nil
}

func isAlert(entry models.RecordEfficiency) bool {
	if entry.Record.TotalPieces < OutputAlertThreshold {
		return true
	}
	return entry.Efficiency != nil && *entry.Efficiency < EfficiencyAlertThreshold
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func floatPtr(value float64) *float64 {
	return &value
}
