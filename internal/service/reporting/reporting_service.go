package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/domain/models"
)

const (
	maxAlertLines       = 10
	defaultHistoryLimit = 30
)

// RecordSource provides the ledger rows metrics are computed from.
type RecordSource interface {
	Records() []models.ProductionRecord
}

// SnapshotStore persists metrics snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot models.MetricsSnapshot) error
	LatestSnapshots(ctx context.Context, limit int64) ([]models.MetricsSnapshot, error)
}

// Service exposes production analytics for the API, WhatsApp and scheduled reports.
type Service struct {
	source    RecordSource
	snapshots SnapshotStore
	logger    *zap.Logger
}

// NewService wires a new reporting service instance. snapshots may be nil.
func NewService(source RecordSource, snapshots SnapshotStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, snapshots: snapshots, logger: logger}
}

// Metrics computes the metrics of the current ledger.
func (s *Service) Metrics() (models.Metrics, error) {
	return ComputeMetrics(s.source.Records())
}

// Summary renders the current metrics as a short text report.
func (s *Service) Summary(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	metrics, err := s.Metrics()
	if errors.Is(err, models.ErrNoData) {
		return "Production summary: no data available.", nil
	}
	if err != nil {
		return "", fmt.Errorf("compute metrics: %w", err)
	}

	return FormatSummary(metrics), nil
}

// FormatSummary renders metrics the way operators read them on WhatsApp.
func FormatSummary(metrics models.Metrics) string {
	var b strings.Builder

	mean := "n/a"
	if metrics.MeanEfficiencyPct != nil {
		mean = fmt.Sprintf("%.2f%%", *metrics.MeanEfficiencyPct)
	}
	fmt.Fprintf(&b, "Production summary: %d records, efficiency %s.\n", len(metrics.Records), mean)
	fmt.Fprintf(&b, "Pieces produced: %d. Defects: %d.\n", metrics.TotalPieces, metrics.TotalDefective)

	for _, series := range metrics.Machines {
		eff := "n/a"
		if series.Efficiency != nil {
			eff = fmt.Sprintf("%.2f%%", *series.Efficiency*100)
		}
		fmt.Fprintf(&b, "- %s: %d pieces, %s\n", series.Machine, series.TotalPieces, eff)
	}

	if len(metrics.Alerts) == 0 {
		b.WriteString("No alerts.")
		return b.String()
	}

	fmt.Fprintf(&b, "Alerts (efficiency < %.0f%% or output < %d pieces): %d\n",
		EfficiencyAlertThreshold*100, OutputAlertThreshold, len(metrics.Alerts))
	for i, alert := range metrics.Alerts {
		if i == maxAlertLines {
			fmt.Fprintf(&b, "... and %d more\n", len(metrics.Alerts)-maxAlertLines)
			break
		}
		eff := "n/a"
		if alert.Efficiency != nil {
			eff = fmt.Sprintf("%.2f%%", *alert.Efficiency*100)
		}
		fmt.Fprintf(&b, "! %s %s %s: %d pieces, %s\n",
			alert.Record.Date, alert.Record.Machine, alert.Record.Shift, alert.Record.TotalPieces, eff)
	}

	return strings.TrimRight(b.String(), "\n")
}

// Snapshot captures the current metrics and stores them when a snapshot
// store is configured. The snapshot is returned either way.
func (s *Service) Snapshot(ctx context.Context, now time.Time) (models.MetricsSnapshot, error) {
	snapshot := models.MetricsSnapshot{
		ID:            uuid.NewString(),
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     now.UTC(),
	}

	metrics, err := s.Metrics()
	switch {
	case errors.Is(err, models.ErrNoData):
	case err != nil:
		return models.MetricsSnapshot{}, fmt.Errorf("compute metrics: %w", err)
	default:
		snapshot.HasData = true
		snapshot.RecordCount = len(metrics.Records)
		snapshot.MeanPct = metrics.MeanEfficiencyPct
		snapshot.TotalPieces = metrics.TotalPieces
		snapshot.TotalDefects = metrics.TotalDefective
		snapshot.AlertCount = len(metrics.Alerts)
		snapshot.Machines = metrics.Machines
	}

	if s.snapshots == nil {
		s.logger.Debug("snapshot store disabled, skipping persistence")
		return snapshot, nil
	}

	if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return snapshot, fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Info("metrics snapshot stored",
		zap.String("id", snapshot.ID),
		zap.Int("records", snapshot.RecordCount),
		zap.Int("alerts", snapshot.AlertCount))
	return snapshot, nil
}

// History returns up to limit stored snapshots, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]models.MetricsSnapshot, error) {
	if s.snapshots == nil {
		return nil, models.ErrSnapshotsDisabled
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	snapshots, err := s.snapshots.LatestSnapshots(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	return snapshots, nil
}
