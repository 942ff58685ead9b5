package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/config"
	"github.com/mamadbah2/prodledger/internal/domain/models"
)

const jobTimeout = 2 * time.Minute

// Reporter produces the scheduled production report.
type Reporter interface {
	Summary(ctx context.Context) (string, error)
	Snapshot(ctx context.Context, now time.Time) (models.MetricsSnapshot, error)
}

// Notifier delivers the report to operators.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	reporter  Reporter
	notifier  Notifier
	recipient string
	schedule  string
	now       func() time.Time
	logger    *zap.Logger
}

// NewScheduler creates a scheduler running in the configured timezone.
// notifier may be nil when WhatsApp is not configured.
func NewScheduler(cfg config.ReportingConfig, recipient string, reporter Reporter, notifier Notifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		reporter:  reporter,
		notifier:  notifier,
		recipient: recipient,
		schedule:  cfg.CronSchedule,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Start registers the production report job and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.runReport); err != nil {
		return fmt.Errorf("schedule production report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.RunReport(ctx); err != nil {
		s.logger.Error("scheduled report failed", zap.Error(err))
	}
}

// RunReport stores a metrics snapshot and sends the summary to the configured
// recipient. A snapshot failure does not prevent the summary from going out.
func (s *Scheduler) RunReport(ctx context.Context) error {
	s.logger.Info("generating production report")

	if _, err := s.reporter.Snapshot(ctx, s.now()); err != nil {
		s.logger.Error("failed to store metrics snapshot", zap.Error(err))
	}

	report, err := s.reporter.Summary(ctx)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}

	if s.notifier == nil || s.recipient == "" {
		s.logger.Debug("no report recipient configured, skipping delivery")
		return nil
	}

	if err := s.notifier.SendOutbound(ctx, models.OutboundMessageRequest{To: s.recipient, Message: report}); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	s.logger.Info("production report sent", zap.String("to", s.recipient))
	return nil
}
