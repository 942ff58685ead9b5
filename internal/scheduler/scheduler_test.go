package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/prodledger/internal/config"
	"github.com/mamadbah2/prodledger/internal/domain/models"
)

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) Summary(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockReporter) Snapshot(ctx context.Context, now time.Time) (models.MetricsSnapshot, error) {
	args := m.Called(ctx, now)
	return models.MetricsSnapshot{}, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

var reportingCfg = config.ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "UTC"}

func TestRunReportSendsSummary(t *testing.T) {
	reporter := new(mockReporter)
	reporter.On("Snapshot", mock.Anything, mock.Anything).Return(nil, errors.New("mongo down")).Once()
	reporter.On("Summary", mock.Anything).Return("Production summary: 2 records", nil).Once()

	notifier := new(mockNotifier)
	notifier.On("SendOutbound", mock.Anything, models.OutboundMessageRequest{To: "5511", Message: "Production summary: 2 records"}).
		Return(nil).Once()

	s, err := NewScheduler(reportingCfg, "5511", reporter, notifier, nil)
	require.NoError(t, err)

	require.NoError(t, s.RunReport(context.Background()))
	reporter.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRunReportWithoutRecipient(t *testing.T) {
	reporter := new(mockReporter)
	reporter.On("Snapshot", mock.Anything, mock.Anything).Return(nil, nil).Once()
	reporter.On("Summary", mock.Anything).Return("summary", nil).Once()

	notifier := new(mockNotifier)
	s, err := NewScheduler(reportingCfg, "", reporter, notifier, nil)
	require.NoError(t, err)

	require.NoError(t, s.RunReport(context.Background()))
	notifier.AssertNotCalled(t, "SendOutbound", mock.Anything, mock.Anything)
}

func TestRunReportPropagatesSendFailure(t *testing.T) {
	reporter := new(mockReporter)
	reporter.On("Snapshot", mock.Anything, mock.Anything).Return(nil, nil).Once()
	reporter.On("Summary", mock.Anything).Return("summary", nil).Once()

	notifier := new(mockNotifier)
	notifier.On("SendOutbound", mock.Anything, mock.Anything).Return(errors.New("rate limited")).Once()

	s, err := NewScheduler(reportingCfg, "5511", reporter, notifier, nil)
	require.NoError(t, err)

	assert.ErrorContains(t, s.RunReport(context.Background()), "rate limited")
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s, err := NewScheduler(config.ReportingConfig{CronSchedule: "not a cron", Timezone: "UTC"}, "", new(mockReporter), nil, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start())

	_, err = NewScheduler(config.ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "Nowhere/Land"}, "", new(mockReporter), nil, nil)
	assert.Error(t, err)
}

func TestStartAndStop(t *testing.T) {
	s, err := NewScheduler(reportingCfg, "", new(mockReporter), nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	s.Stop()
}
