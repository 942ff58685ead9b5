package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/domain/models"
	"github.com/mamadbah2/prodledger/internal/repository/csvstore"
)

// DefaultRecentLimit is how many records Append returns for display.
const DefaultRecentLimit = 5

// SheetMirror is the optional Google Sheets copy of the ledger.
type SheetMirror interface {
	AppendRecord(ctx context.Context, record models.ProductionRecord) error
	ReadRows(ctx context.Context) ([][]string, error)
}

// Service owns the in-memory production ledger and keeps the canonical CSV
// file in sync with it. All operations are serialized.
type Service struct {
	mu          sync.Mutex
	store       csvstore.Repository
	mirror      SheetMirror
	records     []models.ProductionRecord
	recentLimit int
	logger      *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithSheetMirror mirrors appended records to Google Sheets and enables ImportSheet.
func WithSheetMirror(mirror SheetMirror) Option {
	return func(s *Service) {
		s.mirror = mirror
	}
}

// WithRecentLimit overrides how many records Append returns.
func WithRecentLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.recentLimit = limit
		}
	}
}

// NewService constructs an empty ledger backed by store. Call Load to read
// the persisted file.
func NewService(store csvstore.Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		store:       store,
		records:     []models.ProductionRecord{},
		recentLimit: DefaultRecentLimit,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Load replaces the in-memory ledger with the persisted file, or an empty
// ledger when no file exists yet.
func (s *Service) Load(ctx context.Context) error {
	records, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.logger.Info("ledger loaded", zap.Int("records", len(records)))
	return nil
}

// LoadOrSetAside behaves like Load, except that a malformed file is renamed
// aside and the ledger starts empty, so an upload can restore it. The
// returned path names the set-aside copy and is empty when the file loaded.
func (s *Service) LoadOrSetAside(ctx context.Context) (string, error) {
	err := s.Load(ctx)
	var formatErr *models.FormatError
	if !errors.As(err, &formatErr) {
		return "", err
	}

	aside, asideErr := s.store.SetAside(ctx)
	if asideErr != nil {
		return "", errors.Join(err, asideErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = []models.ProductionRecord{}
	s.logger.Error("malformed ledger set aside, starting empty",
		zap.String("aside", aside), zap.Int("line", formatErr.Line), zap.Error(err))
	return aside, nil
}

// Import replaces the ledger with the CSV stream and persists it as the
// canonical file. A malformed stream leaves the ledger untouched.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	records, err := csvstore.Decode(r)
	if err != nil {
		s.logger.Warn("rejected ledger upload", zap.Error(err))
		return 0, err
	}
	return s.replace(ctx, records, "upload")
}

// ImportSheet replaces the ledger with the rows of the configured Google Sheet.
func (s *Service) ImportSheet(ctx context.Context) (int, error) {
	if s.mirror == nil {
		return 0, models.ErrSheetsDisabled
	}

	rows, err := s.mirror.ReadRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("read sheet: %w", err)
	}

	records, err := csvstore.DecodeRows(rows)
	if err != nil {
		s.logger.Warn("rejected sheet import", zap.Error(err))
		return 0, err
	}
	return s.replace(ctx, records, "sheet")
}

func (s *Service) replace(ctx context.Context, records []models.ProductionRecord, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, records); err != nil {
		s.logger.Error("failed to persist imported ledger", zap.String("source", source), zap.Error(err))
		return 0, fmt.Errorf("save ledger: %w", err)
	}
	s.records = records

	s.logger.Info("ledger imported", zap.String("source", source), zap.Int("records", len(records)))
	return len(records), nil
}

// Append validates record, appends it and rewrites the canonical file. A
// *models.ValidationError means nothing changed. On success the most recent
// records are returned for display.
func (s *Service) Append(ctx context.Context, record models.ProductionRecord) ([]models.ProductionRecord, error) {
	record.Date = strings.TrimSpace(record.Date)
	record.Machine = strings.TrimSpace(record.Machine)

	if err := record.Validate(); err != nil {
		s.logger.Warn("record rejected", zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if err := s.store.Save(ctx, s.records); err != nil {
		s.records = s.records[:len(s.records)-1]
		s.logger.Error("failed to persist ledger", zap.Error(err))
		return nil, fmt.Errorf("save ledger: %w", err)
	}

	s.logger.Info("record appended",
		zap.String("machine", record.Machine),
		zap.String("shift", record.Shift.String()),
		zap.Int("total_pieces", record.TotalPieces),
		zap.Int("records", len(s.records)))

	if s.mirror != nil {
		if err := s.mirror.AppendRecord(ctx, record); err != nil {
			s.logger.Warn("sheet mirror failed", zap.Error(err))
		}
	}

	return s.recentLocked(s.recentLimit), nil
}

// Records returns a copy of the whole ledger in insertion order.
func (s *Service) Records() []models.ProductionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentLocked(len(s.records))
}

// Recent returns a copy of the last n records, or all of them when n <= 0.
func (s *Service) Recent(n int) []models.ProductionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentLocked(n)
}

// Len returns the number of records.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Export writes the full ledger to filename (canonical file when empty) and
// returns the path written.
func (s *Service) Export(ctx context.Context, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.store.Export(ctx, filename, s.records)
	if err != nil {
		s.logger.Error("failed to export ledger", zap.String("filename", filename), zap.Error(err))
		return "", fmt.Errorf("export ledger: %w", err)
	}
	return path, nil
}

// ExportFile writes the ledger next to the canonical file under name, which
// must be a bare file name. An empty name rewrites the canonical file.
func (s *Service) ExportFile(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.Export(ctx, "")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidFilename, name)
	}
	return s.Export(ctx, filepath.Join(filepath.Dir(s.store.Path()), name))
}

func (s *Service) recentLocked(n int) []models.ProductionRecord {
	if n <= 0 || n > len(s.records) {
		n = len(s.records)
	}
	out := make([]models.ProductionRecord, n)
	copy(out, s.records[len(s.records)-n:])
	return out
}

// IsUserError reports whether err is a validation or format problem the
// caller can fix, as opposed to an I/O fault.
func IsUserError(err error) bool {
	var validationErr *models.ValidationError
	var formatErr *models.FormatError
	return errors.As(err, &validationErr) || errors.As(err, &formatErr)
}
