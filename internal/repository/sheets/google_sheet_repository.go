package sheets

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/prodledger/internal/config"
	"github.com/mamadbah2/prodledger/internal/domain/models"
)

// Repository mirrors ledger rows into a Google Sheet and reads them back.
type Repository interface {
	AppendRecord(ctx context.Context, record models.ProductionRecord) error
	ReadRows(ctx context.Context) ([][]string, error)
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	values        valuesAPI
	spreadsheetID string
	sheetRange    string
	logger        *zap.Logger

	mu          sync.Mutex
	headerReady bool
}

// valuesAPI is the slice of the Sheets values service the repository uses.
type valuesAPI interface {
	Append(ctx context.Context, spreadsheetID, sheetRange string, rows [][]interface{}) error
	Get(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error)
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return newRepository(&serviceValues{svc: service.Spreadsheets.Values}, cfg, logger), nil
}

func newRepository(values valuesAPI, cfg config.SheetsConfig, logger *zap.Logger) *GoogleSheetRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSheetRepository{
		values:        values,
		spreadsheetID: cfg.SpreadsheetID,
		sheetRange:    cfg.Range,
		logger:        logger,
	}
}

// AppendRecord appends one ledger row to the configured range.
func (r *GoogleSheetRepository) AppendRecord(ctx context.Context, record models.ProductionRecord) error {
	if r.sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	if err := r.ensureHeader(ctx); err != nil {
		return err
	}

	row := []interface{}{record.Date, record.Machine, record.Shift.Label(), record.TotalPieces, record.DefectivePieces}
	if err := r.values.Append(ctx, r.spreadsheetID, r.sheetRange, [][]interface{}{row}); err != nil {
		return fmt.Errorf("append row into range %s: %w", r.sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", r.sheetRange), zap.String("machine", record.Machine))
	return nil
}

// ensureHeader writes models.LedgerHeader into an empty range so the sheet
// can be imported back as a ledger. The range is only inspected once.
func (r *GoogleSheetRepository) ensureHeader(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.headerReady {
		return nil
	}

	existing, err := r.values.Get(ctx, r.spreadsheetID, r.sheetRange)
	if err != nil {
		return fmt.Errorf("inspect range %s: %w", r.sheetRange, err)
	}

	if len(existing) == 0 {
		header := make([]interface{}, len(models.LedgerHeader))
		for i, column := range models.LedgerHeader {
			header[i] = column
		}
		if err := r.values.Append(ctx, r.spreadsheetID, r.sheetRange, [][]interface{}{header}); err != nil {
			return fmt.Errorf("write header into range %s: %w", r.sheetRange, err)
		}
		r.logger.Info("ledger header written to empty sheet", zap.String("range", r.sheetRange))
	}

	r.headerReady = true
	return nil
}

// ReadRows fetches the configured range, header included, as strings.
func (r *GoogleSheetRepository) ReadRows(ctx context.Context) ([][]string, error) {
	if r.sheetRange == "" {
		return nil, fmt.Errorf("sheetRange must not be empty")
	}

	values, err := r.values.Get(ctx, r.spreadsheetID, r.sheetRange)
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", r.sheetRange, err)
	}

	rows := make([][]string, 0, len(values))
	for _, value := range values {
		row := make([]string, len(value))
		for i, cell := range value {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type serviceValues struct {
	svc *sheetsapi.SpreadsheetsValuesService
}

func (s *serviceValues) Append(ctx context.Context, spreadsheetID, sheetRange string, rows [][]interface{}) error {
	payload := &sheetsapi.ValueRange{Values: rows}
	_, err := s.svc.Append(spreadsheetID, sheetRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (s *serviceValues) Get(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error) {
	resp, err := s.svc.Get(spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}
