package csvstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/domain/models"
)

// DefaultPath is the canonical ledger file in the working directory.
const DefaultPath = "dados.csv"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Repository defines the persistence contract of the production ledger.
type Repository interface {
	Path() string
	Load(ctx context.Context) ([]models.ProductionRecord, error)
	Save(ctx context.Context, records []models.ProductionRecord) error
	Export(ctx context.Context, filename string, records []models.ProductionRecord) (string, error)
	SetAside(ctx context.Context) (string, error)
}

// FileStore keeps the ledger as a CSV file on the local filesystem.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore builds a file backed store. An empty path selects DefaultPath.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the canonical ledger location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the canonical file. A missing file is an empty ledger.
func (s *FileStore) Load(ctx context.Context) ([]models.ProductionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("ledger file not found, starting empty", zap.String("path", s.path))
			return []models.ProductionRecord{}, nil
		}
		return nil, fmt.Errorf("open ledger %s: %w", s.path, err)
	}
	defer file.Close()

	records, err := Decode(file)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("ledger loaded", zap.String("path", s.path), zap.Int("records", len(records)))
	return records, nil
}

// Save rewrites the canonical file with the full ledger.
func (s *FileStore) Save(ctx context.Context, records []models.ProductionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeFile(s.path, records); err != nil {
		return err
	}
	s.logger.Debug("ledger saved", zap.String("path", s.path), zap.Int("records", len(records)))
	return nil
}

// Export writes the ledger to filename using the canonical layout and returns
// the path written. An empty filename targets the canonical file.
func (s *FileStore) Export(ctx context.Context, filename string, records []models.ProductionRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := strings.TrimSpace(filename)
	if target == "" {
		target = s.path
	}

	if err := writeFile(target, records); err != nil {
		return "", err
	}

	s.logger.Info("ledger exported", zap.String("path", target), zap.Int("records", len(records)))
	return target, nil
}

// SetAside renames the canonical file to a timestamped ".corrupt" sibling and
// returns the new path. The next Save starts a fresh file.
func (s *FileStore) SetAside(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	aside := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(s.path, aside); err != nil {
		return "", fmt.Errorf("set aside ledger %s: %w", s.path, err)
	}

	s.logger.Warn("ledger file set aside", zap.String("path", s.path), zap.String("aside", aside))
	return aside, nil
}

// defaultFileMode applies to ledger files that do not exist yet.
const defaultFileMode os.FileMode = 0o644

// writeFile replaces path atomically: the ledger is written to a sibling temp
// file which is then renamed over the target. An existing file keeps its mode.
func writeFile(path string, records []models.ProductionRecord) error {
	mode := defaultFileMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod ledger %s: %w", path, err)
	}

	writer := bufio.NewWriter(tmp)
	if err := Encode(writer, records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode ledger %s: %w", path, err)
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close ledger %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger %s: %w", path, err)
	}
	return nil
}

// Encode writes the header followed by one row per record.
func Encode(w io.Writer, records []models.ProductionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(models.LedgerHeader); err != nil {
		return err
	}
	for _, record := range records {
		row := []string{
			record.Date,
			record.Machine,
			record.Shift.Label(),
			strconv.Itoa(record.TotalPieces),
			strconv.Itoa(record.DefectivePieces),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Decode parses a ledger CSV stream. Any structural or typing fault is a
// *models.FormatError.
func Decode(r io.Reader) ([]models.ProductionRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ledger csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, &models.FormatError{Line: parseErr.Line, Err: parseErr.Err}
		}
		return nil, &models.FormatError{Err: err}
	}

	return DecodeRows(rows)
}

// DecodeRows validates already split rows. rows[0] must be the header.
func DecodeRows(rows [][]string) ([]models.ProductionRecord, error) {
	if len(rows) == 0 {
		return nil, &models.FormatError{Line: 1, Reason: "missing header"}
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	records := make([]models.ProductionRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		record, err := parseRow(row, line)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func checkHeader(header []string) error {
	if len(header) != len(models.LedgerHeader) {
		return &models.FormatError{
			Line:   1,
			Reason: fmt.Sprintf("expected %d header columns, got %d", len(models.LedgerHeader), len(header)),
		}
	}
	for i, want := range models.LedgerHeader {
		if strings.TrimSpace(header[i]) != want {
			return &models.FormatError{
				Line:   1,
				Reason: fmt.Sprintf("header column %d is %q, expected %q", i+1, header[i], want),
			}
		}
	}
	return nil
}

func parseRow(row []string, line int) (models.ProductionRecord, error) {
	if len(row) != len(models.LedgerHeader) {
		return models.ProductionRecord{}, &models.FormatError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(models.LedgerHeader), len(row)),
		}
	}

	shift, ok := models.ParseShift(row[2])
	if !ok || shift == models.ShiftUnset {
		return models.ProductionRecord{}, &models.FormatError{Line: line, Reason: fmt.Sprintf("unknown shift %q", row[2])}
	}

	total, err := parseCount(row[3])
	if err != nil {
		return models.ProductionRecord{}, &models.FormatError{Line: line, Reason: "total pieces", Err: err}
	}
	defective, err := parseCount(row[4])
	if err != nil {
		return models.ProductionRecord{}, &models.FormatError{Line: line, Reason: "defective pieces", Err: err}
	}

	return models.ProductionRecord{
		Date:            strings.TrimSpace(row[0]),
		Machine:         strings.TrimSpace(row[1]),
		Shift:           shift,
		TotalPieces:     total,
		DefectivePieces: defective,
	}, nil
}

// parseCount accepts integers and integral floats such as "80.0", which
// spreadsheet exports produce for numeric columns.
func parseCount(value string) (int, error) {
	str := strings.TrimSpace(value)
	if str == "" {
		return 0, fmt.Errorf("empty numeric value")
	}

	n, err := strconv.Atoi(str)
	if err != nil {
		f, ferr := strconv.ParseFloat(str, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%q is not an integer", str)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return n, nil
}

func isBlank(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
