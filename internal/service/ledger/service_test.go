package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/prodledger/internal/domain/models"
	"github.com/mamadbah2/prodledger/internal/repository/csvstore"
)

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) AppendRecord(ctx context.Context, record models.ProductionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockMirror) ReadRows(ctx context.Context) ([][]string, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([][]string)
	return rows, args.Error(1)
}

type failingStore struct {
	csvstore.Repository
}

func (failingStore) Save(context.Context, []models.ProductionRecord) error {
	return errors.New("disk full")
}

func newTestService(t *testing.T, opts ...Option) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dados.csv")
	svc := NewService(csvstore.NewFileStore(path, nil), nil, opts...)
	require.NoError(t, svc.Load(context.Background()))
	return svc, path
}

func record(machine string, shift models.Shift, total, defective int) models.ProductionRecord {
	return models.ProductionRecord{Date: "2024-01-01", Machine: machine, Shift: shift, TotalPieces: total, DefectivePieces: defective}
}

func TestLoadWithoutFileStartsEmpty(t *testing.T) {
	svc, path := newTestService(t)

	assert.Equal(t, 0, svc.Len())
	assert.Empty(t, svc.Records())
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "loading must not create the file")
}

func TestAppendIsOrderPreservingAndPersisted(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	previous := []models.ProductionRecord{}
	for i, machine := range []string{"M1", "M2", "M1", "M3"} {
		_, err := svc.Append(ctx, record(machine, models.ShiftNight, 100+i, i))
		require.NoError(t, err)

		current := svc.Records()
		require.Len(t, current, len(previous)+1)
		assert.Equal(t, previous, current[:len(current)-1])
		previous = current
	}

	reloaded := NewService(csvstore.NewFileStore(path, nil), nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, svc.Records(), reloaded.Records())
}

func TestAppendReturnsRecentRecords(t *testing.T) {
	svc, _ := newTestService(t, WithRecentLimit(2))
	ctx := context.Background()

	for _, machine := range []string{"M1", "M2", "M3"} {
		_, err := svc.Append(ctx, record(machine, models.ShiftMorning, 90, 0))
		require.NoError(t, err)
	}

	recent, err := svc.Append(ctx, record("M4", models.ShiftMorning, 90, 0))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "M3", recent[0].Machine)
	assert.Equal(t, "M4", recent[1].Machine)
}

func TestAppendSingleRecordToEmptyLedger(t *testing.T) {
	svc, _ := newTestService(t)

	recent, err := svc.Append(context.Background(), models.ProductionRecord{
		Date: "2024-01-01", Machine: "M1", Shift: models.ShiftMorning, TotalPieces: 80, DefectivePieces: 0,
	})
	require.NoError(t, err)
	require.Len(t, recent, 1)

	eff, ok := recent[0].Efficiency()
	require.True(t, ok)
	assert.Equal(t, 1.0, eff)
}

func TestAppendValidation(t *testing.T) {
	tests := []struct {
		name    string
		record  models.ProductionRecord
		missing []string
		invalid []string
	}{
		{name: "shift unset", record: record("M1", models.ShiftUnset, 10, 0), missing: []string{"shift"}},
		{name: "empty machine", record: record("", models.ShiftMorning, 10, 0), missing: []string{"machine"}},
		{name: "blank machine", record: record("   ", models.ShiftMorning, 10, 0), missing: []string{"machine"}},
		{name: "empty date", record: models.ProductionRecord{Machine: "M1", Shift: models.ShiftNight}, missing: []string{"date"}},
		{name: "negative counts", record: record("M1", models.ShiftNight, -1, -2), invalid: []string{"total_pieces", "defective_pieces"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mirror := new(mockMirror)
			svc, path := newTestService(t, WithSheetMirror(mirror))

			recent, err := svc.Append(context.Background(), tc.record)
			require.Error(t, err)
			assert.Nil(t, recent)

			var validationErr *models.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tc.missing, validationErr.Missing)
			assert.Equal(t, tc.invalid, validationErr.Invalid)
			assert.True(t, IsUserError(err))

			assert.Equal(t, 0, svc.Len())
			_, statErr := os.Stat(path)
			assert.True(t, errors.Is(statErr, os.ErrNotExist))
			mirror.AssertNotCalled(t, "AppendRecord", mock.Anything, mock.Anything)
		})
	}
}

func TestAppendRollsBackWhenSaveFails(t *testing.T) {
	svc := NewService(failingStore{}, nil)

	_, err := svc.Append(context.Background(), record("M1", models.ShiftMorning, 100, 0))
	require.ErrorContains(t, err, "disk full")
	assert.False(t, IsUserError(err))
	assert.Equal(t, 0, svc.Len())
}

func TestAppendMirrorsToSheetBestEffort(t *testing.T) {
	mirror := new(mockMirror)
	rec := record("M1", models.ShiftAfternoon, 100, 3)
	mirror.On("AppendRecord", mock.Anything, rec).Return(errors.New("sheets unavailable")).Once()

	svc, _ := newTestService(t, WithSheetMirror(mirror))

	_, err := svc.Append(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())
	mirror.AssertExpectations(t)
}

func TestImportReplacesAndPersists(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()
	_, err := svc.Append(ctx, record("old", models.ShiftMorning, 1, 0))
	require.NoError(t, err)

	upload := "Data,Máquina,Turno,Peças Totais,Peças com defeito\n" +
		"2024-02-01,Torno 1,Manhã,120,4\n" +
		"2024-02-01,Torno 2,Noite,60,1\n"

	n, err := svc.Import(ctx, strings.NewReader(upload))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Torno 1", svc.Records()[0].Machine)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, upload, string(content))
}

func TestImportRejectsMalformedUpload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Append(ctx, record("M1", models.ShiftMorning, 100, 0))
	require.NoError(t, err)

	_, err = svc.Import(ctx, strings.NewReader("foo,bar\n1,2\n"))
	var formatErr *models.FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.True(t, IsUserError(err))
	assert.Equal(t, 1, svc.Len())
}

func TestImportSheet(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.ImportSheet(context.Background())
		assert.ErrorIs(t, err, models.ErrSheetsDisabled)
	})

	t.Run("replaces ledger", func(t *testing.T) {
		mirror := new(mockMirror)
		mirror.On("ReadRows", mock.Anything).Return([][]string{
			models.LedgerHeader,
			{"2024-03-01", "Injetora", "Tarde", "95", "2"},
		}, nil).Once()

		svc, _ := newTestService(t, WithSheetMirror(mirror))
		n, err := svc.ImportSheet(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, models.ShiftAfternoon, svc.Records()[0].Shift)
	})

	t.Run("read failure", func(t *testing.T) {
		mirror := new(mockMirror)
		mirror.On("ReadRows", mock.Anything).Return(nil, errors.New("forbidden")).Once()

		svc, _ := newTestService(t, WithSheetMirror(mirror))
		_, err := svc.ImportSheet(context.Background())
		assert.ErrorContains(t, err, "forbidden")
	})
}

func TestExportRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, r := range []models.ProductionRecord{
		record("Machine A", models.ShiftMorning, 100, 5),
		record("Machine B", models.ShiftNight, 50, 10),
		record("Machine A", models.ShiftMorning, 100, 5),
	} {
		_, err := svc.Append(ctx, r)
		require.NoError(t, err)
	}

	target := filepath.Join(t.TempDir(), "export.csv")
	path, err := svc.Export(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, target, path)

	file, err := os.Open(target)
	require.NoError(t, err)
	defer file.Close()

	records, err := csvstore.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, svc.Records(), records)
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Append(ctx, record("M", models.ShiftNight, i, 0))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, svc.Len())

	reloaded := NewService(csvstore.NewFileStore(path, nil), nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 20, reloaded.Len())
}

func TestLoadOrSetAsideRecoversFromMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dados.csv")
	corrupt := "garbage,header\n1,2\n"
	require.NoError(t, os.WriteFile(path, []byte(corrupt), 0o644))
	ctx := context.Background()

	svc := NewService(csvstore.NewFileStore(path, nil), nil)
	require.Error(t, svc.Load(ctx))

	aside, err := svc.LoadOrSetAside(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, aside)
	assert.Equal(t, 0, svc.Len())

	kept, err := os.ReadFile(aside)
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(kept))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	n, err := svc.Import(ctx, strings.NewReader(strings.Join(models.LedgerHeader, ",")+"\n2024-01-01,M1,Manhã,80,0\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reloaded := NewService(csvstore.NewFileStore(path, nil), nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []models.ProductionRecord{record("M1", models.ShiftMorning, 80, 0)}, reloaded.Records())
}

func TestLoadOrSetAsideLeavesGoodFileAlone(t *testing.T) {
	svc, path := newTestService(t)
	_, err := svc.Append(context.Background(), record("M1", models.ShiftNight, 90, 1))
	require.NoError(t, err)

	aside, err := svc.LoadOrSetAside(context.Background())
	require.NoError(t, err)
	assert.Empty(t, aside)
	assert.Equal(t, 1, svc.Len())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestExportFileStaysInLedgerDirectory(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()
	_, err := svc.Append(ctx, record("M1", models.ShiftMorning, 80, 0))
	require.NoError(t, err)

	written, err := svc.ExportFile(ctx, " relatorio.csv ")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "relatorio.csv"), written)

	written, err = svc.ExportFile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, path, written)

	for _, name := range []string{"../x.csv", "/tmp/x.csv", `dir\x.csv`, "a/b.csv", "..", "."} {
		_, err := svc.ExportFile(ctx, name)
		assert.ErrorIs(t, err, models.ErrInvalidFilename, name)
	}
}
