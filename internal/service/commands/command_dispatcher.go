package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/domain/models"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

const usage = "Commands:\n" +
	"/prod <date> <machine> <shift> <total> <defective>\n" +
	"  e.g. /prod 2024-01-01 M1 Manhã 120 3\n" +
	"/report for the production summary."

// LedgerAppender is the ledger operation the dispatcher needs.
type LedgerAppender interface {
	Append(ctx context.Context, record models.ProductionRecord) ([]models.ProductionRecord, error)
}

// ReportingAdapter defines the reporting functions required by the dispatcher.
type ReportingAdapter interface {
	Summary(ctx context.Context) (string, error)
}

// Dispatcher executes parsed commands and returns the reply text.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	ledger    LedgerAppender
	reporting ReportingAdapter
	logger    *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(ledger LedgerAppender, reporting ReportingAdapter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:    ledger,
		reporting: reporting,
		logger:    logger,
	}
}

// HandleCommand runs cmd. Validation problems are answered with a warning
// reply rather than an error, since the operator can correct them.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	switch cmd.Type {
	case models.CommandProduction:
		record, err := buildRecord(cmd.Args)
		if err != nil {
			return "Could not read the record.\n" + usage, nil
		}

		recent, err := s.ledger.Append(ctx, record)
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return "Warning: " + validationErr.Error() + ".", nil
		}
		if err != nil {
			return "", err
		}

		message := fmt.Sprintf("Record saved: %s %s %s, %d pieces (%d defective).",
			record.Date, record.Machine, record.Shift, record.TotalPieces, record.DefectivePieces)
		if eff, ok := record.Efficiency(); ok {
			message += fmt.Sprintf(" Efficiency %.2f%%.", eff*100)
		}
		message += fmt.Sprintf(" Showing %d latest records.", len(recent))
		return message, nil
	case models.CommandReport:
		if s.reporting == nil {
			return "Reporting is not available.", nil
		}
		return s.reporting.Summary(ctx)
	default:
		return usage, nil
	}
}

// buildRecord parses "<date> <machine...> <shift> <total> <defective>".
// Machine names may contain spaces, so the shift is located from the end.
func buildRecord(args []string) (models.ProductionRecord, error) {
	if len(args) < 5 {
		return models.ProductionRecord{}, ErrInvalidArguments
	}

	n := len(args)
	total, err := strconv.Atoi(args[n-2])
	if err != nil {
		return models.ProductionRecord{}, ErrInvalidArguments
	}
	defective, err := strconv.Atoi(args[n-1])
	if err != nil {
		return models.ProductionRecord{}, ErrInvalidArguments
	}

	shift, ok := models.ParseShift(args[n-3])
	if !ok {
		return models.ProductionRecord{}, ErrInvalidArguments
	}

	return models.ProductionRecord{
		Date:            args[0],
		Machine:         strings.Join(args[1:n-3], " "),
		Shift:           shift,
		TotalPieces:     total,
		DefectivePieces: defective,
	}, nil
}
