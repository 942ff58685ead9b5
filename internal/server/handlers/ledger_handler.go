package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/domain/models"
)

// maxUploadBytes bounds CSV uploads.
const maxUploadBytes = 10 << 20

// LedgerService is the ledger surface exposed over HTTP.
type LedgerService interface {
	Append(ctx context.Context, record models.ProductionRecord) ([]models.ProductionRecord, error)
	Import(ctx context.Context, r io.Reader) (int, error)
	ImportSheet(ctx context.Context) (int, error)
	ExportFile(ctx context.Context, name string) (string, error)
	Recent(n int) []models.ProductionRecord
}

// MetricsService computes ledger metrics and serves stored snapshots.
type MetricsService interface {
	Metrics() (models.Metrics, error)
	History(ctx context.Context, limit int) ([]models.MetricsSnapshot, error)
}

// LedgerHandler adapts the production ledger to HTTP.
type LedgerHandler struct {
	ledger  LedgerService
	metrics MetricsService
	logger  *zap.Logger
}

// NewLedgerHandler constructs the HTTP handler adapter.
func NewLedgerHandler(ledger LedgerService, metrics MetricsService, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandler{ledger: ledger, metrics: metrics, logger: logger}
}

// List returns the ledger, or its last `limit` records.
func (h *LedgerHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	records := h.ledger.Recent(limit)
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

// Append creates a record from the JSON body.
func (h *LedgerHandler) Append(c *gin.Context) {
	var req models.AppendRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid record payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	record, err := req.ToRecord()
	if err == nil {
		var recent []models.ProductionRecord
		recent, err = h.ledger.Append(c.Request.Context(), record)
		if err == nil {
			c.JSON(http.StatusCreated, gin.H{"status": "created", "recent": recent})
			return
		}
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status":  "warning",
			"warning": validationErr.Error(),
			"missing": validationErr.Missing,
			"invalid": validationErr.Invalid,
		})
		return
	}

	h.logger.Error("failed appending record", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to store record"})
}

// Upload replaces the ledger with an uploaded CSV file (multipart field "file").
func (h *LedgerHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("failed opening upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to read upload"})
		return
	}
	defer file.Close()

	n, err := h.ledger.Import(c.Request.Context(), file)
	if err != nil {
		h.respondImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "imported", "records": n, "filename": fileHeader.Filename})
}

// ImportSheet replaces the ledger with the configured Google Sheet.
func (h *LedgerHandler) ImportSheet(c *gin.Context) {
	n, err := h.ledger.ImportSheet(c.Request.Context())
	if err != nil {
		if errors.Is(err, models.ErrSheetsDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			return
		}
		h.respondImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "imported", "records": n})
}

func (h *LedgerHandler) respondImportError(c *gin.Context, err error) {
	var formatErr *models.FormatError
	if errors.As(err, &formatErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatErr.Error(), "line": formatErr.Line})
		return
	}

	h.logger.Error("failed importing ledger", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to import ledger"})
}

// Metrics returns the aggregate metrics, or an explicit no-data status.
func (h *LedgerHandler) Metrics(c *gin.Context) {
	metrics, err := h.metrics.Metrics()
	if errors.Is(err, models.ErrNoData) {
		c.JSON(http.StatusOK, gin.H{"status": "no_data"})
		return
	}
	if err != nil {
		h.logger.Error("failed computing metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to compute metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "metrics": metrics})
}

// Export writes the ledger to the requested file name inside the ledger directory.
func (h *LedgerHandler) Export(c *gin.Context) {
	var req models.ExportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	path, err := h.ledger.ExportFile(c.Request.Context(), req.Filename)
	if errors.Is(err, models.ErrInvalidFilename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed exporting ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to export ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "exported", "path": path})
}

// History returns stored metrics snapshots, newest first.
func (h *LedgerHandler) History(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	snapshots, err := h.metrics.History(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, models.ErrSnapshotsDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed loading snapshots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to load snapshots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(snapshots), "snapshots": snapshots})
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
