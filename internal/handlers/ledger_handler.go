package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/export"
	"dayledger/internal/ledger"
	"dayledger/internal/middleware"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

// LedgerHandler exposes the ledger core over HTTP. It only binds DTOs
// and delegates; validation of individual items is the core's silent
// drop rule, not a request failure.
type LedgerHandler struct {
	svc      *ledger.Service
	exporter *export.Engine
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *ledger.Service, exporter *export.Engine) *LedgerHandler {
	return &LedgerHandler{svc: svc, exporter: exporter}
}

type submitItem struct {
	Kind   string `json:"kind" binding:"required,transaction_kind"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type submitRequest struct {
	Date  string       `json:"date"`
	Items []submitItem `json:"items" binding:"dive"`
}

// Submit persists a batch of line items and returns the day's result.
func (h *LedgerHandler) Submit(c *gin.Context) {
	ownerID, err := middleware.OwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = parseDate(req.Date)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid date"))
			return
		}
	}

	items := make([]storage.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, storage.Item{
			Kind:   models.TransactionKind(it.Kind),
			Name:   it.Name,
			Amount: it.Amount,
		})
	}

	result, err := h.svc.Submit(c.Request.Context(), ownerID, date, items)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// History returns the owner's daily summaries, newest input last.
func (h *LedgerHandler) History(c *gin.Context) {
	ownerID, err := middleware.OwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rng, err := parseRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summaries, err := h.svc.History(c.Request.Context(), ownerID, rng)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

// Transactions returns the owner's raw line items.
func (h *LedgerHandler) Transactions(c *gin.Context) {
	ownerID, err := middleware.OwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rng, err := parseRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txs, err := h.svc.Transactions(c.Request.Context(), ownerID, rng)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type updateRequest struct {
	Description *string `json:"description"`
	Amount      *int64  `json:"amount"`
}

// UpdateTransaction edits description and/or amount of an owned transaction.
func (h *LedgerHandler) UpdateTransaction(c *gin.Context) {
	ownerID, err := middleware.OwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}

	upd := storage.Update{Description: req.Description, Amount: req.Amount}
	if err := h.svc.UpdateTransaction(c.Request.Context(), id, ownerID, upd); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction updated"})
}

// DeleteTransaction removes an owned transaction.
func (h *LedgerHandler) DeleteTransaction(c *gin.Context) {
	ownerID, err := middleware.OwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.svc.DeleteTransaction(c.Request.Context(), id, ownerID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

// ExportCSV streams the owner's snapshot; 204 when there is nothing to export.
func (h *LedgerHandler) ExportCSV(c *gin.Context) {
	ownerID, err := middleware.OwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"ledger_%s.csv\"",
		time.Now().Format("20060102")))

	res, err := h.exporter.Snapshot(c.Request.Context(), ownerID, c.Writer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if res.NoOp {
		c.Status(http.StatusNoContent)
	}
}

// DeleteAccount removes the owner and everything they recorded.
func (h *LedgerHandler) DeleteAccount(c *gin.Context) {
	ownerID, err := middleware.OwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.svc.DeleteOwner(c.Request.Context(), ownerID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

// parseDate accepts a second-precision timestamp or a bare day.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(models.TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(models.BucketLayout, s)
}

// parseRange reads optional from/to day query parameters; to is
// inclusive of the whole day.
func parseRange(c *gin.Context) (*storage.DateRange, error) {
	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr == "" && toStr == "" {
		return nil, nil
	}
	rng := &storage.DateRange{}
	if fromStr != "" {
		from, err := time.Parse(models.BucketLayout, fromStr)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid from date")
		}
		rng.From = &from
	}
	if toStr != "" {
		to, err := time.Parse(models.BucketLayout, toStr)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid to date")
		}
		end := to.Add(24*time.Hour - time.Second)
		rng.To = &end
	}
	return rng, nil
}
