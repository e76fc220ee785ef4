package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/api/dto"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/export"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/movement"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/status"
)

// SubmitExport handles POST /api/v1/exports
// Validates the request, writes the PENDING status record, and enqueues
// the job. The client gets 202 immediately and polls for progress.
func (h *ExportHandler) SubmitExport(c *gin.Context) {
	var req dto.SubmitExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	columns, err := export.ParseColumns(req.Columns)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	// Reject malformed dates here; the worker trusts the message
	if _, _, err := movement.DateBounds(req.DateFrom, req.DateTo); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	exportReq := &export.Request{
		Query:     req.Query,
		Type:      req.Type,
		Yard:      req.Yard,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		HasDamage: req.HasDamage,
		HasSeal:   req.HasSeal,
		Sort:      req.Sort,
		Dir:       req.Dir,
		Format:    format,
		Columns:   columns,
		FileName:  req.FileName,
		Page:      req.Page,
		Limit:     req.Limit,
	}

	jobID := uuid.New().String()
	job := export.NewJob(jobID, exportReq, time.Now())

	// Status record first: a poll arriving before the worker picks the
	// job up must already see PENDING
	if err := h.status.Put(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to write status record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create export job",
		})
		return
	}

	body, err := json.Marshal(export.Message{JobID: jobID, Request: exportReq})
	if err != nil {
		h.logger.Error("Failed to marshal job message",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create export job",
		})
		return
	}

	// A publish failure leaves the PENDING record behind; it never
	// progresses and is harmless
	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish job message",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue export job",
		})
		return
	}

	h.logger.Info("Export job accepted",
		slog.String("job_id", jobID),
		slog.String("format", string(format)),
	)

	c.JSON(http.StatusAccepted, dto.SubmitExportResponse{
		JobID:     jobID,
		StatusURL: "/api/v1/exports/" + jobID + "/status",
	})
}

// GetExportStatus handles GET /api/v1/exports/:job_id/status
// Returns the status record verbatim; polling has no side effects.
func (h *ExportHandler) GetExportStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.status.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "export job not found",
			})
			return
		}
		h.logger.Error("Failed to load status record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get export status",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}
