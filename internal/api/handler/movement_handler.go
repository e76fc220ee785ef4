package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/api/dto"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/movement"
)

// ListMovements handles GET /api/v1/movements
// Browses movement history newest-first with keyset pagination.
func (h *MovementHandler) ListMovements(c *gin.Context) {
	var req dto.ListMovementsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	start, end, err := movement.DateBounds(req.DateFrom, req.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	cursor, err := DecodeMovementCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := &movement.Filter{
		Query:     req.Query,
		Type:      req.Type,
		Yard:      req.Yard,
		DateStart: start,
		DateEnd:   end,
		HasDamage: req.HasDamage,
		HasSeal:   req.HasSeal,
	}

	records, err := h.store.ListMovements(c.Request.Context(), filter, movement.ListOptions{
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list movements", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list movements",
		})
		return
	}

	// The store fetches one extra record to detect another page
	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	movements := make([]dto.MovementDTO, len(records))
	for i := range records {
		movements[i] = toMovementDTO(&records[i])
	}

	var nextCursor string
	if hasMore {
		last := records[len(records)-1]
		nextCursor = EncodeMovementCursor(&movement.ListCursor{
			EventAt:    last.EventAt,
			MovementID: last.MovementID,
		})
	}

	c.JSON(http.StatusOK, dto.ListMovementsResponse{
		Movements:  movements,
		NextCursor: nextCursor,
	})
}

// LogMovement handles POST /api/v1/movements
// Records a guard-logged trailer event with optional photos.
func (h *MovementHandler) LogMovement(c *gin.Context) {
	var req dto.LogMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	movementType := strings.ToUpper(strings.TrimSpace(req.Type))
	if !movement.ValidType(movementType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "type must be one of IN, OUT, INSPECTION",
		})
		return
	}

	eventAt := time.Now()
	if req.EventAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.EventAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "eventAt must be RFC3339",
			})
			return
		}
		eventAt = parsed
	}

	rec := &movement.Record{
		MovementID:    uuid.New().String(),
		EventAt:       eventAt,
		MovementType:  movementType,
		TrailerNumber: req.TrailerNumber,
		YardCode:      req.Yard,
		Carrier:       req.Carrier,
		DriverName:    req.DriverName,
		TruckNumber:   req.TruckNumber,
		Loaded:        req.Loaded,
		SealNumber:    req.SealNumber,
		DockDoor:      req.DockDoor,
		Notes:         req.Notes,
	}

	photos := make([]movement.Photo, len(req.Photos))
	for i, p := range req.Photos {
		kind := strings.ToUpper(strings.TrimSpace(p.Kind))
		if kind == "" {
			kind = movement.PhotoKindGeneral
		}
		if kind == movement.PhotoKindDamage {
			rec.Damaged = true
		}
		photos[i] = movement.Photo{
			MovementID: rec.MovementID,
			Kind:       kind,
			URL:        p.URL,
		}
	}

	if err := h.store.InsertMovement(c.Request.Context(), rec, photos); err != nil {
		h.logger.Error("Failed to insert movement",
			slog.String("movement_id", rec.MovementID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to log movement",
		})
		return
	}

	h.logger.Info("Movement logged",
		slog.String("movement_id", rec.MovementID),
		slog.String("type", rec.MovementType),
		slog.String("trailer", rec.TrailerNumber),
		slog.String("yard", rec.YardCode),
	)

	c.JSON(http.StatusCreated, toMovementDTO(rec))
}

func toMovementDTO(rec *movement.Record) dto.MovementDTO {
	return dto.MovementDTO{
		MovementID:    rec.MovementID,
		EventAt:       rec.EventAt.In(movement.Location()).Format(time.RFC3339),
		Type:          rec.MovementType,
		TrailerNumber: rec.TrailerNumber,
		Yard:          rec.YardCode,
		Carrier:       rec.Carrier,
		DriverName:    rec.DriverName,
		TruckNumber:   rec.TruckNumber,
		Loaded:        rec.Loaded,
		SealNumber:    rec.SealNumber,
		DockDoor:      rec.DockDoor,
		Notes:         rec.Notes,
		Damaged:       rec.Damaged,
	}
}
