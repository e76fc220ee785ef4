package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/api/dto"
	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/movement"
)

type fakeMovementStore struct {
	records   []movement.Record
	listErr   error
	gotFilter *movement.Filter
	gotOpts   movement.ListOptions
	inserted  *movement.Record
	insPhotos []movement.Photo
	insertErr error
	insertCnt int
}

func (f *fakeMovementStore) ListMovements(_ context.Context, filter *movement.Filter, opts movement.ListOptions) ([]movement.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.gotFilter = filter
	f.gotOpts = opts

	// Serve PageSize+1 records when available, like the SQL store
	n := opts.PageSize + 1
	if n > len(f.records) {
		n = len(f.records)
	}
	return append([]movement.Record(nil), f.records[:n]...), nil
}

func (f *fakeMovementStore) InsertMovement(_ context.Context, rec *movement.Record, photos []movement.Photo) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = rec
	f.insPhotos = photos
	f.insertCnt++
	return nil
}

func newMovementTestRouter(store MovementStore) *gin.Engine {
	deps := &Dependencies{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Movements: store,
	}

	r := gin.New()
	h := NewMovementHandler(deps)
	r.GET("/api/v1/movements", h.ListMovements)
	r.POST("/api/v1/movements", h.LogMovement)
	return r
}

func browseRecords(n int) []movement.Record {
	recs := make([]movement.Record, n)
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	for i := range recs {
		recs[i] = movement.Record{
			MovementID:    uuid.New().String(),
			EventAt:       base.Add(-time.Duration(i) * time.Hour),
			MovementType:  movement.TypeIn,
			TrailerNumber: "T-1",
			YardCode:      "MIL",
		}
	}
	return recs
}

func TestListMovementsPagination(t *testing.T) {
	store := &fakeMovementStore{records: browseRecords(5)}
	r := newMovementTestRouter(store)

	w := getPath(r, "/api/v1/movements?pageSize=2&yard=MIL")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.ListMovementsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Movements, 2)
	require.NotEmpty(t, resp.NextCursor, "more records exist, so a cursor is returned")

	assert.Equal(t, "MIL", store.gotFilter.Yard)
	assert.Equal(t, 2, store.gotOpts.PageSize)
	assert.Nil(t, store.gotOpts.Cursor)

	// The cursor points at the last returned record
	cursor, err := DecodeMovementCursor(resp.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, store.records[1].MovementID, cursor.MovementID)
	assert.True(t, cursor.EventAt.Equal(store.records[1].EventAt))

	// Following the cursor hands the keyset position to the store
	w = getPath(r, "/api/v1/movements?pageSize=2&cursor="+resp.NextCursor)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.gotOpts.Cursor)
	assert.Equal(t, store.records[1].MovementID, store.gotOpts.Cursor.MovementID)
}

func TestListMovementsLastPageHasNoCursor(t *testing.T) {
	store := &fakeMovementStore{records: browseRecords(2)}
	r := newMovementTestRouter(store)

	w := getPath(r, "/api/v1/movements?pageSize=5")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListMovementsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Movements, 2)
	assert.Empty(t, resp.NextCursor)
}

func TestListMovementsPageSizeBounds(t *testing.T) {
	store := &fakeMovementStore{}
	r := newMovementTestRouter(store)

	w := getPath(r, "/api/v1/movements")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, store.gotOpts.PageSize, "default page size")

	w = getPath(r, "/api/v1/movements?pageSize=500")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, store.gotOpts.PageSize, "page size is capped")
}

func TestListMovementsRejectsBadCursor(t *testing.T) {
	r := newMovementTestRouter(&fakeMovementStore{})

	w := getPath(r, "/api/v1/movements?cursor=%21%21not-base64")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid cursor")
}

func TestListMovementsRejectsMalformedDate(t *testing.T) {
	r := newMovementTestRouter(&fakeMovementStore{})

	w := getPath(r, "/api/v1/movements?dateFrom=yesterday")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
}

func TestListMovementsStoreFailure(t *testing.T) {
	r := newMovementTestRouter(&fakeMovementStore{listErr: errors.New("db down")})

	w := getPath(r, "/api/v1/movements")
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogMovement(t *testing.T) {
	store := &fakeMovementStore{}
	r := newMovementTestRouter(store)

	w := postJSON(r, "/api/v1/movements", `{
		"trailerNumber": "T-1441",
		"type": "in",
		"yard": "MIL",
		"eventAt": "2025-06-10T14:30:00-04:00",
		"carrier": "ACME Freight",
		"loaded": true,
		"sealNumber": "S-2201",
		"photos": [
			{"url": "https://photos.local/1.jpg"},
			{"kind": "damage", "url": "https://photos.local/2.jpg"}
		]
	}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NotNil(t, store.inserted)
	_, err := uuid.Parse(store.inserted.MovementID)
	require.NoError(t, err)
	assert.Equal(t, movement.TypeIn, store.inserted.MovementType, "type is upper-cased")
	assert.Equal(t, "T-1441", store.inserted.TrailerNumber)
	assert.True(t, store.inserted.Loaded)

	require.Len(t, store.insPhotos, 2)
	assert.Equal(t, movement.PhotoKindGeneral, store.insPhotos[0].Kind, "missing kind defaults to GENERAL")
	assert.Equal(t, movement.PhotoKindDamage, store.insPhotos[1].Kind)
	assert.Equal(t, store.inserted.MovementID, store.insPhotos[0].MovementID)

	var resp dto.MovementDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, store.inserted.MovementID, resp.MovementID)
	assert.True(t, resp.Damaged, "a DAMAGE photo marks the record damaged")
	assert.Equal(t, "2025-06-10T14:30:00-04:00", resp.EventAt, "event time renders in the canonical zone")
}

func TestLogMovementDefaultsEventTime(t *testing.T) {
	store := &fakeMovementStore{}
	r := newMovementTestRouter(store)

	before := time.Now()
	w := postJSON(r, "/api/v1/movements", `{"trailerNumber": "T-2", "type": "OUT", "yard": "MIL"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NotNil(t, store.inserted)
	assert.False(t, store.inserted.EventAt.Before(before))
	assert.False(t, store.inserted.EventAt.After(time.Now()))
}

func TestLogMovementRejectsUnknownType(t *testing.T) {
	store := &fakeMovementStore{}
	r := newMovementTestRouter(store)

	w := postJSON(r, "/api/v1/movements", `{"trailerNumber": "T-2", "type": "PARKED", "yard": "MIL"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "IN, OUT, INSPECTION")
	assert.Zero(t, store.insertCnt)
}

func TestLogMovementRequiresTrailer(t *testing.T) {
	r := newMovementTestRouter(&fakeMovementStore{})

	w := postJSON(r, "/api/v1/movements", `{"type": "IN", "yard": "MIL"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogMovementRejectsBadEventTime(t *testing.T) {
	r := newMovementTestRouter(&fakeMovementStore{})

	w := postJSON(r, "/api/v1/movements", `{"trailerNumber": "T-2", "type": "IN", "yard": "MIL", "eventAt": "June 10"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RFC3339")
}
