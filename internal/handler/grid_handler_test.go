package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type gridServiceMock struct {
	opts   service.GridOptions
	hit    bool
	layout service.LayoutRequest
}

func (m *gridServiceMock) Week(ctx context.Context, groupID string, opts service.GridOptions) (*models.WeeklyGrid, bool, error) {
	m.opts = opts
	return &models.WeeklyGrid{GroupID: groupID, GridHeightPx: 480}, m.hit, nil
}

func (m *gridServiceMock) Layout(req service.LayoutRequest) (models.LayoutResult, error) {
	m.layout = req
	return models.LayoutResult{TopOffsetPx: 120, HeightPx: 60}, nil
}

type exportServiceMock struct {
	format service.ExportFormat
	err    error
}

func (m *exportServiceMock) Export(ctx context.Context, groupID string, format service.ExportFormat, locale string) (*service.ExportFile, error) {
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "timetable_" + groupID + ".csv", ContentType: "text/csv", Data: []byte("weekday\n")}, nil
}

func newGridRouter(grids *gridServiceMock, exports *exportServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewGridHandler(grids, exports)
	r := gin.New()
	r.GET("/groups/:groupId/schedules/grid", h.Week)
	r.GET("/groups/:groupId/schedules/export", h.Export)
	r.POST("/schedules/layout", h.Layout)
	r.GET("/weekdays", h.Weekdays)
	return r
}

func TestGridHandlerWeek(t *testing.T) {
	grids := &gridServiceMock{hit: true}
	r := newGridRouter(grids, &exportServiceMock{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups/g-1/schedules/grid?minContentHeight=48&lang=id", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, grids.opts.ContentMinHeightPx)
	assert.Equal(t, 48.0, *grids.opts.ContentMinHeightPx)
	assert.Equal(t, "id", grids.opts.Locale)
	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
	assert.Equal(t, "g-1", body["data"].(map[string]interface{})["groupId"])
}

func TestGridHandlerWeekRejectsBadHeight(t *testing.T) {
	r := newGridRouter(&gridServiceMock{}, &exportServiceMock{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups/g-1/schedules/grid?minContentHeight=tall", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGridHandlerLayout(t *testing.T) {
	grids := &gridServiceMock{}
	r := newGridRouter(grids, &exportServiceMock{})

	body := []byte(`{"startTime":"09:00","endTime":"10:00","grid":{"firstSlotStart":"07:00","lastSlotEnd":"15:00","pixelsPerHour":60},"contentMinHeightPx":30}`)
	req := httptest.NewRequest(http.MethodPost, "/schedules/layout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, grids.layout.Grid)
	assert.Equal(t, 60.0, grids.layout.Grid.PixelsPerHour)
	assert.Equal(t, 30.0, grids.layout.ContentMinHeightPx)
	assert.Equal(t, 120.0, decodeEnvelope(t, w)["data"].(map[string]interface{})["topOffsetPx"])
}

func TestGridHandlerExport(t *testing.T) {
	exports := &exportServiceMock{}
	r := newGridRouter(&gridServiceMock{}, exports)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups/g-1/schedules/export?format=csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportFormatCSV, exports.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable_g-1.csv")
}

func TestGridHandlerExportDefaultsToPDFAndMapsErrors(t *testing.T) {
	exports := &exportServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")}
	r := newGridRouter(&gridServiceMock{}, exports)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups/g-1/schedules/export", nil))
	assert.Equal(t, service.ExportFormatPDF, exports.format)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGridHandlerWeekdays(t *testing.T) {
	r := newGridRouter(&gridServiceMock{}, &exportServiceMock{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weekdays?lang=es", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	days := body["data"].([]interface{})
	require.Len(t, days, 7)
	assert.Equal(t, "Domingo", days[0].(map[string]interface{})["name"])
	assert.Equal(t, []interface{}{"en", "es", "id"}, body["meta"].(map[string]interface{})["locales"])
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return appErrors.ErrInternal },
	})
	r := gin.New()
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}
