package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/service"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := config.New()
	cfg.Climate.DisableAPI = true
	// 测试环境没有redis，缓存路径静默降级
	cfg.Redis.Addr = "localhost:1"

	redisService := service.NewRedisService(&cfg.Redis)
	climate := service.NewClimateService(&cfg.Climate)
	materials := service.NewMaterialStore(&cfg.Materials)
	analysis := service.NewAnalysisService(&cfg.Engine, service.NewMockSegmenter(), climate, materials)

	h := NewAnalyzeHandler(cfg, redisService, analysis)

	r := gin.New()
	r.POST("/api/v1/analyze", h.Analyze)
	r.GET("/api/v1/analysis/:id", h.GetByID)
	return r
}

func grayPNG(t *testing.T, w, h int, v uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// buildRequest 组装multipart分析请求
func buildRequest(t *testing.T, fields map[string]string, rgb, thermal []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	addFile := func(field string, data []byte) {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+field+`.png"`)
		hdr.Set("Content-Type", "image/png")
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if rgb != nil {
		addFile("rgb_image", rgb)
	}
	if thermal != nil {
		addFile("thermal_image", thermal)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"city":                   "Salamanca",
		"country":                "Spain",
		"facade_area_m2":         "100",
		"fuel_price_eur_per_kwh": "0.25",
		"heating_base_temp_c":    "13",
		"t_inside_c":             "22",
		"t_outside_c":            "5",
		"thermal_min_c":          "15",
		"thermal_max_c":          "16",
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := buildRequest(t, validFields(), grayPNG(t, 64, 64, 128), grayPNG(t, 64, 64, 0))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	require.Greater(t, resp.Data.Headline.EstimatedAnnualHeatLossKWh, 0.0)
	require.Len(t, resp.Data.Components, 3)
	require.NotEmpty(t, resp.Data.Meta.AnalysisID)
}

func TestAnalyzeEndpointMissingField(t *testing.T) {
	r := newTestRouter(t)

	fields := validFields()
	delete(fields, "facade_area_m2")
	req := buildRequest(t, fields, grayPNG(t, 8, 8, 128), grayPNG(t, 8, 8, 0))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "facade_area_m2")
}

func TestAnalyzeEndpointMissingImage(t *testing.T) {
	r := newTestRouter(t)

	req := buildRequest(t, validFields(), nil, grayPNG(t, 8, 8, 0))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointClimateUnavailableStillSucceeds(t *testing.T) {
	r := newTestRouter(t)

	fields := validFields()
	fields["city"] = "Atlantis"
	fields["country"] = "Nowhere"
	req := buildRequest(t, fields, grayPNG(t, 64, 64, 128), grayPNG(t, 64, 64, 0))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "unavailable", resp.Data.Meta.DegreeHoursSource)
	require.NotZero(t, resp.Data.Totals.InstantaneousW)
	require.Zero(t, resp.Data.Totals.AnnualKWhDeltaT)
}

func TestGetByIDNotCached(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/deadbeef00", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// redis不可用表现为查询失败而非假命中
	require.NotEqual(t, http.StatusOK, rec.Code)
}
