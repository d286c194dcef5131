package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	"github.com/anime-shed/plant-inspector-go/internal/capture"
	"github.com/anime-shed/plant-inspector-go/internal/config"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
	"github.com/anime-shed/plant-inspector-go/internal/places"
	"github.com/anime-shed/plant-inspector-go/internal/plants"
	"github.com/anime-shed/plant-inspector-go/internal/service"
	"github.com/anime-shed/plant-inspector-go/internal/session"
	"github.com/anime-shed/plant-inspector-go/internal/weather"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeScans struct {
	last service.ScanInput
	resp *models.ScanResponse
	err  error
}

func (f *fakeScans) ScanImage(_ context.Context, in service.ScanInput) (*models.ScanResponse, error) {
	f.last = in
	return f.resp, f.err
}

func (f *fakeScans) DiagnoseImage(_ context.Context, in service.ScanInput) (*models.DiagnosisResult, error) {
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.DiagnosisResult{Diagnosis: "Early blight", Language: in.Language}, nil
}

func (f *fakeScans) ValidateImageURL(string) error { return nil }

type fakeWeather struct{}

func (fakeWeather) Current(_ context.Context, city string) (*weather.Weather, error) {
	if city == "Atlantis" {
		return nil, apperrors.NewNotFoundError("city not found", nil)
	}
	return &weather.Weather{City: city, Temperature: 27.5, Humidity: 70}, nil
}

type fakePlaces struct{ query string }

func (f *fakePlaces) Name() string { return "fake" }

func (f *fakePlaces) Search(_ context.Context, query string, origin places.LatLng, _ float64) ([]places.Place, error) {
	f.query = query
	return []places.Place{{ID: "node/1", Name: "Green Nursery", Lat: origin.Lat, Lng: origin.Lng}}, nil
}

type fakeTranslate struct{ cleared bool }

func (f *fakeTranslate) Translate(_ context.Context, text, target string) models.TranslateResponse {
	return models.TranslateResponse{Text: "ಎಲೆ", Target: target, ScriptOK: true}
}

func (f *fakeTranslate) Clear(context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeTranslate) CacheSize(context.Context) (int, error) { return 3, nil }

type idleTicker struct{ c chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.c }

func (t idleTicker) Stop() {}

func testConfig() *config.Config {
	return &config.Config{
		MaxRequestBodySize: 1 << 20,
		MaxImageSize:       1 << 20,
		RequestTimeout:     5 * time.Second,
		AnalysisTimeout:    5 * time.Second,
	}
}

type testServer struct {
	handler   http.Handler
	scans     *fakeScans
	sessions  *session.Manager
	places    *fakePlaces
	translate *fakeTranslate
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog, err := plants.Load()
	require.NoError(t, err)

	sessions := session.NewManager(session.Config{
		Analyzer:  analyzer.NewColorAnalyzer(nil),
		NewTicker: func() capture.Ticker { return idleTicker{c: make(chan time.Time)} },
	})
	t.Cleanup(sessions.CloseAll)

	ts := &testServer{
		scans:     &fakeScans{resp: &models.ScanResponse{Width: 400, Height: 300, Detections: []models.Detection{}}},
		sessions:  sessions,
		places:    &fakePlaces{},
		translate: &fakeTranslate{},
	}
	ts.handler = NewHandler(Dependencies{
		Scans:     ts.scans,
		Sessions:  sessions,
		Plants:    catalog,
		Weather:   fakeWeather{},
		Places:    ts.places,
		Translate: ts.translate,
	}, testConfig())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.RGBA{60, 150, 50, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.sessions.Create()
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestScanImage_JSON(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/scan",
		[]byte(`{"url":"https://example.com/leaf.jpg","preset":"photo","sensitivity":40,"with_overlay":true}`),
		map[string]string{"Accept-Language": "kn-IN,kn;q=0.9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "https://example.com/leaf.jpg", ts.scans.last.URL)
	assert.Equal(t, "photo", ts.scans.last.Preset)
	require.NotNil(t, ts.scans.last.Sensitivity)
	assert.Equal(t, 40, *ts.scans.last.Sensitivity)
	assert.Equal(t, "kn", ts.scans.last.Language)
	assert.True(t, ts.scans.last.WithOverlay)
}

func TestScanImage_Multipart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "leaf.png")
	require.NoError(t, err)
	data := leafPNG(t)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("sensitivity", "85"))
	require.NoError(t, w.WriteField("diagnose", "true"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan?lang=hi", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, data, ts.scans.last.Upload)
	assert.Equal(t, 85, *ts.scans.last.Sensitivity)
	assert.True(t, ts.scans.last.Diagnose)
	assert.Equal(t, "hi", ts.scans.last.Language)
}

func TestScanImage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantType string
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest, "validation"},
		{"malformed", `{"url":`, nil, http.StatusBadRequest, "validation"},
		{"not found", `{"url":"https://example.com/x.jpg"}`, apperrors.NewNotFoundError("image not found", nil), http.StatusNotFound, "not_found"},
		{"upstream", `{"url":"https://example.com/x.jpg"}`, apperrors.NewNetworkError("failed to fetch image", nil), http.StatusBadGateway, "network"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.scans.err = tt.err

			rec := ts.do(t, http.MethodPost, "/api/v1/scan", []byte(tt.body), nil)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp models.ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.wantType, resp.Type)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestDiagnoseImage(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/diagnose", []byte(`{"url":"https://example.com/leaf.jpg","language":"hi"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.DiagnosisResult
	decode(t, rec, &result)
	assert.Equal(t, "Early blight", result.Diagnosis)
	assert.Equal(t, "hi", result.Language)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.SessionResponse
	decode(t, rec, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "idle", created.State)
	base := "/api/v1/sessions/" + created.ID

	rec = ts.do(t, http.MethodPost, base+"/scan/start", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/camera/start", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, base+"/camera/start", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/capture", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	s, err := ts.sessions.Get(created.ID)
	require.NoError(t, err)
	_, err = s.PushFrame(leafPNG(t))
	require.NoError(t, err)

	rec = ts.do(t, http.MethodPost, base+"/capture", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap models.ScanResponse
	decode(t, rec, &snap)
	assert.Equal(t, 160, snap.Width)
	assert.Equal(t, 160, snap.Height)

	rec = ts.do(t, http.MethodPost, base+"/scan/toggle", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled models.SessionResponse
	decode(t, rec, &toggled)
	assert.Equal(t, "scanning", toggled.State)

	rec = ts.do(t, http.MethodPost, base+"/scan/pause", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, base+"/camera/stop", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionSettings(t *testing.T) {
	ts := newTestServer(t)
	s, err := ts.sessions.Create()
	require.NoError(t, err)
	path := "/api/v1/sessions/" + s.ID + "/settings"

	rec := ts.do(t, http.MethodPut, path, []byte(`{"sensitivity":150}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, path, []byte(`{"sensitivity":30,"show_confidence":false,"language":"kn"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "scaled", body["profile"])

	opts := s.Scheduler().Options()
	assert.Equal(t, 30, opts.Sensitivity)
	assert.Equal(t, analyzer.ProfileScaled, opts.Profile)
	assert.Equal(t, "kn", opts.Language)
	render := s.Scheduler().RenderOptions()
	assert.False(t, render.ShowConfidence)
	assert.True(t, render.ShowBoundingBoxes)
}

func TestSessionDiagnose_NotConfigured(t *testing.T) {
	ts := newTestServer(t)
	s, err := ts.sessions.Create()
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/diagnose", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPlantRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/plants", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []plants.Plant
	decode(t, rec, &all)
	require.NotEmpty(t, all)

	rec = ts.do(t, http.MethodGet, "/api/v1/plants/"+all[0].ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/plants/no-such-plant", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/plants/random", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/plants/seasonal?month=jul", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"month":"July"`)

	rec = ts.do(t, http.MethodGet, "/api/v1/plants/seasonal?month=13", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeatherRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/weather?city=Mysore", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"city":"Mysore"`)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/weather", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/weather?city=Atlantis", nil, nil).Code)
}

func TestPlacesRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/places?q=nursery&lat=12.29&lng=76.63", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nursery", ts.places.query)
	assert.Contains(t, rec.Body.String(), "Green Nursery")

	rec = ts.do(t, http.MethodGet, "/api/v1/places?q=nursery&lat=north&lng=76.63", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranslateRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/translate", []byte(`{"text":"Leaf","target":"kn"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.TranslateResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ಎಲೆ", resp.Text)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/v1/translate", []byte(`{"text":"Leaf"}`), nil).Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/translate/cache", nil, nil)
	assert.JSONEq(t, `{"entries":3}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/api/v1/translate/cache", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ts.translate.cleared)
}

func TestRequestSizeLimit(t *testing.T) {
	ts := newTestServer(t)
	big := `{"url":"https://example.com/` + strings.Repeat("a", 2<<20) + `"}`

	rec := ts.do(t, http.MethodPost, "/api/v1/scan", []byte(big), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseMonth(t *testing.T) {
	tests := map[string]time.Month{
		"1":         time.January,
		"12":        time.December,
		"September": time.September,
		"oct":       time.October,
	}
	for raw, want := range tests {
		got, err := parseMonth(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := parseMonth("0")
	assert.Error(t, err)
	_, err = parseMonth("monsoon")
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	ts := newTestServer(t)
	s, err := ts.sessions.Create()
	require.NoError(t, err)

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + s.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() streamMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	require.NoError(t, conn.WriteJSON(streamCommand{Type: "dance"}))
	assert.Equal(t, "error", read().Type)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, leafPNG(t)))
	assert.Equal(t, "error", read().Type)

	require.NoError(t, conn.WriteJSON(streamCommand{Type: cmdStartCamera}))
	msg := read()
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, "camera_active", msg.State)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, leafPNG(t)))
	require.NoError(t, conn.WriteJSON(streamCommand{Type: cmdStopCamera}))
	for {
		msg = read()
		if msg.Type == "detections" {
			break
		}
	}
	assert.Equal(t, "idle", msg.State)
	assert.Empty(t, msg.Detections)
}

func TestStreamDetections_OverlayFollowsUpdate(t *testing.T) {
	ts := newTestServer(t)
	s, err := ts.sessions.Create()
	require.NoError(t, err)
	sc := &streamConn{session: s, overlay: true}

	dets := []models.Detection{{X: 0, Y: 0, Width: 80, Height: 80, Severity: models.SeverityDiseased, Confidence: 0.9, Label: "Diseased"}}
	size := image.Pt(160, 160)
	drawn := overlay.NewCanvas()
	overlay.NewRenderer(overlay.DefaultOptions()).Render(drawn, dets, size)

	// The live canvas is empty; the message still carries this update's overlay
	require.True(t, s.Scheduler().Canvas().Empty())
	msg := sc.detectionsMessage(capture.ScanUpdate{FrameSize: size, Detections: dets, Overlay: drawn.Snapshot()})
	require.NotEmpty(t, msg.OverlayPNG)

	raw, err := base64.StdEncoding.DecodeString(msg.OverlayPNG)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, size, img.Bounds().Size())
	_, _, _, a := img.At(40, 40).RGBA()
	assert.NotZero(t, a)

	// A cleared update never picks up pixels from the live canvas
	overlay.NewRenderer(overlay.DefaultOptions()).Render(s.Scheduler().Canvas(), dets, size)
	msg = sc.detectionsMessage(capture.ScanUpdate{FrameSize: size})
	assert.Empty(t, msg.OverlayPNG)
}
