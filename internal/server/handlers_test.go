package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/pipeline"
	"github.com/pupring/engrave/internal/testutil"
	"github.com/pupring/engrave/internal/utils"
)

// fakeProcessor records the last request and returns a canned result.
type fakeProcessor struct {
	result *pipeline.Result
	last   pipeline.Request
	calls  int
}

func (f *fakeProcessor) Process(_ context.Context, req pipeline.Request) *pipeline.Result {
	f.last = req
	f.calls++
	if req.Listener != nil {
		req.Listener.OnStateChange(pipeline.StateUploaded)
		req.Listener.OnStep(pipeline.StepRecord{Name: pipeline.StepUpload, Status: pipeline.StepCompleted})
	}
	return f.result
}

func (f *fakeProcessor) Info() map[string]interface{} {
	return map[string]interface{}{
		"strategy": "clean-simple",
		"styles":   []string{"standard", "detailed", "bold"},
	}
}

func successResult() *pipeline.Result {
	return &pipeline.Result{
		Success:  true,
		State:    pipeline.StateDone,
		FinalURL: "memory://optimized/abc-final.png",
		Steps: []pipeline.StepRecord{
			{Name: pipeline.StepUpload, Status: pipeline.StepCompleted},
		},
	}
}

func newTestServer(t *testing.T, proc processor) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewServer(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 25,
		TimeoutSec:  5,
	}, proc, logger)
	require.NoError(t, err)
	return s
}

// multipartRequest builds a POST with the given form fields and files.
func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string][][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for name, payloads := range files {
		for i, payload := range payloads {
			part, err := writer.CreateFormFile(name, "upload-"+string(rune('a'+i))+".png")
			require.NoError(t, err)
			_, err = part.Write(payload)
			require.NoError(t, err)
		}
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestStylesHandler(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})

	rec := httptest.NewRecorder()
	s.stylesHandler(rec, httptest.NewRequest(http.MethodGet, "/styles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp InfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "clean-simple", resp.Pipeline["strategy"])
	assert.Contains(t, resp.Templates, "locket")
}

func TestProcessHandlerSuccess(t *testing.T) {
	proc := &fakeProcessor{result: successResult()}
	s := newTestServer(t, proc)

	req := multipartRequest(t, "/process",
		map[string]string{"petName": "Rex"},
		map[string][][]byte{"image": {[]byte("not-really-a-png")}})
	rec := httptest.NewRecorder()
	s.processHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "memory://optimized/abc-final.png", res.FinalURL)

	assert.Equal(t, 1, proc.calls)
	assert.Equal(t, "Rex", proc.last.PetName)
	assert.Equal(t, int64(len("not-really-a-png")), proc.last.Size)
	assert.Nil(t, proc.last.CustomBox)
}

func TestProcessHandlerRejection(t *testing.T) {
	proc := &fakeProcessor{result: &pipeline.Result{
		Success:          false,
		State:            pipeline.StateFailed,
		Error:            "no clear pet face detected, please upload a clearer photo",
		RequiresNewImage: true,
	}}
	s := newTestServer(t, proc)

	req := multipartRequest(t, "/process", nil, map[string][][]byte{"image": {[]byte("blurry")}})
	rec := httptest.NewRecorder()
	s.processHandler(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.RequiresNewImage)
}

func TestProcessHandlerSystemFailure(t *testing.T) {
	proc := &fakeProcessor{result: &pipeline.Result{
		Success: false,
		State:   pipeline.StateFailed,
		Error:   "stage upload failed: storage unavailable",
	}}
	s := newTestServer(t, proc)

	req := multipartRequest(t, "/process", nil, map[string][][]byte{"image": {[]byte("fine")}})
	rec := httptest.NewRecorder()
	s.processHandler(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProcessHandlerMissingImage(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})

	req := multipartRequest(t, "/process", map[string]string{"petName": "Rex"}, nil)
	rec := httptest.NewRecorder()
	s.processHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request", resp.Error)
}

func TestProcessHandlerCustomCoordinates(t *testing.T) {
	proc := &fakeProcessor{result: successResult()}
	s := newTestServer(t, proc)

	req := multipartRequest(t, "/process",
		map[string]string{"centerX": "320", "centerY": "240", "width": "150", "height": "120"},
		map[string][][]byte{"image": {[]byte("img")}})
	rec := httptest.NewRecorder()
	s.processHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, proc.last.CustomBox)
	assert.InDelta(t, 320.0, proc.last.CustomBox.CenterX, 1e-9)
	assert.InDelta(t, 120.0, proc.last.CustomBox.Height, 1e-9)
}

func TestProcessHandlerPartialCoordinates(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})

	req := multipartRequest(t, "/process",
		map[string]string{"centerX": "320", "centerY": "240"},
		map[string][][]byte{"image": {[]byte("img")}})
	rec := httptest.NewRecorder()
	s.processHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessHandlerMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})

	rec := httptest.NewRecorder()
	s.processHandler(rec, httptest.NewRequest(http.MethodGet, "/process", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func goldTemplate(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	gold := color.NRGBA{R: 212, G: 175, B: 55, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, gold)
		}
	}
	return img
}

func engravingPNG(t *testing.T, size int) []byte {
	t.Helper()
	return testutil.PortraitPNG(t, size)
}

func TestCompositeHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newTestServer(t, &fakeProcessor{result: successResult()})
	s.WithCompositor(compositor.New(compositor.DefaultConfig(), logger), map[string]image.Image{
		"locket": goldTemplate(750),
	})

	req := multipartRequest(t, "/composite",
		map[string]string{"template": "locket", "names": "Rex"},
		map[string][][]byte{"engravings": {engravingPNG(t, 200)}})
	rec := httptest.NewRecorder()
	s.compositeHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rendered, _, err := utils.DecodeImage(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 750, rendered.Bounds().Dx())
	assert.Equal(t, 750, rendered.Bounds().Dy())
}

func TestCompositeHandlerUnknownTemplate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newTestServer(t, &fakeProcessor{result: successResult()})
	s.WithCompositor(compositor.New(compositor.DefaultConfig(), logger), map[string]image.Image{
		"locket": goldTemplate(750),
	})

	req := multipartRequest(t, "/composite",
		map[string]string{"template": "tiara"},
		map[string][][]byte{"engravings": {engravingPNG(t, 200)}})
	rec := httptest.NewRecorder()
	s.compositeHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unknown_template", resp.Error)
}

func TestCompositeHandlerWithoutCompositor(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})

	req := multipartRequest(t, "/composite", nil,
		map[string][][]byte{"engravings": {engravingPNG(t, 200)}})
	rec := httptest.NewRecorder()
	s.compositeHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCompositeHandlerMissingEngravings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newTestServer(t, &fakeProcessor{result: successResult()})
	s.WithCompositor(compositor.New(compositor.DefaultConfig(), logger), map[string]image.Image{
		"locket": goldTemplate(750),
	})

	req := multipartRequest(t, "/composite", map[string]string{"template": "locket"}, nil)
	rec := httptest.NewRecorder()
	s.compositeHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
