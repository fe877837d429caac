package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scrolland/cuestionario-videos/internal/assets"
	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/generation"
	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/runs"
	"github.com/scrolland/cuestionario-videos/internal/server"
	"github.com/scrolland/cuestionario-videos/internal/services"
	"github.com/scrolland/cuestionario-videos/internal/testsupport"
)

type fakeGenerator struct {
	err    error
	result *generation.Result
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fixture struct {
	cfg       *config.Config
	store     *participants.Store
	runsStore *runs.Store
	generator *fakeGenerator
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	seedContentTree(t, cfg)

	store := testsupport.MustOpenParticipants(t, cfg)
	runsStore := testsupport.MustOpenRuns(t, cfg)
	generator := &fakeGenerator{result: &generation.Result{
		High: generation.TierOutput{Tier: generation.TierHigh, Path: "/v/high.mp4", SizeMB: 8, DurationSecs: 10},
		Low:  generation.TierOutput{Tier: generation.TierLow, Path: "/v/low.mp4", SizeMB: 1.5, DurationSecs: 10, Compressed: true},
	}}

	srv, err := server.New(cfg, store, runsStore, generator, nil,
		server.WithSelector(assets.NewSelector(cfg.Selection, rand.New(rand.NewSource(11)))))
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return &fixture{cfg: cfg, store: store, runsStore: runsStore, generator: generator, handler: srv.Handler()}
}

func seedContentTree(t *testing.T, cfg *config.Config) {
	t.Helper()
	write := func(parts ...string) {
		path := filepath.Join(append([]string{cfg.Paths.VideosDir}, parts...)...)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("reals", "e_clip.mp4")
	write("reals", "i_clip.mp4")
	write("e2", "clip.mp4")
	write("e5", "video_high_quality.mp4")
	write("e5", "video_low_quality.mp4")
	write("i3", "video_high_quality.mp4")
	write("i3", "video_low_quality.mp4")
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func initParticipant(t *testing.T, f *fixture) string {
	t.Helper()
	recorder := postJSON(t, f.handler, "/init-experiment", map[string]any{"gender": "female", "age": 24})
	if recorder.Code != http.StatusOK {
		t.Fatalf("init status = %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		ParticipantID string `json:"participantId"`
		TotalVideos   int    `json:"totalVideos"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode init response: %v", err)
	}
	if payload.ParticipantID == "" || payload.TotalVideos == 0 {
		t.Fatalf("unexpected init payload: %s", recorder.Body.String())
	}
	return payload.ParticipantID
}

func TestInitExperimentCreatesAssignment(t *testing.T) {
	f := newFixture(t)
	id := initParticipant(t, f)

	record, err := f.store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// 1 obvious + 2 high/low synthetic per category is capped by the
	// seeded tree; reals contribute one per category.
	if len(record.Assignment) == 0 {
		t.Fatal("assignment empty")
	}
	if record.Gender != "female" || record.Age != "24" {
		t.Errorf("demographics = %q/%q", record.Gender, record.Age)
	}
}

func TestInitExperimentRejectsUnderage(t *testing.T) {
	f := newFixture(t)
	recorder := postJSON(t, f.handler, "/init-experiment", map[string]any{"gender": "male", "age": 17})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestSaveResponseValidation(t *testing.T) {
	f := newFixture(t)
	id := initParticipant(t, f)

	// Missing slider.
	recorder := postJSON(t, f.handler, "/save-response", map[string]any{
		"participant_id": id,
		"video_index":    0,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("missing slider status = %d, want 400", recorder.Code)
	}

	// Unknown participant.
	recorder = postJSON(t, f.handler, "/save-response", map[string]any{
		"participant_id": "P404",
		"video_index":    0,
		"slider":         5,
	})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown participant status = %d, want 404", recorder.Code)
	}
}

func TestSaveResponseAndFinish(t *testing.T) {
	f := newFixture(t)
	id := initParticipant(t, f)

	recorder := postJSON(t, f.handler, "/save-response", map[string]any{
		"participant_id":     id,
		"video_index":        0,
		"video_path":         "/videos/e2/clip.mp4",
		"category":           "entertainment",
		"is_fake":            true,
		"is_obvious_fake":    true,
		"quality":            "low",
		"slider":             9,
		"fake_cause":         "warped background",
		"response_time_secs": 6.5,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = postJSON(t, f.handler, "/finish-experiment", map[string]any{"participant_id": id})
	if recorder.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", recorder.Code, recorder.Body.String())
	}

	record, err := f.store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !record.Completed || record.CompletedAt == nil {
		t.Error("record not completed")
	}
	if len(record.Responses) != 1 || record.Responses[0].Rating != 9 {
		t.Errorf("responses = %+v", record.Responses)
	}
}

func multipartImage(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: 120, B: 90, A: 255})
		}
	}
	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(imgBuf.Bytes()); err != nil {
		t.Fatalf("write image part: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestGenerateFromLocalImage(t *testing.T) {
	f := newFixture(t)
	body, contentType := multipartImage(t, map[string]string{"folderPath": "e7"})

	req := httptest.NewRequest(http.MethodPost, "/generate-from-local-image", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	if f.generator.calls != 1 {
		t.Errorf("generator calls = %d, want 1", f.generator.calls)
	}

	var payload struct {
		Success          bool   `json:"success"`
		RunID            string `json:"runId"`
		HighDurationSecs int    `json:"highDurationSecs"`
		LowDurationSecs  int    `json:"lowDurationSecs"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success || payload.RunID == "" {
		t.Fatalf("payload = %s", recorder.Body.String())
	}
	if payload.HighDurationSecs != 10 || payload.LowDurationSecs != 10 {
		t.Errorf("durations = %d, %d, want 10", payload.HighDurationSecs, payload.LowDurationSecs)
	}

	run, err := f.runsStore.GetByID(context.Background(), payload.RunID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if run.Status != runs.StatusCompleted {
		t.Errorf("run status = %q, want completed", run.Status)
	}
}

func TestGenerateTimeoutRecordsRun(t *testing.T) {
	f := newFixture(t)
	f.generator.err = services.Wrap(services.ErrRemoteTimeout, "generation", "poll", "gave up after 48 rounds; 1 of 2 clips completed", nil)

	body, contentType := multipartImage(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/generate-from-local-image", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", recorder.Code)
	}

	listed, err := f.runsStore.List(context.Background(), 1)
	if err != nil || len(listed) != 1 {
		t.Fatalf("List: %v (%d runs)", err, len(listed))
	}
	if listed[0].Status != runs.StatusTimedOut {
		t.Errorf("run status = %q, want timed_out", listed[0].Status)
	}
}

func TestGenerateRejectsMissingImage(t *testing.T) {
	f := newFixture(t)
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("folderPath", "e7"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/generate-from-local-image", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	if f.generator.calls != 0 {
		t.Error("generator must not run without an image")
	}
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	initParticipant(t, f)

	req := httptest.NewRequest(http.MethodGet, "/get-stats", nil)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var payload struct {
		Success bool `json:"success"`
		Stats   struct {
			TotalParticipants int `json:"total_participants"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Success || payload.Stats.TotalParticipants != 1 {
		t.Fatalf("payload = %s", recorder.Body.String())
	}
}

func TestExportCSVHasBOMAndDisposition(t *testing.T) {
	f := newFixture(t)
	initParticipant(t, f)

	req := httptest.NewRequest(http.MethodGet, "/export-csv", nil)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("disposition = %q", recorder.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(recorder.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("csv missing byte-order mark")
	}
}

func TestOptionsRequestsGetCORSHeaders(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/save-response", nil)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

func TestRequestsCarryCorrelationID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/get-stats", nil)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)

	if recorder.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}
