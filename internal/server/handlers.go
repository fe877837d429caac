package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/scrolland/cuestionario-videos/internal/analysis"
	"github.com/scrolland/cuestionario-videos/internal/assets"
	"github.com/scrolland/cuestionario-videos/internal/generation"
	"github.com/scrolland/cuestionario-videos/internal/imageprep"
	"github.com/scrolland/cuestionario-videos/internal/logging"
	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/prompt"
	"github.com/scrolland/cuestionario-videos/internal/report"
	"github.com/scrolland/cuestionario-videos/internal/runs"
	"github.com/scrolland/cuestionario-videos/internal/services"
)

const minParticipantAge = 18

type initRequest struct {
	Gender string `json:"gender"`
	Age    int    `json:"age"`
}

type initResponse struct {
	Success       bool                         `json:"success"`
	ParticipantID string                       `json:"participantId"`
	Videos        []participants.AssignedVideo `json:"videos"`
	TotalVideos   int                          `json:"totalVideos"`
	Message       string                       `json:"message"`
}

func (s *Server) handleInitExperiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req initRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Gender) == "" || req.Age < minParticipantAge {
		s.writeError(w, http.StatusBadRequest, "invalid demographic data")
		return
	}

	pools, err := assets.Scan(s.cfg.Paths.VideosDir, s.cfg.Selection)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "content tree unavailable")
		return
	}

	selection := s.selector.Select(pools)
	assignment := participants.AssignmentFromAssets(selection)
	record, err := s.store.Create(participants.Demographics{
		Gender: strings.TrimSpace(req.Gender),
		Age:    strconv.Itoa(req.Age),
	}, assignment)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not create participant")
		return
	}

	s.writeJSON(w, http.StatusOK, initResponse{
		Success:       true,
		ParticipantID: record.ID,
		Videos:        record.Assignment,
		TotalVideos:   len(record.Assignment),
		Message:       "experiment initialized",
	})
}

type saveResponseRequest struct {
	ParticipantID    string  `json:"participant_id"`
	VideoIndex       *int    `json:"video_index"`
	VideoPath        string  `json:"video_path"`
	Category         string  `json:"category"`
	IsFake           bool    `json:"is_fake"`
	IsObvious        bool    `json:"is_obvious_fake"`
	Quality          string  `json:"quality"`
	Slider           *int    `json:"slider"`
	FakeCause        string  `json:"fake_cause"`
	ResponseTimeSecs float64 `json:"response_time_secs"`
}

func (s *Server) handleSaveResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req saveResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ParticipantID) == "" || req.VideoIndex == nil || req.Slider == nil {
		s.writeError(w, http.StatusBadRequest, "participant id, video index and slider are required")
		return
	}

	r = r.WithContext(services.WithParticipant(r.Context(), req.ParticipantID))
	_, err := s.store.AppendResponse(req.ParticipantID, participants.Response{
		VideoIndex:       *req.VideoIndex,
		VideoPath:        req.VideoPath,
		Category:         req.Category,
		Quality:          req.Quality,
		IsFake:           req.IsFake,
		IsObvious:        req.IsObvious,
		Rating:           *req.Slider,
		FakeCause:        strings.TrimSpace(req.FakeCause),
		Timestamp:        time.Now(),
		ResponseTimeSecs: req.ResponseTimeSecs,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "could not save response")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "response saved"})
}

type finishRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (s *Server) handleFinishExperiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req finishRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ParticipantID) == "" {
		s.writeError(w, http.StatusBadRequest, "participant id required")
		return
	}

	r = r.WithContext(services.WithParticipant(r.Context(), req.ParticipantID))
	record, err := s.store.MarkCompleted(req.ParticipantID)
	if err != nil {
		s.writeServiceError(w, r, err, "could not finish experiment")
		return
	}

	s.logger.Info("experiment finished",
		logging.String(logging.FieldParticipant, record.ID),
		logging.Int("responses", len(record.Responses)))
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "experiment finished"})
}

type generateResponse struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	RunID            string  `json:"runId,omitempty"`
	HighPath         string  `json:"highPath,omitempty"`
	LowPath          string  `json:"lowPath,omitempty"`
	HighSizeMB       float64 `json:"highSizeMb,omitempty"`
	LowSizeMB        float64 `json:"lowSizeMb,omitempty"`
	HighDurationSecs int     `json:"highDurationSecs,omitempty"`
	LowDurationSecs  int     `json:"lowDurationSecs,omitempty"`
	PollErrors       int     `json:"pollErrors,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.generator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "video generation is not configured")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no image received")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty image data")
		return
	}

	folder := sanitizeFolder(r.FormValue("folderPath"))
	customPrompt := r.FormValue("promptText")

	normalized, err := imageprep.Normalize(data)
	if err != nil {
		s.writeServiceError(w, r, err, "image rejected")
		return
	}

	imageAnalysis, err := analysis.AnalyzeBytes(normalized.Data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not analyze image")
		return
	}
	category := prompt.CategoryFromFolder(folder)
	prompts := s.synthesizer.Generate(imageAnalysis, category, customPrompt)

	outputDir := s.cfg.Paths.VideosDir
	if folder != "" {
		outputDir = filepath.Join(s.cfg.Paths.VideosDir, folder)
	}

	// One generation at a time; concurrent uploads wait their turn.
	s.genMu.Lock()
	defer s.genMu.Unlock()

	runID := s.recordRunStart(r, folder, prompts)
	result, err := s.generator.Generate(r.Context(), generation.Request{
		ImageDataURI: normalized.DataURI(),
		Prompts:      prompts,
		OutputDir:    outputDir,
	})
	if err != nil {
		s.recordRunFailure(r, runID, err)
		s.writeJSON(w, http.StatusInternalServerError, generateResponse{
			Success: false,
			Message: err.Error(),
			RunID:   runID,
		})
		return
	}
	s.recordRunSuccess(r, runID, result)

	s.writeJSON(w, http.StatusOK, generateResponse{
		Success:          true,
		Message:          "videos generated",
		RunID:            runID,
		HighPath:         result.High.Path,
		LowPath:          result.Low.Path,
		HighSizeMB:       result.High.SizeMB,
		LowSizeMB:        result.Low.SizeMB,
		HighDurationSecs: result.High.DurationSecs,
		LowDurationSecs:  result.Low.DurationSecs,
		PollErrors:       result.PollErrors,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	records, err := s.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not read participant records")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   report.Compute(records),
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	records, err := s.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not read participant records")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=experiment_results_%s.csv", time.Now().Format("20060102_150405")))
	if err := report.WriteCSV(w, records); err != nil {
		s.logger.Error("csv export failed", logging.Error(err))
	}
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	records, err := s.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not read participant records")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=experiment_results_%s.json", time.Now().Format("20060102_150405")))
	if err := report.WriteJSON(w, records); err != nil {
		s.logger.Error("json export failed", logging.Error(err))
	}
}

func (s *Server) recordRunStart(r *http.Request, folder string, prompts prompt.Pair) string {
	if s.runsStore == nil {
		return ""
	}
	run, err := s.runsStore.Create(r.Context(), "", prompts.High, prompts.Low)
	if err != nil {
		s.logger.Warn("could not record generation run", logging.Error(err))
		return ""
	}
	s.logger.Info("generation run started",
		logging.String(logging.FieldRun, run.ID),
		logging.String(logging.FieldFolder, folder))
	return run.ID
}

func (s *Server) recordRunSuccess(r *http.Request, runID string, result *generation.Result) {
	if s.runsStore == nil || runID == "" {
		return
	}
	if err := s.runsStore.MarkCompleted(r.Context(), runID, result); err != nil {
		s.logger.Warn("could not record run completion", logging.Error(err))
	}
}

func (s *Server) recordRunFailure(r *http.Request, runID string, genErr error) {
	if s.runsStore == nil || runID == "" {
		return
	}
	status := runs.StatusFailed
	if errors.Is(genErr, services.ErrRemoteTimeout) {
		status = runs.StatusTimedOut
	}
	if err := s.runsStore.MarkFailed(r.Context(), runID, status, genErr.Error()); err != nil {
		s.logger.Warn("could not record run failure", logging.Error(err))
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "participant not found")
	case services.IsClientError(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		attrs := []any{logging.Error(err)}
		if requestID, ok := services.RequestIDFromContext(r.Context()); ok {
			attrs = append(attrs, logging.String("request_id", requestID))
		}
		if participantID, ok := services.ParticipantFromContext(r.Context()); ok {
			attrs = append(attrs, logging.String(logging.FieldParticipant, participantID))
		}
		s.logger.Error(fallback, attrs...)
		s.writeError(w, http.StatusInternalServerError, fallback)
	}
}

// sanitizeFolder keeps generation output inside the content tree.
func sanitizeFolder(folder string) string {
	folder = strings.TrimSpace(folder)
	folder = strings.Trim(folder, "/\\")
	if folder == "" || strings.Contains(folder, "..") {
		return ""
	}
	return filepath.Clean(folder)
}
