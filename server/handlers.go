package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

const (
	headerRequestID = "X-Request-ID"
	formField       = "file"
	// multipartMemory is how much of an upload is held in memory before
	// spilling to a temporary file.
	multipartMemory = 8 << 20
)

type requestIDKey struct{}

// PredictResponse is the body of a successful /api/v1/predict call.
type PredictResponse struct {
	ID              string                    `json:"id"`
	Label           emotion.Label             `json:"label"`
	Score           float64                   `json:"score"`
	Scores          map[emotion.Label]float64 `json:"scores"`
	Probabilities   map[emotion.Label]float64 `json:"probabilities,omitempty"`
	Normalized      bool                      `json:"normalized"`
	DurationSeconds float64                   `json:"duration_seconds"`
	SampleRate      int                       `json:"sample_rate"`
	Source          string                    `json:"source,omitempty"`
}

// FeaturesResponse is the body of a successful /api/v1/features call.
type FeaturesResponse struct {
	ID              string             `json:"id"`
	Source          string             `json:"source,omitempty"`
	SampleRate      int                `json:"sample_rate"`
	DurationSeconds float64            `json:"duration_seconds"`
	Frames          int                `json:"frames"`
	Tuning          float64            `json:"tuning"`
	Features        *features.Features `json:"features"`
	Layout          []features.Segment `json:"layout"`
	Vector          []float64          `json:"vector"`
}

// LabelsResponse lists the labels in score order.
type LabelsResponse struct {
	Labels []emotion.Label `json:"labels"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	ID    string `json:"id,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer s.removeUpload(r)
	defer file.Close()

	pred, err := s.predictor.PredictReader(r.Context(), file, header.Filename)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	resp := PredictResponse{
		ID:              requestID(r.Context()),
		Label:           pred.Label,
		Score:           pred.Score(),
		Scores:          emotion.ScoreMap(pred.Scores),
		Normalized:      pred.Normalized,
		DurationSeconds: pred.Duration.Seconds(),
		SampleRate:      pred.SampleRate,
		Source:          header.Filename,
	}
	if pred.Probabilities != nil {
		resp.Probabilities = emotion.ScoreMap(pred.Probabilities)
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer s.removeUpload(r)
	defer file.Close()

	analysis, err := s.predictor.AnalyzeReader(r.Context(), file, header.Filename)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, FeaturesResponse{
		ID:              requestID(r.Context()),
		Source:          header.Filename,
		SampleRate:      analysis.Features.SampleRate,
		DurationSeconds: analysis.Audio.Duration.Seconds(),
		Frames:          analysis.Features.Frames,
		Tuning:          analysis.Features.Tuning,
		Features:        analysis.Features,
		Layout:          analysis.Layout,
		Vector:          analysis.Vector,
	})
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, LabelsResponse{Labels: emotion.Labels})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// readUpload enforces the size cap and returns the multipart "file" part.
// On failure it has already written the response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
		return nil, nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return nil, nil, false
		}
		s.writeError(w, r, http.StatusBadRequest, "expected a multipart/form-data upload: "+err.Error())
		return nil, nil, false
	}

	file, header, err := r.FormFile(formField)
	if err != nil {
		s.removeUpload(r)
		s.writeError(w, r, http.StatusBadRequest, `missing form file field "file"`)
		return nil, nil, false
	}
	return file, header, true
}

// removeUpload deletes any temporary files the multipart parser spilled to
// disk. Handlers see a copy of the request, so net/http never cleans them.
func (s *Server) removeUpload(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		s.logger.Warn("Failed to remove upload temp files", logging.Fields{
			"request_id": requestID(r.Context()),
			"error":      err.Error(),
		})
	}
}

// writePipelineError maps pipeline sentinels to HTTP statuses.
func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := s.logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error(err, "Prediction failed")
	} else {
		logger.Debug("Rejected audio", logging.Fields{"error": err.Error(), "status": status})
	}
	s.writeError(w, r, status, err.Error())
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, emotion.ErrEmptyAudio), errors.Is(err, emotion.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, features.ErrInvalidParams):
		return http.StatusUnprocessableEntity
	case errors.Is(err, emotion.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithContext(r.Context()).Error(err, "Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, ErrorResponse{Error: message, ID: requestID(r.Context())})
}

// withRequestID tags every request with a UUID, echoes it in X-Request-ID
// and logs the request once it completes. A valid incoming id is kept.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logging.ContextWithFields(ctx, logging.Fields{"request_id": id})

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.WithContext(ctx).Info("HTTP request", logging.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
