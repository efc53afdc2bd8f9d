package api

import (
	"encoding/base64"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/veridict/voiceguard-go/internal/errors"
)

// handleDetection implements POST /api/voice-detection.
func (s *Server) handleDetection(c echo.Context) error {
	start := time.Now()
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	var req DetectionRequest
	if err := c.Bind(&req); err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "malformed JSON body")
	}

	if req.AudioBase64 == "" {
		return s.errorResponse(c, http.StatusBadRequest, "audioBase64 is required")
	}
	if len(req.AudioBase64) > s.settings.MaxBase64Length() {
		return s.errorResponse(c, http.StatusRequestEntityTooLarge, "audio payload exceeds the size limit")
	}

	audioData, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "audioBase64 is not valid base64")
	}

	result, err := s.detector.Detect(c.Request().Context(), req.Language, audioData, req.AudioFormat)
	if err != nil {
		status, message := classifyError(err)
		s.logger.Error("detection failed",
			"request_id", requestID,
			"language", req.Language,
			"format", req.AudioFormat,
			"status", status,
			"error", err)
		return s.errorResponse(c, status, message)
	}

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RequestDuration.Observe(elapsed.Seconds())
	}
	s.logger.Info("detection completed",
		"request_id", requestID,
		"language", result.Language,
		"classification", result.Classification,
		"confidence", result.ConfidenceScore,
		"rule", result.Rule,
		"quality", result.Quality,
		"windows", result.Windows,
		"duration_ms", elapsed.Milliseconds())

	return c.JSON(http.StatusOK, DetectionResponse{
		Status:          "success",
		Language:        result.Language,
		Classification:  result.Classification,
		ConfidenceScore: roundConfidence(result.ConfidenceScore),
		Explanation:     result.Explanation,
	})
}

// roundConfidence clamps a confidence value to [0,1] and rounds it to two
// decimals for the response contract.
func roundConfidence(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*100) / 100
}

// classifyError maps pipeline error categories to HTTP status codes. Internal
// failures never leak their details to the client.
func classifyError(err error) (status int, message string) {
	switch {
	case errors.HasCategory(err, errors.CategoryValidation),
		errors.HasCategory(err, errors.CategoryAudioDecode):
		return http.StatusBadRequest, err.Error()
	case errors.HasCategory(err, errors.CategoryDurationGate):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.HasCategory(err, errors.CategoryCancellation):
		return http.StatusRequestTimeout, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) errorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{Status: "error", Message: message})
}
