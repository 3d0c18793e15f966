package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-vox/detector"
	"github.com/RyanBlaney/sonido-vox/detector/classifier"
	"github.com/RyanBlaney/sonido-vox/logging"
)

// VoiceRequest is the body of POST /api/voice-detection
type VoiceRequest struct {
	Language    string `json:"language"`
	AudioFormat string `json:"audioFormat"`
	AudioBase64 string `json:"audioBase64"`
}

// Validate checks the language, format and payload length
func (r VoiceRequest) Validate(formats []string) error {
	if !slices.Contains(Languages, r.Language) {
		return errors.New("language must be one of " + strings.Join(Languages, ", "))
	}
	if !slices.Contains(formats, r.AudioFormat) {
		return errors.New("audioFormat must be one of " + strings.Join(formats, ", "))
	}
	if len(r.AudioBase64) < MinPayloadLength {
		return errors.New("audioBase64 must be at least 100 characters")
	}
	return nil
}

// VoiceResponse is the body of a successful detection
type VoiceResponse struct {
	Status          string           `json:"status"`
	Language        string           `json:"language,omitempty"`
	Classification  classifier.Label `json:"classification"`
	ConfidenceScore float64          `json:"confidenceScore"`
	Explanation     string           `json:"explanation"`
}

func newVoiceResponse(language string, res *detector.Result) VoiceResponse {
	return VoiceResponse{
		Status:          "success",
		Language:        language,
		Classification:  res.Classification,
		ConfidenceScore: roundTo(res.Confidence, 4),
		Explanation:     res.Explanation,
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// statusFor maps a pipeline error to an HTTP status and client message
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, detector.ErrInputDecode):
		return http.StatusBadRequest, "Unable to decode audio"
	case errors.Is(err, detector.ErrClassifierUnavailable):
		return http.StatusServiceUnavailable, "Classifier unavailable"
	default:
		return http.StatusInternalServerError, "Model inference failed"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"model_ready": s.analyzer.Ready(),
	})
}

func (s *Server) handleVoiceDetection(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r, "handleVoiceDetection")

	key, present := r.Header.Get(HeaderAPIKey), len(r.Header.Values(HeaderAPIKey)) > 0
	if authErr := s.authenticate(key, present); authErr != nil {
		logger.Debug("Rejected request", logging.Fields{"status": authErr.status})
		writeError(w, authErr.status, authErr.message)
		return
	}

	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}

	var req VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(s.analyzer.SupportedFormats()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.analyzer.AnalyzeBase64(r.Context(), req.AudioBase64, req.AudioFormat)
	if err != nil {
		status, message := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error(err, "Detection failed")
		} else {
			logger.Debug("Detection rejected", logging.Fields{"error": err})
		}
		writeError(w, status, message)
		return
	}

	logger.Info("Voice classified", logging.Fields{
		"language":       req.Language,
		"classification": res.Classification,
		"confidence":     res.Confidence,
	})
	writeJSON(w, http.StatusOK, newVoiceResponse(req.Language, res))
}
