package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strings"

	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/embedding"
	"github.com/kozaktomas/faceid/internal/extractor"
	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/kozaktomas/faceid/internal/recognition"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxRequestBody bounds JSON bodies carrying base64 images.
const maxRequestBody = 20 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// faceInput is the part of a request body that carries a face, either as an
// image or as a precomputed embedding.
type faceInput struct {
	FaceImage string    `json:"face_image,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// image returns the decoded image bytes, or nil when an embedding was sent.
func (in faceInput) image() ([]byte, error) {
	if in.FaceImage == "" {
		return nil, nil
	}
	return extractor.DecodeImageData(in.FaceImage)
}

// validate reports a client error message, empty when the input is usable.
func (in faceInput) validate() string {
	switch {
	case in.FaceImage == "" && len(in.Embedding) == 0:
		return "face_image or embedding is required"
	case in.FaceImage != "" && len(in.Embedding) > 0:
		return "send either face_image or embedding, not both"
	}
	return ""
}

func (in faceInput) vector() embedding.Vector {
	return embedding.Vector(in.Embedding)
}

// respondServiceError maps recognition errors to HTTP responses.
func respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, recognition.ErrImageNotProcessable):
		respondError(w, http.StatusUnprocessableEntity, recognition.ErrImageNotProcessable.Error())
	case errors.Is(err, matcher.ErrInvalidThreshold),
		errors.Is(err, matcher.ErrEmptyIdentity):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recognition.ErrNotEnrolled),
		errors.Is(err, database.ErrUnknownIdentity):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, recognition.ErrNoExtractor):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, recognition.ErrExtractorUnavailable):
		log.Printf("%s failed: %v", op, err)
		respondError(w, http.StatusServiceUnavailable, recognition.ErrExtractorUnavailable.Error())
	case errors.Is(err, recognition.ErrUnsupported):
		respondError(w, http.StatusNotImplemented, err.Error())
	default:
		log.Printf("%s failed: %v", op, err)
		respondError(w, http.StatusServiceUnavailable, "gallery store unavailable")
	}
}

// roundConfidence rounds to four decimal places.
func roundConfidence(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
