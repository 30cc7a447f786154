package handlers

import (
	"net/http"

	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/kozaktomas/faceid/internal/recognition"
)

// IdentifyHandler handles face identification requests
type IdentifyHandler struct {
	service *recognition.Service
}

// NewIdentifyHandler creates a new identify handler
func NewIdentifyHandler(service *recognition.Service) *IdentifyHandler {
	return &IdentifyHandler{service: service}
}

// IdentifyRequest represents an identification request
type IdentifyRequest struct {
	faceInput
	Threshold float64 `json:"threshold,omitempty"`
}

// IdentifyResponse represents the outcome of an identification
type IdentifyResponse struct {
	Matched         bool           `json:"matched"`
	Identity        *string        `json:"identity"`
	MatchConfidence *float64       `json:"match_confidence"`
	Reason          matcher.Reason `json:"reason"`
	Message         string         `json:"message"`
	Threshold       float64        `json:"threshold"`
	Scanned         int            `json:"scanned"`
	Skipped         int            `json:"skipped"`
}

// Identify matches the submitted face against the gallery
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	img, err := req.image()
	if err != nil {
		respondError(w, http.StatusBadRequest, "face_image must be base64 encoded image data")
		return
	}

	var id *recognition.Identification
	if img != nil {
		id, err = h.service.Identify(r.Context(), img, req.Threshold)
	} else {
		id, err = h.service.IdentifyEmbedding(r.Context(), req.vector(), req.Threshold)
	}
	if err != nil {
		respondServiceError(w, "identify", err)
		return
	}

	respondJSON(w, http.StatusOK, newIdentifyResponse(id))
}

func newIdentifyResponse(id *recognition.Identification) IdentifyResponse {
	resp := IdentifyResponse{
		Matched:   id.Matched,
		Reason:    id.Reason,
		Message:   id.Message,
		Threshold: id.Threshold,
		Scanned:   id.Scanned,
		Skipped:   id.Skipped,
	}
	if id.Matched {
		identity := id.Identity
		resp.Identity = &identity
	}
	if id.Reason != matcher.ReasonEmptyGallery {
		confidence := roundConfidence(id.Similarity)
		resp.MatchConfidence = &confidence
	}
	return resp
}
