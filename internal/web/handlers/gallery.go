package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/faceid/internal/recognition"
)

// maxNeighbors caps the k query parameter.
const maxNeighbors = 100

// GalleryHandler handles enrollment and gallery inspection
type GalleryHandler struct {
	service *recognition.Service
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(service *recognition.Service) *GalleryHandler {
	return &GalleryHandler{service: service}
}

// EnrollRequest represents an enrollment request
type EnrollRequest struct {
	faceInput
}

// EnrollResponse represents a stored enrollment
type EnrollResponse struct {
	Identity           string                 `json:"identity"`
	EnrollmentID       string                 `json:"enrollment_id"`
	PossibleDuplicates []recognition.Neighbor `json:"possible_duplicates"`
}

// Enroll stores the submitted face for the identity in the URL
func (h *GalleryHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	var req EnrollRequest
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

	var enrollment *recognition.Enrollment
	if img != nil {
		enrollment, err = h.service.Enroll(r.Context(), identity, img)
	} else {
		enrollment, err = h.service.EnrollEmbedding(r.Context(), identity, req.vector())
	}
	if err != nil {
		respondServiceError(w, "enroll", err)
		return
	}

	dups := enrollment.PossibleDuplicates
	if dups == nil {
		dups = []recognition.Neighbor{}
	}
	for i := range dups {
		dups[i].Similarity = roundConfidence(dups[i].Similarity)
	}

	log.Printf("Enrolled face for %s (%d possible duplicates)", sanitizeForLog(enrollment.Identity), len(dups))
	respondJSON(w, http.StatusCreated, EnrollResponse{
		Identity:           enrollment.Identity,
		EnrollmentID:       enrollment.EnrollmentID,
		PossibleDuplicates: dups,
	})
}

// StatusResponse reports whether an identity has an enrolled face
type StatusResponse struct {
	Identity         string `json:"identity"`
	HasFaceEmbedding bool   `json:"has_face_embedding"`
}

// Get reports whether the identity has a usable enrolled face
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := recognition.CanonicalIdentity(chi.URLParam(r, "identity"))
	respondJSON(w, http.StatusOK, StatusResponse{
		Identity:         identity,
		HasFaceEmbedding: h.service.HasEmbedding(identity),
	})
}

// Delete removes the identity's enrolled face. Deleting twice succeeds.
func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Clear(r.Context(), chi.URLParam(r, "identity")); err != nil {
		respondServiceError(w, "clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Neighbors lists the enrolled identities closest to the identity's face
func (h *GalleryHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	k := 0
	if s := r.URL.Query().Get("k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxNeighbors {
			respondError(w, http.StatusBadRequest, "k must be between 1 and 100")
			return
		}
		k = n
	}

	var (
		found []recognition.Neighbor
		err   error
	)
	if r.URL.Query().Get("source") == "store" {
		found, err = h.service.NearestStored(r.Context(), chi.URLParam(r, "identity"), k)
	} else {
		found, err = h.service.Neighbors(r.Context(), chi.URLParam(r, "identity"), k)
	}
	if err != nil {
		respondServiceError(w, "neighbors", err)
		return
	}

	if found == nil {
		found = []recognition.Neighbor{}
	}
	for i := range found {
		found[i].Similarity = roundConfidence(found[i].Similarity)
	}
	respondJSON(w, http.StatusOK, found)
}

// List returns gallery statistics
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Stats())
}

// Sync reloads the gallery from the store
func (h *GalleryHandler) Sync(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Sync(r.Context())
	if err != nil {
		respondServiceError(w, "sync", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
