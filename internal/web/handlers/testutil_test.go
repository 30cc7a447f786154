package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/faceid/internal/database/mock"
	"github.com/kozaktomas/faceid/internal/embedding"
	"github.com/kozaktomas/faceid/internal/recognition"
)

// fakeExtractor returns a fixed embedding for any image
type fakeExtractor struct {
	vector embedding.Vector
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) (embedding.Vector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector.Clone(), nil
}

// testService creates a recognition service over a mock store
func testService(t *testing.T, ext recognition.Extractor) (*recognition.Service, *mock.MockGalleryStore) {
	t.Helper()
	store := mock.NewMockGalleryStore()
	svc, err := recognition.NewService(ext, store, embedding.JSONCodec{}, recognition.Options{Threshold: 0.5})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, store
}

// axis returns the unit vector along dimension i
func axis(i int) []float64 {
	v := make([]float64, embedding.Dim)
	v[i] = 1
	return v
}

// withSimilarity returns a unit vector whose score against axis(0) is s
func withSimilarity(s float64, other int) []float64 {
	v := make([]float64, embedding.Dim)
	v[0] = s
	v[other] = math.Sqrt(1 - s*s)
	return v
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
