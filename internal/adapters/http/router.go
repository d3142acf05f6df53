package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/akulikov/autograder/internal/core/ports"
)

// Metrics is everything the router records: the request observations taken
// by the middleware plus intake-level counters. Nil disables recording.
type Metrics interface {
	RequestMetrics
	RecordSubmissionAccepted(fileCount int, sizes []int64)
}

type Router struct {
	intake  ports.SubmissionIntake
	reader  ports.SubmissionReader
	metrics Metrics
}

func NewRouter(intake ports.SubmissionIntake, reader ports.SubmissionReader, metrics Metrics) *Router {
	return &Router{
		intake:  intake,
		reader:  reader,
		metrics: metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/submissions", rt.createSubmission)
	mux.HandleFunc("/v1/submissions/", rt.getSubmission)
	return requestIDMiddleware(observeMiddleware(rt.metrics, mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createSubmission accepts a multipart form with one or more "files" parts, a
// "rubric" field and an optional "points_available" field.
func (rt *Router) createSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one 'files' part is required"})
		return
	}

	var points float64
	if raw := strings.TrimSpace(r.FormValue("points_available")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "points_available must be a positive number"})
			return
		}
		points = parsed
	}

	uploads := make([]ports.FileUpload, 0, len(parts))
	closers := make([]func() error, 0, len(parts))
	defer func() {
		for _, close := range closers {
			_ = close()
		}
	}()
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable multipart file part"})
			return
		}
		closers = append(closers, f.Close)
		uploads = append(uploads, ports.FileUpload{
			Filename:  part.Filename,
			MimeType:  part.Header.Get("Content-Type"),
			SizeBytes: part.Size,
			Body:      f,
		})
	}

	sub, err := rt.intake.Accept(r.Context(), uploads, r.FormValue("rubric"), points)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.metrics != nil {
		sizes := make([]int64, len(uploads))
		for i, u := range uploads {
			sizes[i] = u.SizeBytes
		}
		rt.metrics.RecordSubmissionAccepted(len(uploads), sizes)
	}
	writeJSON(w, http.StatusAccepted, sub)
}

// getSubmission serves /v1/submissions/{id} and /v1/submissions/{id}/result.
func (rt *Router) getSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/submissions/")
	id, wantResult := strings.CutSuffix(rest, "/result")
	id = strings.Trim(id, "/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "submission id is required"})
		return
	}

	if wantResult {
		result, err := rt.reader.GetResult(r.Context(), id)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	sub, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
