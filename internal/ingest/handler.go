package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-concierge/internal/retrieval"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

const defaultMaxUploadBytes = 20 << 20

// EnqueueRequest is the body of POST /admin/ingest.
type EnqueueRequest struct {
	Kind       JobKind `json:"kind"`
	Collection string  `json:"collection"`
	URL        string  `json:"url,omitempty"`
	Bucket     string  `json:"bucket,omitempty"`
	Key        string  `json:"key,omitempty"`
}

// UploadResponse reports the result of an inline PDF upload.
type UploadResponse struct {
	Collection retrieval.Collection `json:"collection"`
	File       string               `json:"file"`
	Chunks     int                  `json:"chunks"`
}

// Handler exposes ingestion to operators.
type Handler struct {
	pipeline       *Pipeline
	publisher      *Publisher
	jobs           JobStore
	maxUploadBytes int64
	logger         *logging.Logger
}

// NewHandler builds the admin ingest handler. Without a publisher the queued
// endpoint answers 503; without a job store job lookups do.
func NewHandler(pipeline *Pipeline, publisher *Publisher, jobs JobStore, maxUploadBytes int64, logger *logging.Logger) *Handler {
	if pipeline == nil {
		panic("ingest: pipeline cannot be nil")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		pipeline:       pipeline,
		publisher:      publisher,
		jobs:           jobs,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Enqueue handles POST /admin/ingest.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "ingest queue not configured")
		return
	}
	var req EnqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	job := Job{
		Kind:       JobKind(strings.ToLower(strings.TrimSpace(string(req.Kind)))),
		Collection: retrieval.Collection(strings.TrimSpace(req.Collection)),
		URL:        strings.TrimSpace(req.URL),
		Bucket:     strings.TrimSpace(req.Bucket),
		Key:        strings.TrimSpace(req.Key),
	}
	if err := job.Validate(); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.publisher.Enqueue(r.Context(), job)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to enqueue ingest job", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, job)
}

// UploadPDF handles POST /admin/ingest/pdf, a multipart upload with a "file"
// part and an optional "collection" field. The PDF is indexed inline.
func (h *Handler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	collection := retrieval.CompanyDocs
	if raw := r.FormValue("collection"); strings.TrimSpace(raw) != "" {
		collection, err = retrieval.ParseCollection(raw)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "failed to read upload")
		return
	}
	chunks, err := h.pipeline.IngestPDF(r.Context(), collection, data)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Warn("pdf ingest failed", "file", header.Filename, "error", err)
		h.writeError(w, r, http.StatusUnprocessableEntity, "could not index pdf")
		return
	}
	h.writeJSON(w, r, http.StatusCreated, UploadResponse{Collection: collection, File: header.Filename, Chunks: chunks})
}

// Job handles GET /admin/ingest/jobs/{id}.
func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "job tracking not configured")
		return
	}
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrJobNotFound) {
		h.writeError(w, r, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to load ingest job", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "failed to load job")
		return
	}
	h.writeJSON(w, r, http.StatusOK, job)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to write JSON response", "error", err)
	}
}
