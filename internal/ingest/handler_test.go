package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerEnv struct {
	router http.Handler
	queue  *MemoryQueue
	jobs   *MemoryJobStore
}

func newHandlerEnv(t *testing.T, withQueue bool) handlerEnv {
	t.Helper()
	queue := NewMemoryQueue(4)
	jobs := NewMemoryJobStore()
	pipeline := NewPipeline(PipelineConfig{Indexer: newFakeIndexer(), Logger: quietLogger()})

	var publisher *Publisher
	if withQueue {
		publisher = NewPublisher(queue, jobs, quietLogger())
	}
	h := NewHandler(pipeline, publisher, jobs, 1<<10, quietLogger())

	r := chi.NewRouter()
	r.Post("/admin/ingest", h.Enqueue)
	r.Post("/admin/ingest/pdf", h.UploadPDF)
	r.Get("/admin/ingest/jobs/{id}", h.Job)
	return handlerEnv{router: r, queue: queue, jobs: jobs}
}

func TestHandlerEnqueueAndLookup(t *testing.T) {
	env := newHandlerEnv(t, true)

	body := `{"kind":"URL","collection":"web_docs","url":" https://spa.example.com/services "}`
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/ingest", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobKindURL, job.Kind)
	assert.Equal(t, "https://spa.example.com/services", job.URL)
	assert.Equal(t, 1, env.queue.Len())

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/ingest/jobs/"+job.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var record JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, JobStatusPending, record.Status)
	assert.Equal(t, "https://spa.example.com/services", record.Source)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/ingest/jobs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerEnqueueValidation(t *testing.T) {
	env := newHandlerEnv(t, true)
	for _, body := range []string{
		`{`,
		`{"kind":"url","collection":"web_docs"}`,
		`{"kind":"s3","collection":"elsewhere","bucket":"b","key":"k"}`,
	} {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/ingest", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, env.queue.Len())
}

func TestHandlerEnqueueWithoutQueue(t *testing.T) {
	env := newHandlerEnv(t, false)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/ingest", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func multipartUpload(t *testing.T, collection string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if collection != "" {
		require.NoError(t, mw.WriteField("collection", collection))
	}
	if content != nil {
		part, err := mw.CreateFormFile("file", "menu.pdf")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest/pdf", &buf).WithContext(context.Background())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandlerUploadPDF(t *testing.T) {
	env := newHandlerEnv(t, false)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartUpload(t, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartUpload(t, "nowhere", []byte("%PDF")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartUpload(t, "company_docs", []byte("not really a pdf")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartUpload(t, "", bytes.Repeat([]byte("x"), 4<<10)))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}
