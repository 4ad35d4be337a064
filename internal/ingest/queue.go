// Package ingest turns PDF files, scraped web pages and S3 objects into
// indexed retrieval chunks, either inline or through a job queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/spa-concierge/internal/retrieval"
)

// Queue carries encoded jobs between publishers and workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// JobKind names the source an ingest job reads from.
type JobKind string

const (
	JobKindURL JobKind = "url"
	JobKindS3  JobKind = "s3"
)

// Job is the queued unit of ingestion work.
type Job struct {
	ID         string               `json:"id"`
	Kind       JobKind              `json:"kind"`
	Collection retrieval.Collection `json:"collection"`
	URL        string               `json:"url,omitempty"`
	Bucket     string               `json:"bucket,omitempty"`
	Key        string               `json:"key,omitempty"`
}

// Validate reports whether the job carries what its kind needs.
func (j Job) Validate() error {
	if _, err := retrieval.ParseCollection(string(j.Collection)); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	switch j.Kind {
	case JobKindURL:
		if strings.TrimSpace(j.URL) == "" {
			return fmt.Errorf("ingest: url job requires a url")
		}
	case JobKindS3:
		if strings.TrimSpace(j.Bucket) == "" || strings.TrimSpace(j.Key) == "" {
			return fmt.Errorf("ingest: s3 job requires bucket and key")
		}
	default:
		return fmt.Errorf("ingest: unknown job kind %q", j.Kind)
	}
	return nil
}

func encodeJob(job Job) (Job, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("ingest: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("ingest: failed to decode job: %w", err)
	}
	return job, nil
}
