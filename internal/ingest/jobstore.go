package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

const jobTTL = 7 * 24 * time.Hour

// JobStatus represents the lifecycle of an ingest job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("ingest: job not found")

// JobRecord captures the persisted state of an ingest job.
type JobRecord struct {
	JobID        string    `dynamodbav:"jobId" json:"job_id"`
	Status       JobStatus `dynamodbav:"status" json:"status"`
	Kind         JobKind   `dynamodbav:"kind" json:"kind"`
	Collection   string    `dynamodbav:"collection" json:"collection"`
	Source       string    `dynamodbav:"source" json:"source"`
	Chunks       int       `dynamodbav:"chunks" json:"chunks"`
	ErrorMessage string    `dynamodbav:"errorMessage,omitempty" json:"error,omitempty"`
	CreatedAt    string    `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt    string    `dynamodbav:"updatedAt" json:"updated_at"`
	ExpiresAt    int64     `dynamodbav:"expiresAt,omitempty" json:"-"`
}

func newJobRecord(job Job) *JobRecord {
	source := job.URL
	if job.Kind == JobKindS3 {
		source = "s3://" + job.Bucket + "/" + job.Key
	}
	return &JobRecord{
		JobID:      job.ID,
		Kind:       job.Kind,
		Collection: string(job.Collection),
		Source:     source,
	}
}

// JobStore persists ingest job status.
type JobStore interface {
	PutPending(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
	MarkCompleted(ctx context.Context, jobID string, chunks int) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoJobStore persists job records to DynamoDB.
type DynamoJobStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	now       func() time.Time
}

var _ JobStore = (*DynamoJobStore)(nil)

// NewDynamoJobStore builds a store backed by the provided DynamoDB client.
func NewDynamoJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoJobStore {
	if client == nil {
		panic("ingest: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("ingest: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoJobStore{client: client, tableName: tableName, logger: logger, now: time.Now}
}

// PutPending inserts a new pending job record.
func (s *DynamoJobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("ingest: job cannot be nil")
	}
	now := s.now().UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("ingest: failed to marshal job: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("ingest: failed to persist job: %w", err)
	}
	return nil
}

// MarkCompleted records how many chunks the job indexed.
func (s *DynamoJobStore) MarkCompleted(ctx context.Context, jobID string, chunks int) error {
	if jobID == "" {
		return errors.New("ingest: jobID required")
	}
	return s.updateJob(ctx, jobID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusCompleted)},
			":chunks":  &types.AttributeValueMemberN{Value: fmt.Sprint(chunks)},
			":error":   &types.AttributeValueMemberS{Value: ""},
			":updated": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		"SET #status = :status, chunks = :chunks, #error = :error, #updated = :updated",
	)
}

// MarkFailed updates a job to the failed state.
func (s *DynamoJobStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if jobID == "" {
		return errors.New("ingest: jobID required")
	}
	return s.updateJob(ctx, jobID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":error":   &types.AttributeValueMemberS{Value: errMsg},
			":updated": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		"SET #status = :status, #error = :error, #updated = :updated",
	)
}

// GetJob fetches a job by ID.
func (s *DynamoJobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("ingest: jobID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}
	var job JobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("ingest: failed to decode job: %w", err)
	}
	return &job, nil
}

func (s *DynamoJobStore) updateJob(ctx context.Context, jobID string, values map[string]types.AttributeValue, expression string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression: aws.String(expression),
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("ingest: failed to update job %s: %w", jobID, err)
	}
	return nil
}

// MemoryJobStore keeps job records in process memory.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]JobRecord
	now  func() time.Time
}

var _ JobStore = (*MemoryJobStore)(nil)

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]JobRecord), now: time.Now}
}

func (s *MemoryJobStore) PutPending(_ context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("ingest: job cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; ok {
		return fmt.Errorf("ingest: job %s already exists", job.JobID)
	}
	job.Status = JobStatusPending
	job.CreatedAt = s.now().UTC().Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.JobID] = *job
	return nil
}

func (s *MemoryJobStore) GetJob(_ context.Context, jobID string) (*JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (s *MemoryJobStore) MarkCompleted(_ context.Context, jobID string, chunks int) error {
	return s.update(jobID, func(job *JobRecord) {
		job.Status = JobStatusCompleted
		job.Chunks = chunks
		job.ErrorMessage = ""
	})
}

func (s *MemoryJobStore) MarkFailed(_ context.Context, jobID string, errMsg string) error {
	return s.update(jobID, func(job *JobRecord) {
		job.Status = JobStatusFailed
		job.ErrorMessage = errMsg
	})
}

func (s *MemoryJobStore) update(jobID string, apply func(*JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	apply(&job)
	job.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	s.jobs[jobID] = job
	return nil
}
