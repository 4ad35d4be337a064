package booking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const icsTimeFormat = "20060102T150405Z"

// CalendarEvent is the data rendered into an .ics file.
type CalendarEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	Stamp   time.Time
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

// BuildICS renders a single-event iCalendar document with CRLF line endings
// and all instants in UTC.
func BuildICS(ev CalendarEvent) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Spa Concierge//Appointments//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + ev.UID,
		"DTSTAMP:" + ev.Stamp.UTC().Format(icsTimeFormat),
		"DTSTART:" + ev.Start.UTC().Format(icsTimeFormat),
		"DTEND:" + ev.End.UTC().Format(icsTimeFormat),
		"SUMMARY:" + icsEscaper.Replace(ev.Summary),
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// CalendarStore keeps generated calendar files and hands back a reference.
type CalendarStore interface {
	Put(ctx context.Context, appointmentID string, ics []byte) (string, error)
	Get(ctx context.Context, appointmentID string) ([]byte, error)
	// Delete removes a calendar file. A missing file is not an error.
	Delete(ctx context.Context, appointmentID string) error
}

var safeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func calendarFileName(appointmentID string) (string, error) {
	if !safeIDPattern.MatchString(appointmentID) {
		return "", fmt.Errorf("booking: invalid appointment id %q", appointmentID)
	}
	return appointmentID + ".ics", nil
}

// S3API is the subset of the S3 client used by S3CalendarStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3CalendarStore writes calendar files under prefix in bucket.
type S3CalendarStore struct {
	client S3API
	bucket string
	prefix string
}

func NewS3CalendarStore(client S3API, bucket, prefix string) *S3CalendarStore {
	if client == nil {
		panic("booking: s3 client cannot be nil")
	}
	if bucket == "" {
		panic("booking: calendar bucket cannot be empty")
	}
	if prefix == "" {
		prefix = "calendars/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3CalendarStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3CalendarStore) key(appointmentID string) (string, error) {
	name, err := calendarFileName(appointmentID)
	if err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

func (s *S3CalendarStore) Put(ctx context.Context, appointmentID string, ics []byte) (string, error) {
	key, err := s.key(appointmentID)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(ics),
		ContentType: aws.String("text/calendar"),
	})
	if err != nil {
		return "", fmt.Errorf("booking: s3 put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3CalendarStore) Get(ctx context.Context, appointmentID string) ([]byte, error) {
	key, err := s.key(appointmentID)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("booking: read %s: %w", key, err)
	}
	return data, nil
}

func (s *S3CalendarStore) Delete(ctx context.Context, appointmentID string) error {
	key, err := s.key(appointmentID)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("booking: s3 delete %s: %w", key, err)
	}
	return nil
}

// DirCalendarStore writes calendar files into a local directory.
type DirCalendarStore struct {
	dir string
}

func NewDirCalendarStore(dir string) (*DirCalendarStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("booking: create calendar dir: %w", err)
	}
	return &DirCalendarStore{dir: dir}, nil
}

func (s *DirCalendarStore) Put(_ context.Context, appointmentID string, ics []byte) (string, error) {
	name, err := calendarFileName(appointmentID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, ics, 0o644); err != nil {
		return "", fmt.Errorf("booking: write calendar file: %w", err)
	}
	return path, nil
}

func (s *DirCalendarStore) Get(_ context.Context, appointmentID string) ([]byte, error) {
	name, err := calendarFileName(appointmentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: read calendar file: %w", err)
	}
	return data, nil
}

func (s *DirCalendarStore) Delete(_ context.Context, appointmentID string) error {
	name, err := calendarFileName(appointmentID)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("booking: remove calendar file: %w", err)
	}
	return nil
}
