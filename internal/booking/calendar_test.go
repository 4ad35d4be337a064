package booking

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildICS(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	ics := string(BuildICS(CalendarEvent{
		UID:     "apt-1@spa-concierge",
		Summary: "Appointment at Spa, Nails; Lashes",
		Start:   time.Date(2026, time.June, 12, 9, 0, 0, 0, loc),
		End:     time.Date(2026, time.June, 12, 10, 0, 0, 0, loc),
		Stamp:   time.Date(2026, time.March, 1, 8, 30, 15, 0, time.UTC),
	}))

	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n"))
	assert.True(t, strings.HasSuffix(ics, "END:VEVENT\r\nEND:VCALENDAR\r\n"))
	assert.Contains(t, ics, "\r\nUID:apt-1@spa-concierge\r\n")
	assert.Contains(t, ics, "\r\nDTSTAMP:20260301T083015Z\r\n")
	assert.Contains(t, ics, "\r\nDTSTART:20260612T140000Z\r\n")
	assert.Contains(t, ics, "\r\nDTEND:20260612T150000Z\r\n")
	assert.Contains(t, ics, `SUMMARY:Appointment at Spa\, Nails\; Lashes`)
	assert.NotContains(t, strings.ReplaceAll(ics, "\r\n", ""), "\n")
}

func TestDirCalendarStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewDirCalendarStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Put(ctx, "apt-1", []byte("BEGIN:VCALENDAR"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "apt-1.ics"))

	data, err := store.Get(ctx, "apt-1")
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(data))

	_, err = store.Get(ctx, "apt-2")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Put(ctx, "../escape", nil)
	require.Error(t, err)

	require.NoError(t, store.Delete(ctx, "apt-1"))
	_, err = store.Get(ctx, "apt-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, "apt-1"))
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3CalendarStore(t *testing.T) {
	ctx := context.Background()
	api := &fakeS3{}
	store := NewS3CalendarStore(api, "spa-bucket", "ics")

	ref, err := store.Put(ctx, "apt-1", []byte("BEGIN:VCALENDAR"))
	require.NoError(t, err)
	assert.Equal(t, "s3://spa-bucket/ics/apt-1.ics", ref)

	data, err := store.Get(ctx, "apt-1")
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(data))

	_, err = store.Get(ctx, "apt-2")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "apt-1"))
	_, err = store.Get(ctx, "apt-1")
	require.ErrorIs(t, err, ErrNotFound)

	api.putErr = errors.New("denied")
	_, err = store.Put(ctx, "apt-3", nil)
	require.Error(t, err)
}
