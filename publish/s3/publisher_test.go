package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestPutUploadsObject(t *testing.T) {
	fake := &fakeAPI{}
	pub := &Publisher{client: fake, bucket: "feeds", prefix: "calendars"}

	err := pub.Put(context.Background(), "yoga.ics", []byte("BEGIN:VCALENDAR"), "text/calendar")
	require.NoError(t, err)
	require.NotNil(t, fake.input)

	assert.Equal(t, "feeds", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "calendars/yoga.ics", aws.ToString(fake.input.Key))
	assert.Equal(t, "text/calendar", aws.ToString(fake.input.ContentType))

	body, err := io.ReadAll(fake.input.Body)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(body))
}

func TestPutWithoutPrefixOrContentType(t *testing.T) {
	fake := &fakeAPI{}
	pub := &Publisher{client: fake, bucket: "feeds"}

	require.NoError(t, pub.Put(context.Background(), "yoga.ics", []byte("data"), ""))
	assert.Equal(t, "yoga.ics", aws.ToString(fake.input.Key))
	assert.Nil(t, fake.input.ContentType)
}

func TestPutPropagatesFailure(t *testing.T) {
	fake := &fakeAPI{err: errors.New("access denied")}
	pub := &Publisher{client: fake, bucket: "feeds"}

	err := pub.Put(context.Background(), "yoga.ics", []byte("data"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yoga.ics")
}

func TestPutRejectsEmptyKey(t *testing.T) {
	pub := &Publisher{client: &fakeAPI{}, bucket: "feeds"}
	assert.Error(t, pub.Put(context.Background(), "", []byte("data"), ""))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}
