package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilePictureKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "admin-profiles/1700000000123.jpg", ProfilePictureKey(now, "Me.JPG"))
	assert.Equal(t, "admin-profiles/1700000000123.png", ProfilePictureKey(now, "avatar"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(ctx, Config{Driver: DriverFilesystem, Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(ctx, Config{Driver: "gcs"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverS3})
	assert.ErrorContains(t, err, "bucket required")
}

func TestMemory(t *testing.T) {
	m := NewMemory("https://cdn.example.com/profile-pictures")
	require.NoError(t, m.Upload(context.Background(), "admin-profiles/1.png", strings.NewReader("png"), "image/png"))

	o, ok := m.Get("admin-profiles/1.png")
	require.True(t, ok)
	assert.Equal(t, "png", string(o.Data))
	assert.Equal(t, "image/png", o.ContentType)
	assert.Equal(t, "https://cdn.example.com/profile-pictures/admin-profiles/1.png", m.PublicURL("admin-profiles/1.png"))

	assert.Error(t, m.Upload(context.Background(), "../etc/passwd", strings.NewReader(""), ""))
}

func TestFilesystem(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, fs.Upload(context.Background(), "admin-profiles/2.jpg", strings.NewReader("jpeg-bytes"), "image/jpeg"))

	url := fs.PublicURL("admin-profiles/2.jpg")
	assert.Equal(t, "/files/admin-profiles/2.jpg", url)

	rec := httptest.NewRecorder()
	fs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestS3(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		fake := &fakeS3{}
		s := newS3WithClient(fake, Config{Bucket: "profile-pictures"}, "eu-west-1")
		require.NoError(t, s.Upload(context.Background(), "admin-profiles/3.png", strings.NewReader("img"), "image/png"))

		require.Len(t, fake.inputs, 1)
		assert.Equal(t, "profile-pictures", aws.ToString(fake.inputs[0].Bucket))
		assert.Equal(t, "admin-profiles/3.png", aws.ToString(fake.inputs[0].Key))
		assert.Equal(t, "image/png", aws.ToString(fake.inputs[0].ContentType))
		assert.Equal(t, "img", fake.bodies[0])
		assert.Equal(t, "https://profile-pictures.s3.eu-west-1.amazonaws.com/admin-profiles/3.png", s.PublicURL("admin-profiles/3.png"))
	})

	t.Run("custom endpoint", func(t *testing.T) {
		s := newS3WithClient(&fakeS3{}, Config{Bucket: "pics", Endpoint: "http://minio:9000/"}, "us-east-1")
		assert.Equal(t, "http://minio:9000/pics/a.png", s.PublicURL("a.png"))
	})

	t.Run("error", func(t *testing.T) {
		s := newS3WithClient(&fakeS3{err: errors.New("access denied")}, Config{Bucket: "pics"}, "us-east-1")
		err := s.Upload(context.Background(), "a.png", strings.NewReader(""), "")
		assert.ErrorContains(t, err, "access denied")
	})
}
