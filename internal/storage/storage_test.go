package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	civic_errors "civic-polls/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("6f1c1f0e-2d7a-4f5e-9a53-1b2c3d4e5f60")
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "6f1c1f0e-2d7a-4f5e-9a53-1b2c3d4e5f60/headshot-1700000000123", ObjectKey(id, KindHeadshot, at))
	assert.Equal(t, "6f1c1f0e-2d7a-4f5e-9a53-1b2c3d4e5f60/passport-1700000000123", ObjectKey(id, KindPassport, at))
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		want        error
	}{
		{"jpeg", "image/jpeg", 1024, nil},
		{"png with params", "image/png; charset=binary", 1024, nil},
		{"pdf", "application/pdf", 1024, nil},
		{"empty type", "", 1024, civic_errors.ErrUnsupportedMedia},
		{"zip", "application/zip", 1024, civic_errors.ErrUnsupportedMedia},
		{"text", "text/plain", 10, civic_errors.ErrUnsupportedMedia},
		{"too large", "image/jpeg", 11 << 20, civic_errors.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.contentType, tt.size, 10<<20)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSniffContentType(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want string
		ok   bool
	}{
		{"pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"), "application/pdf", true},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "image/png", true},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), "image/jpeg", true},
		{"text", []byte("just some words"), "text/plain", false},
		{"html", []byte("<html><body>hi</body></html>"), "text/html", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.body)
			got, err := SniffContentType(r)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, tt.want), got)
			assert.Equal(t, tt.ok, ValidateContentType(got) == nil)

			// The reader is rewound for the upload.
			rest, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.body, rest)
		})
	}
}

func TestPublicURL(t *testing.T) {
	key := "u/headshot-1"
	assert.Equal(t, "https://cdn.example.org/u/headshot-1",
		publicURL(S3Config{PublicBase: "https://cdn.example.org", Bucket: "b"}, key))
	assert.Equal(t, "http://localhost:9000/profiles/u/headshot-1",
		publicURL(S3Config{Endpoint: "http://localhost:9000/", Bucket: "profiles"}, key))
	assert.Equal(t, "https://profiles.s3.eu-west-1.amazonaws.com/u/headshot-1",
		publicURL(S3Config{Bucket: "profiles", Region: "eu-west-1"}, key))
}
