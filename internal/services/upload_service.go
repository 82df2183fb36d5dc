package services

import (
	"context"
	"io"
	"time"

	"civic-polls/internal/storage"

	"github.com/google/uuid"
)

// Upload is a file received from a client.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// UploadService stores identity documents and headshots in the blob store
// under per-user keys.
type UploadService struct {
	blobs    BlobStore
	maxBytes int64
	now      func() time.Time
}

func NewUploadService(blobs BlobStore, maxBytes int64) *UploadService {
	return &UploadService{blobs: blobs, maxBytes: maxBytes, now: time.Now}
}

// Validate checks type and size without touching the store.
func (s *UploadService) Validate(u *Upload) error {
	if u == nil {
		return nil
	}
	return storage.ValidateUpload(u.ContentType, u.Size, s.maxBytes)
}

// Store uploads u and returns its public URL.
func (s *UploadService) Store(ctx context.Context, userID uuid.UUID, kind storage.DocumentKind, u *Upload) (string, error) {
	if err := s.Validate(u); err != nil {
		return "", err
	}
	key := storage.ObjectKey(userID, kind, s.now())
	return s.blobs.Upload(ctx, key, u.ContentType, u.Body, u.Size)
}
