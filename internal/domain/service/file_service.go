package service

import (
	"context"
	"io"
)

// MaxUploadSize is the ceiling for a single image upload.
const MaxUploadSize = 5 * 1024 * 1024

var acceptedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// AcceptedImageMIME reports whether mimeType is one of the image types the
// chat pipeline accepts as an attachment.
func AcceptedImageMIME(mimeType string) bool {
	return acceptedImageMIMEs[mimeType]
}

type FileUploadService interface {
	UploadFile(ctx context.Context, file io.Reader, mimeType, folder string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
	Close() error
}
