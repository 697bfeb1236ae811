package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"lapakchat/internal/domain/service"
)

// CloudStorageClient stores chat image attachments in a GCS bucket. The chat
// pipeline only ever records the returned URL and MIME type, never bytes.
type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

var _ service.FileUploadService = (*CloudStorageClient)(nil)

func NewCloudStorageClient(ctx context.Context, bucketName, credentialsPath string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (c *CloudStorageClient) UploadFile(ctx context.Context, file io.Reader, mimeType, folder string) (string, error) {
	filename := fmt.Sprintf("%s/%s-%s%s", folder, uuid.New().String(), time.Now().Format("20060102150405"), extensionFor(mimeType))

	obj := c.client.Bucket(c.bucketName).Object(filename)
	wc := obj.NewWriter(ctx)
	wc.ContentType = mimeType
	wc.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(wc, file); err != nil {
		return "", fmt.Errorf("failed to copy file to GCS: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("failed to set ACL: %v", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, filename), nil
}

func (c *CloudStorageClient) DeleteFile(ctx context.Context, fileURL string) error {
	// Expected URL format: https://storage.googleapis.com/bucket-name/file-path
	const prefix = "https://storage.googleapis.com/"
	if !strings.HasPrefix(fileURL, prefix) {
		return fmt.Errorf("invalid GCS URL format")
	}

	path := fileURL[len(prefix):]
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] != c.bucketName {
		return fmt.Errorf("invalid GCS URL format or bucket mismatch")
	}

	obj := c.client.Bucket(c.bucketName).Object(parts[1])
	if err := obj.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete file: %v", err)
	}

	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}
