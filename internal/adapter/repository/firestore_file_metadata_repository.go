package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/pkg/errors"
)

type firestoreFileMetadataRepository struct {
	client *firestore.Client
}

func NewFirestoreFileMetadataRepository(client *firestore.Client) repository.FileMetadataRepository {
	return &firestoreFileMetadataRepository{
		client: client,
	}
}

func (r *firestoreFileMetadataRepository) Create(ctx context.Context, meta *entity.FileMetadata) error {
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	meta.CreatedAt = time.Now()

	_, err := r.client.Collection("files").Doc(meta.ID).Set(ctx, meta)
	if err != nil {
		return errors.Internal("Failed to create file metadata", err)
	}
	return nil
}

func (r *firestoreFileMetadataRepository) GetByURL(ctx context.Context, url string) (*entity.FileMetadata, error) {
	iter := r.client.Collection("files").Where("url", "==", url).Limit(1).Documents(ctx)
	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("File", nil)
		}
		return nil, errors.Internal("Failed to query file metadata", err)
	}

	var meta entity.FileMetadata
	if err := doc.DataTo(&meta); err != nil {
		return nil, errors.Internal("Failed to parse file metadata", err)
	}
	return &meta, nil
}
