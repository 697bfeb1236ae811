package repository

import (
	"context"

	"lapakchat/internal/domain/entity"
)

type FileMetadataRepository interface {
	Create(ctx context.Context, meta *entity.FileMetadata) error
	GetByURL(ctx context.Context, url string) (*entity.FileMetadata, error)
}
