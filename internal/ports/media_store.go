package ports

import (
	"context"

	"github.com/Vovarama1992/featured-media/internal/models"
)

// MediaStore persists binary assets and their attachment records.
type MediaStore interface {
	Store(ctx context.Context, content []byte, filenameHint string) (*models.Post, error)
	TagSourceURL(ctx context.Context, assetID int, sourceURL string) error
	// GetAsset returns nil, nil when no post has the id.
	GetAsset(ctx context.Context, id int) (*models.Post, error)
}

// AssetCatalog lists what the indexes are rebuilt from.
type AssetCatalog interface {
	ListAssets(ctx context.Context) ([]models.AssetGUID, error)
	ListSourceURLTags(ctx context.Context) ([]models.SourceURLTag, error)
}

type RemoteFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
