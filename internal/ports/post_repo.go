package ports

import (
	"context"

	"github.com/Vovarama1992/featured-media/internal/models"
)

type PostRepository interface {
	InsertPost(ctx context.Context, post *models.Post) (*models.Post, error)
	GetPostByID(ctx context.Context, id int) (*models.Post, error)
	GetPostMeta(ctx context.Context, postID int, key string) (string, bool, error)
	UpdatePostMeta(ctx context.Context, postID int, key, value string) error
}

type OptionRepository interface {
	GetOption(ctx context.Context, name string) (string, bool, error)
	UpdateOption(ctx context.Context, name, value string) error
	DeleteOption(ctx context.Context, name string) error
	ListOptions(ctx context.Context, prefix string) (map[string]string, error)
}
