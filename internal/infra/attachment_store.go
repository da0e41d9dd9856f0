package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/Vovarama1992/featured-media/internal/models"
	"github.com/Vovarama1992/featured-media/internal/ports"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// AttachmentStore is the media store: bytes go to the FileStore, the
// attachment record and its meta go to the post repository.
type AttachmentStore struct {
	files *FileStore
	posts ports.PostRepository
	log   *zap.SugaredLogger
}

func NewAttachmentStore(files *FileStore, posts ports.PostRepository, log *zap.SugaredLogger) ports.MediaStore {
	return &AttachmentStore{files: files, posts: posts, log: log}
}

func (s *AttachmentStore) Store(ctx context.Context, content []byte, filenameHint string) (*models.Post, error) {
	file, err := s.files.Save(content, filenameHint)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	post, err := s.posts.InsertPost(ctx, &models.Post{
		Type:     models.PostTypeAttachment,
		Title:    file.Name,
		MimeType: file.MimeType,
		GUID:     file.URL,
		FilePath: file.Path,
	})
	if err != nil {
		s.files.Remove(file)
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	meta := attachmentMetadata(file, content)
	if raw, err := json.Marshal(meta); err == nil {
		if err := s.posts.UpdatePostMeta(ctx, post.ID, models.MetaAttachmentMetadata, string(raw)); err != nil {
			s.log.Warnw("[STORE][META] attachment metadata not saved", "id", post.ID, "err", err)
		}
	}

	s.log.Infow("[STORE][OK] attachment created",
		"id", post.ID,
		"file", file.RelPath,
		"mime", file.MimeType,
		"bytes", file.Size,
	)
	return post, nil
}

func (s *AttachmentStore) TagSourceURL(ctx context.Context, assetID int, sourceURL string) error {
	return s.posts.UpdatePostMeta(ctx, assetID, models.MetaOriginalURL, sourceURL)
}

func (s *AttachmentStore) GetAsset(ctx context.Context, id int) (*models.Post, error) {
	return s.posts.GetPostByID(ctx, id)
}

func attachmentMetadata(file *StoredFile, content []byte) models.AttachmentMetadata {
	meta := models.AttachmentMetadata{
		File:     file.RelPath,
		FileSize: file.Size,
	}
	if !strings.HasPrefix(file.MimeType, "image/") {
		return meta
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(content)); err == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}
	return meta
}
