package infra

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/Vovarama1992/featured-media/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memPostRepo struct {
	nextID    int
	posts     map[int]*models.Post
	meta      map[int]map[string]string
	insertErr error
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{
		nextID: 100,
		posts:  map[int]*models.Post{},
		meta:   map[int]map[string]string{},
	}
}

func (r *memPostRepo) InsertPost(_ context.Context, post *models.Post) (*models.Post, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	r.nextID++
	post.ID = r.nextID
	cp := *post
	r.posts[post.ID] = &cp
	return post, nil
}

func (r *memPostRepo) GetPostByID(_ context.Context, id int) (*models.Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memPostRepo) GetPostMeta(_ context.Context, postID int, key string) (string, bool, error) {
	v, ok := r.meta[postID][key]
	return v, ok, nil
}

func (r *memPostRepo) UpdatePostMeta(_ context.Context, postID int, key, value string) error {
	if r.meta[postID] == nil {
		r.meta[postID] = map[string]string{}
	}
	r.meta[postID][key] = value
	return nil
}

func TestAttachmentStoreStoreCreatesAttachment(t *testing.T) {
	files := newTestFileStore(t)
	repo := newMemPostRepo()
	store := NewAttachmentStore(files, repo, zap.NewNop().Sugar())

	post, err := store.Store(context.Background(), pngBytes(t, 4, 3), "cover.png")
	require.NoError(t, err)

	assert.Equal(t, 101, post.ID)
	assert.Equal(t, models.PostTypeAttachment, post.Type)
	assert.Equal(t, "cover.png", post.Title)
	assert.Equal(t, "image/png", post.MimeType)
	assert.Equal(t, "https://example.org/uploads/2024/03/cover.png", post.GUID)

	raw, ok, _ := repo.GetPostMeta(context.Background(), post.ID, models.MetaAttachmentMetadata)
	require.True(t, ok)
	var meta models.AttachmentMetadata
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	assert.Equal(t, "2024/03/cover.png", meta.File)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 3, meta.Height)
}

func TestAttachmentStoreStoreRollsBackFileOnInsertError(t *testing.T) {
	files := newTestFileStore(t)
	repo := newMemPostRepo()
	repo.insertErr = errors.New("db down")
	store := NewAttachmentStore(files, repo, zap.NewNop().Sugar())

	_, err := store.Store(context.Background(), []byte("data"), "note.txt")
	require.Error(t, err)

	entries, err := os.ReadDir(files.dir + "/2024/03")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAttachmentStoreTagAndGet(t *testing.T) {
	repo := newMemPostRepo()
	store := NewAttachmentStore(newTestFileStore(t), repo, zap.NewNop().Sugar())
	ctx := context.Background()

	post, err := store.Store(ctx, []byte("plain text"), "readme.txt")
	require.NoError(t, err)

	require.NoError(t, store.TagSourceURL(ctx, post.ID, "https://remote.example/readme.txt"))
	v, ok, _ := repo.GetPostMeta(ctx, post.ID, models.MetaOriginalURL)
	assert.True(t, ok)
	assert.Equal(t, "https://remote.example/readme.txt", v)

	got, err := store.GetAsset(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.GUID, got.GUID)

	missing, err := store.GetAsset(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
