package ports

import (
	"context"

	"github.com/Vovarama1992/featured-media/internal/models"
)

type UploadEvent struct {
	AssetID   int
	SourceURL string
	URL       string
	MimeType  string
	// RoomID is the websocket room of the request that triggered the
	// upload; empty means every room.
	RoomID string
}

type roomKey struct{}

// WithRoom tags ctx so upload events it triggers go to one websocket room.
func WithRoom(ctx context.Context, roomID string) context.Context {
	if roomID == "" {
		return ctx
	}
	return context.WithValue(ctx, roomKey{}, roomID)
}

func RoomFrom(ctx context.Context) string {
	roomID, _ := ctx.Value(roomKey{}).(string)
	return roomID
}

type IndexStats struct {
	Initialized   bool `json:"initialized"`
	CanonicalURLs int  `json:"canonicalUrls"`
	SourceURLs    int  `json:"sourceUrls"`
}

type AttachmentResolver interface {
	Resolve(ctx context.Context, ref models.MediaRef) (int, bool)
	Reset()
	Stats() IndexStats
	Events() <-chan UploadEvent
}
