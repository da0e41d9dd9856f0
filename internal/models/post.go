package models

import "time"

const (
	PostTypeAttachment = "attachment"
	PostTypePost       = "post"
)

// Meta keys shared with existing catalogs.
const (
	MetaOriginalURL        = "_tribe_importer_original_url"
	MetaAttachmentMetadata = "_wp_attachment_metadata"
	MetaThumbnailID        = "_thumbnail_id"
)

type Post struct {
	ID        int       `db:"id" json:"id"`
	Type      string    `db:"post_type" json:"type"`
	Title     string    `db:"post_title" json:"title"`
	Excerpt   string    `db:"post_excerpt" json:"excerpt,omitempty"`
	MimeType  string    `db:"post_mime_type" json:"mimeType,omitempty"`
	GUID      string    `db:"guid" json:"url"`        // canonical URL
	FilePath  string    `db:"file_path" json:"-"`     // absolute path on disk, attachments only
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (p *Post) IsAttachment() bool {
	return p != nil && p.Type == PostTypeAttachment
}

// AssetGUID is one row of the canonical URL index.
type AssetGUID struct {
	ID   int    `db:"id"`
	GUID string `db:"guid"`
}

// SourceURLTag is one row of the origin URL index.
type SourceURLTag struct {
	AssetID   int    `db:"id"`
	SourceURL string `db:"meta_value"`
}

type AttachmentMetadata struct {
	File     string `json:"file"`
	FileSize int    `json:"filesize"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}
