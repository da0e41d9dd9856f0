package jsonld

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Vovarama1992/featured-media/internal/models"
	"github.com/Vovarama1992/featured-media/internal/ports"
)

const schemaContext = "http://schema.org"

type Thing struct {
	Context     string `json:"@context,omitempty"`
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url"`
}

type Args struct {
	SkipDuplicates bool
	// OmitContext drops @context, for objects nested in another document.
	OmitContext bool
}

type Generator interface {
	Type() string
	Data(ctx context.Context, ids []int, args Args, seen *Tracker) ([]Thing, error)
}

// ThingGenerator builds the base schema.org object for a post.
type ThingGenerator struct {
	typ   string
	posts ports.PostRepository
}

func NewThingGenerator(typ string, posts ports.PostRepository) *ThingGenerator {
	return &ThingGenerator{typ: typ, posts: posts}
}

func (g *ThingGenerator) Type() string { return g.typ }

// Data returns one Thing per existing post in ids order. Missing posts are
// skipped, and so are ids already in seen when args.SkipDuplicates is set.
func (g *ThingGenerator) Data(ctx context.Context, ids []int, args Args, seen *Tracker) ([]Thing, error) {
	if seen == nil {
		seen = NewTracker()
	}

	out := make([]Thing, 0, len(ids))
	for _, id := range ids {
		if args.SkipDuplicates && seen.Seen(id) {
			continue
		}

		// Marked before building, released when nothing gets rendered.
		seen.Mark(id)

		post, err := g.posts.GetPostByID(ctx, id)
		if err != nil {
			seen.Unmark(id)
			return nil, fmt.Errorf("jsonld %s %d: %w", g.typ, id, err)
		}
		if post == nil {
			seen.Unmark(id)
			continue
		}

		image, err := g.thumbnailURL(ctx, id)
		if err != nil {
			seen.Unmark(id)
			return nil, fmt.Errorf("jsonld %s %d: %w", g.typ, id, err)
		}

		th := Thing{
			Type:        g.typ,
			Name:        strings.TrimSpace(post.Title),
			Description: strings.TrimSpace(post.Excerpt),
			Image:       image,
			URL:         post.GUID,
		}
		if !args.OmitContext {
			th.Context = schemaContext
		}

		out = append(out, th)
	}
	return out, nil
}

func (g *ThingGenerator) thumbnailURL(ctx context.Context, postID int) (string, error) {
	raw, ok, err := g.posts.GetPostMeta(ctx, postID, models.MetaThumbnailID)
	if err != nil || !ok {
		return "", err
	}
	thumbID, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || thumbID <= 0 {
		return "", nil
	}
	thumb, err := g.posts.GetPostByID(ctx, thumbID)
	if err != nil {
		return "", err
	}
	if !thumb.IsAttachment() {
		return "", nil
	}
	return thumb.GUID, nil
}
