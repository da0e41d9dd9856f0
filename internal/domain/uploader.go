package domain

import (
	"context"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/Vovarama1992/featured-media/internal/metrics"
	"github.com/Vovarama1992/featured-media/internal/models"
	"github.com/Vovarama1992/featured-media/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	uploadEventsBuffer   = 100
	defaultUploadTimeout = 2 * time.Minute
)

type flightResult struct {
	id       int
	uploaded bool
}

// Uploader resolves featured image references to attachment ids, uploading
// remote images on first use. It keeps two lazily loaded indexes: canonical
// attachment URL -> id and original source URL -> id.
type Uploader struct {
	store   ports.MediaStore
	catalog ports.AssetCatalog
	fetcher ports.RemoteFetcher
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	mu          sync.RWMutex
	initialized bool
	guids       map[string]int
	originals   map[string]int

	uploads       singleflight.Group
	uploadTimeout time.Duration
	events        chan ports.UploadEvent
}

func NewUploader(
	store ports.MediaStore,
	catalog ports.AssetCatalog,
	fetcher ports.RemoteFetcher,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *Uploader {
	return &Uploader{
		store:   store,
		catalog: catalog,
		fetcher: fetcher,
		metrics: m,
		log:     log,

		uploadTimeout: defaultUploadTimeout,
		events:        make(chan ports.UploadEvent, uploadEventsBuffer),
	}
}

func (u *Uploader) Events() <-chan ports.UploadEvent { return u.events }

// Reset drops both indexes; the next URL lookup reloads them from the catalog.
func (u *Uploader) Reset() {
	u.mu.Lock()
	u.initialized = false
	u.guids = nil
	u.originals = nil
	u.mu.Unlock()

	u.metrics.SetIndexSize(0, 0)
	u.log.Infow("[RESOLVE][RESET] indexes cleared")
}

func (u *Uploader) Stats() ports.IndexStats {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return ports.IndexStats{
		Initialized:   u.initialized,
		CanonicalURLs: len(u.guids),
		SourceURLs:    len(u.originals),
	}
}

// Resolve returns the attachment id for ref. Every failure is reported as
// ok == false; the cause only goes to the log.
func (u *Uploader) Resolve(ctx context.Context, ref models.MediaRef) (int, bool) {
	switch ref.Kind() {
	case models.MediaRefID:
		return u.resolveID(ctx, ref.ID())
	case models.MediaRefURL:
		return u.resolveURL(ctx, ref.URL())
	default:
		return 0, false
	}
}

func (u *Uploader) resolveID(ctx context.Context, id int) (int, bool) {
	post, err := u.store.GetAsset(ctx, id)
	if err != nil {
		u.log.Warnw("[RESOLVE][ID][ERR]", "id", id, "err", err)
		u.metrics.ObserveResolve(models.MediaRefID.String(), metrics.OutcomeNotFound)
		return 0, false
	}
	if !post.IsAttachment() {
		u.metrics.ObserveResolve(models.MediaRefID.String(), metrics.OutcomeNotFound)
		return 0, false
	}
	u.metrics.ObserveResolve(models.MediaRefID.String(), metrics.OutcomeExisting)
	return post.ID, true
}

func (u *Uploader) resolveURL(ctx context.Context, rawURL string) (int, bool) {
	kind := models.MediaRefURL.String()

	if err := u.ensureIndex(ctx); err != nil {
		u.log.Warnw("[RESOLVE][INDEX][ERR]", "err", err)
		u.metrics.ObserveResolve(kind, metrics.OutcomeNotFound)
		return 0, false
	}

	if id, ok := u.lookup(rawURL); ok {
		u.metrics.ObserveResolve(kind, metrics.OutcomeHit)
		return id, true
	}

	// Concurrent resolves of one URL share a single upload. The upload runs
	// detached from the caller: once started it finishes, tags and indexes
	// the asset even if the request that started it goes away.
	var leader bool
	ch := u.uploads.DoChan(rawURL, func() (any, error) {
		leader = true
		if id, ok := u.lookup(rawURL); ok {
			return flightResult{id: id}, nil
		}

		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.uploadTimeout)
		defer cancel()

		id := u.upload(uctx, rawURL)
		return flightResult{id: id, uploaded: id > 0}, nil
	})

	var res flightResult
	select {
	case r := <-ch:
		res, _ = r.Val.(flightResult)
	case <-ctx.Done():
		u.metrics.ObserveResolve(kind, metrics.OutcomeNotFound)
		return 0, false
	}

	switch {
	case res.id <= 0:
		u.metrics.ObserveResolve(kind, metrics.OutcomeNotFound)
		return 0, false
	case leader && res.uploaded:
		u.metrics.ObserveResolve(kind, metrics.OutcomeUploaded)
	default:
		u.metrics.ObserveResolve(kind, metrics.OutcomeHit)
	}
	return res.id, true
}

func (u *Uploader) lookup(rawURL string) (int, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if id, ok := u.guids[rawURL]; ok {
		return id, true
	}
	if id, ok := u.originals[rawURL]; ok {
		return id, true
	}
	return 0, false
}

// ensureIndex loads both indexes in one pass the first time a URL is looked
// up. On error the uploader stays uninitialized so the next call retries.
func (u *Uploader) ensureIndex(ctx context.Context) error {
	u.mu.RLock()
	ready := u.initialized
	u.mu.RUnlock()
	if ready {
		return nil
	}

	start := time.Now()

	assets, err := u.catalog.ListAssets(ctx)
	if err != nil {
		u.metrics.ObserveIndexLoad(err)
		return err
	}
	tags, err := u.catalog.ListSourceURLTags(ctx)
	if err != nil {
		u.metrics.ObserveIndexLoad(err)
		return err
	}

	guids := make(map[string]int, len(assets))
	for _, a := range assets {
		guids[a.GUID] = a.ID
	}
	originals := make(map[string]int, len(tags))
	for _, t := range tags {
		originals[t.SourceURL] = t.AssetID
	}

	u.mu.Lock()
	if !u.initialized {
		u.guids = guids
		u.originals = originals
		u.initialized = true
	}
	canonical, source := len(u.guids), len(u.originals)
	u.mu.Unlock()

	u.metrics.ObserveIndexLoad(nil)
	u.metrics.SetIndexSize(canonical, source)
	u.log.Infow("[RESOLVE][INDEX] loaded",
		"canonical", canonical,
		"source", source,
		"dur", time.Since(start),
	)
	return nil
}

// upload fetches rawURL and stores it as a new attachment. It returns 0 on
// any failure.
func (u *Uploader) upload(ctx context.Context, rawURL string) int {
	start := time.Now()

	parsed, ok := validURL(rawURL)
	if !ok {
		u.log.Debugw("[UPLOAD][SKIP] invalid url", "url", rawURL)
		return 0
	}

	content, err := u.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		u.log.Warnw("[UPLOAD][FETCH][ERR]", "url", rawURL, "err", err)
		return 0
	}

	post, err := u.store.Store(ctx, content, path.Base(parsed.Path))
	if err != nil || post == nil {
		u.log.Warnw("[UPLOAD][STORE][ERR]", "url", rawURL, "err", err)
		return 0
	}

	// An untagged asset cannot be found again after a reload, so it only
	// enters the canonical index and the resolve fails.
	tagErr := u.store.TagSourceURL(ctx, post.ID, rawURL)

	u.mu.Lock()
	if u.guids == nil {
		u.guids = make(map[string]int)
	}
	if u.originals == nil {
		u.originals = make(map[string]int)
	}
	u.guids[post.GUID] = post.ID
	if tagErr == nil {
		u.originals[rawURL] = post.ID
	}
	canonical, source := len(u.guids), len(u.originals)
	u.mu.Unlock()

	if tagErr != nil {
		u.metrics.SetIndexSize(canonical, source)
		u.log.Errorw("[UPLOAD][TAG][ERR] asset stored without source url",
			"id", post.ID,
			"url", rawURL,
			"err", tagErr,
		)
		return 0
	}

	u.metrics.SetIndexSize(canonical, source)
	u.metrics.ObserveUpload(time.Since(start))

	u.emit(ports.UploadEvent{
		AssetID:   post.ID,
		SourceURL: rawURL,
		URL:       post.GUID,
		MimeType:  post.MimeType,
		RoomID:    ports.RoomFrom(ctx),
	})

	u.log.Infow("[UPLOAD][OK]",
		"id", post.ID,
		"url", rawURL,
		"guid", post.GUID,
		"dur", time.Since(start),
	)
	return post.ID
}

func (u *Uploader) emit(ev ports.UploadEvent) {
	select {
	case u.events <- ev:
	default:
		u.log.Debugw("[UPLOAD][EVENT][DROP] buffer full", "id", ev.AssetID)
	}
}

// validURL accepts absolute URLs with a scheme and a host.
func validURL(raw string) (*url.URL, bool) {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, false
	}
	return parsed, true
}
