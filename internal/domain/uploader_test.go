package domain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Vovarama1992/featured-media/internal/metrics"
	"github.com/Vovarama1992/featured-media/internal/models"
	"github.com/Vovarama1992/featured-media/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu         sync.Mutex
	nextID     int
	posts      map[int]*models.Post
	tags       map[int]string
	storeErr   error
	storeNil   bool
	tagErr     error
	afterStore func()
	stores     atomic.Int32
}

func newFakeStore(nextID int) *fakeStore {
	return &fakeStore{
		nextID: nextID,
		posts:  map[int]*models.Post{},
		tags:   map[int]string{},
	}
}

func (s *fakeStore) Store(_ context.Context, content []byte, filename string) (*models.Post, error) {
	s.stores.Add(1)
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	if s.storeNil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	p := &models.Post{
		ID:       id,
		Type:     models.PostTypeAttachment,
		Title:    filename,
		GUID:     "https://local.test/uploads/" + filename,
		MimeType: "image/jpeg",
	}
	s.posts[id] = p
	if s.afterStore != nil {
		s.afterStore()
	}
	return p, nil
}

func (s *fakeStore) TagSourceURL(ctx context.Context, assetID int, sourceURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.tagErr != nil {
		return s.tagErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[assetID] = sourceURL
	return nil
}

func (s *fakeStore) GetAsset(_ context.Context, id int) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[id], nil
}

type fakeCatalog struct {
	assets    []models.AssetGUID
	tags      []models.SourceURLTag
	err       error
	listCalls atomic.Int32
}

func (c *fakeCatalog) ListAssets(context.Context) ([]models.AssetGUID, error) {
	c.listCalls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.assets, nil
}

func (c *fakeCatalog) ListSourceURLTags(context.Context) ([]models.SourceURLTag, error) {
	return c.tags, nil
}

type fakeFetcher struct {
	body  []byte
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func newTestUploader(store *fakeStore, catalog *fakeCatalog, fetcher *fakeFetcher) *Uploader {
	return NewUploader(store, catalog, fetcher, metrics.New(nil), zap.NewNop().Sugar())
}

func resolveCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != "featured_media_resolver_resolves_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestResolveUploadsOnceAndCaches(t *testing.T) {
	store := newFakeStore(42)
	catalog := &fakeCatalog{}
	fetcher := &fakeFetcher{body: []byte("jpeg")}
	u := newTestUploader(store, catalog, fetcher)
	ctx := context.Background()
	ref := models.RefFromURL("https://example.com/a.jpg")

	id, ok := u.Resolve(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, 42, id)
	assert.Equal(t, "https://example.com/a.jpg", store.tags[42])
	assert.Equal(t, "a.jpg", store.posts[42].Title)

	id, ok = u.Resolve(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, 42, id)

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int32(1), store.stores.Load())
	assert.Equal(t, int32(1), catalog.listCalls.Load())
}

func TestResolveFindsNewAssetByCanonicalURL(t *testing.T) {
	store := newFakeStore(7)
	u := newTestUploader(store, &fakeCatalog{}, &fakeFetcher{body: []byte("x")})
	ctx := context.Background()

	id, ok := u.Resolve(ctx, models.RefFromURL("https://example.com/b.png"))
	require.True(t, ok)

	again, ok := u.Resolve(ctx, models.RefFromURL(store.posts[id].GUID))
	require.True(t, ok)
	assert.Equal(t, id, again)
}

func TestResolvePrepopulatedSourceURLSkipsFetch(t *testing.T) {
	catalog := &fakeCatalog{
		tags: []models.SourceURLTag{{AssetID: 5, SourceURL: "https://example.com/old.jpg"}},
	}
	fetcher := &fakeFetcher{body: []byte("x")}
	store := newFakeStore(100)
	u := newTestUploader(store, catalog, fetcher)

	id, ok := u.Resolve(context.Background(), models.RefFromURL("https://example.com/old.jpg"))
	require.True(t, ok)
	assert.Equal(t, 5, id)
	assert.Zero(t, fetcher.calls.Load())
	assert.Zero(t, store.stores.Load())
}

func TestResolvePrepopulatedCanonicalURLWins(t *testing.T) {
	catalog := &fakeCatalog{
		assets: []models.AssetGUID{{ID: 9, GUID: "https://site.test/uploads/x.jpg"}},
		tags:   []models.SourceURLTag{{AssetID: 3, SourceURL: "https://site.test/uploads/x.jpg"}},
	}
	u := newTestUploader(newFakeStore(1), catalog, &fakeFetcher{})

	id, ok := u.Resolve(context.Background(), models.RefFromURL("https://site.test/uploads/x.jpg"))
	require.True(t, ok)
	assert.Equal(t, 9, id)
}

func TestResolveInvalidURLNeverFetches(t *testing.T) {
	fetcher := &fakeFetcher{body: []byte("x")}
	u := newTestUploader(newFakeStore(1), &fakeCatalog{}, fetcher)

	for _, raw := range []string{"not a url", "/relative/path.jpg", "example.com/a.jpg"} {
		_, ok := u.Resolve(context.Background(), models.RefFromURL(raw))
		assert.False(t, ok, raw)
	}
	assert.Zero(t, fetcher.calls.Load())
}

func TestResolveCollapsesFailures(t *testing.T) {
	ctx := context.Background()
	ref := models.RefFromURL("https://example.com/a.jpg")

	t.Run("fetch error", func(t *testing.T) {
		store := newFakeStore(1)
		u := newTestUploader(store, &fakeCatalog{}, &fakeFetcher{err: errors.New("404")})
		_, ok := u.Resolve(ctx, ref)
		assert.False(t, ok)
		assert.Zero(t, store.stores.Load())
	})

	t.Run("store rejects", func(t *testing.T) {
		store := newFakeStore(1)
		store.storeErr = errors.New("disk full")
		u := newTestUploader(store, &fakeCatalog{}, &fakeFetcher{body: []byte("x")})
		_, ok := u.Resolve(ctx, ref)
		assert.False(t, ok)
		assert.Equal(t, 0, u.Stats().SourceURLs)
	})

	t.Run("catalog error", func(t *testing.T) {
		catalog := &fakeCatalog{err: errors.New("db down")}
		fetcher := &fakeFetcher{body: []byte("x")}
		u := newTestUploader(newFakeStore(1), catalog, fetcher)

		_, ok := u.Resolve(ctx, ref)
		assert.False(t, ok)
		assert.False(t, u.Stats().Initialized)
		assert.Zero(t, fetcher.calls.Load())

		catalog.err = nil
		_, ok = u.Resolve(ctx, ref)
		assert.True(t, ok)
		assert.Equal(t, int32(2), catalog.listCalls.Load())
	})
}

func TestResolveByID(t *testing.T) {
	store := newFakeStore(1)
	store.posts[10] = &models.Post{ID: 10, Type: models.PostTypeAttachment}
	store.posts[11] = &models.Post{ID: 11, Type: models.PostTypePost}
	catalog := &fakeCatalog{}
	u := newTestUploader(store, catalog, &fakeFetcher{})
	ctx := context.Background()

	id, ok := u.Resolve(ctx, models.RefFromID(10))
	assert.True(t, ok)
	assert.Equal(t, 10, id)

	_, ok = u.Resolve(ctx, models.RefFromID(11))
	assert.False(t, ok, "wrong kind")

	_, ok = u.Resolve(ctx, models.RefFromID(404))
	assert.False(t, ok, "missing")

	_, ok = u.Resolve(ctx, models.MediaRef{})
	assert.False(t, ok, "empty")

	assert.Zero(t, catalog.listCalls.Load(), "id lookups never load the index")
}

func TestResetReloadsIndex(t *testing.T) {
	catalog := &fakeCatalog{
		assets: []models.AssetGUID{{ID: 1, GUID: "https://site.test/a.jpg"}},
	}
	u := newTestUploader(newFakeStore(50), catalog, &fakeFetcher{})
	ctx := context.Background()
	ref := models.RefFromURL("https://site.test/a.jpg")

	_, ok := u.Resolve(ctx, ref)
	require.True(t, ok)
	_, ok = u.Resolve(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, int32(1), catalog.listCalls.Load())
	assert.True(t, u.Stats().Initialized)

	u.Reset()
	assert.Zero(t, u.Stats().CanonicalURLs)
	assert.False(t, u.Stats().Initialized)

	_, ok = u.Resolve(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, int32(2), catalog.listCalls.Load())
}

func TestResolveConcurrentSameURLUploadsOnce(t *testing.T) {
	store := newFakeStore(300)
	fetcher := &fakeFetcher{body: []byte("x"), delay: 20 * time.Millisecond}
	u := newTestUploader(store, &fakeCatalog{}, fetcher)
	ref := models.RefFromURL("https://example.com/race.jpg")

	var wg sync.WaitGroup
	ids := make([]int, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, ok := u.Resolve(context.Background(), ref)
			if ok {
				ids[i] = id
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, 300, id)
	}
	assert.Equal(t, int32(1), store.stores.Load())
}

func TestResolveEmitsUploadEvent(t *testing.T) {
	u := newTestUploader(newFakeStore(42), &fakeCatalog{}, &fakeFetcher{body: []byte("x")})

	_, ok := u.Resolve(context.Background(), models.RefFromURL("https://example.com/a.jpg"))
	require.True(t, ok)

	select {
	case ev := <-u.Events():
		assert.Equal(t, 42, ev.AssetID)
		assert.Equal(t, "https://example.com/a.jpg", ev.SourceURL)
		assert.Equal(t, "https://local.test/uploads/a.jpg", ev.URL)
	default:
		t.Fatal("expected upload event")
	}
}

func TestResolveUploadSurvivesCallerCancel(t *testing.T) {
	store := newFakeStore(42)
	u := newTestUploader(store, &fakeCatalog{}, &fakeFetcher{body: []byte("x")})
	url := "https://example.com/a.jpg"

	ctx, cancel := context.WithCancel(context.Background())
	store.afterStore = cancel
	u.Resolve(ctx, models.RefFromURL(url))

	id, ok := u.Resolve(context.Background(), models.RefFromURL(url))
	require.True(t, ok)
	assert.Equal(t, 42, id)
	assert.Equal(t, int32(1), store.stores.Load())

	store.mu.Lock()
	assert.Equal(t, url, store.tags[42], "source url must be persisted")
	store.mu.Unlock()
	assert.Equal(t, 1, u.Stats().SourceURLs)
}

func TestResolveJoinerUnaffectedByLeaderCancel(t *testing.T) {
	store := newFakeStore(77)
	fetcher := &fakeFetcher{body: []byte("x"), delay: 100 * time.Millisecond}
	u := newTestUploader(store, &fakeCatalog{}, fetcher)
	ref := models.RefFromURL("https://example.com/slow.jpg")

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan bool, 1)
	go func() {
		_, ok := u.Resolve(leaderCtx, ref)
		leaderDone <- ok
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	joinerDone := make(chan int, 1)
	go func() {
		id, _ := u.Resolve(context.Background(), ref)
		joinerDone <- id
	}()
	time.Sleep(10 * time.Millisecond)
	cancelLeader()

	assert.False(t, <-leaderDone, "cancelled caller gives up")
	assert.Equal(t, 77, <-joinerDone)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int32(1), store.stores.Load())
}

func TestResolveTagFailureKeepsOriginIndexConsistent(t *testing.T) {
	store := newFakeStore(42)
	store.tagErr = errors.New("meta insert failed")
	u := newTestUploader(store, &fakeCatalog{}, &fakeFetcher{body: []byte("x")})

	_, ok := u.Resolve(context.Background(), models.RefFromURL("https://example.com/a.jpg"))
	assert.False(t, ok)

	stats := u.Stats()
	assert.Equal(t, 1, stats.CanonicalURLs, "stored asset stays reachable by its own url")
	assert.Zero(t, stats.SourceURLs)

	id, ok := u.Resolve(context.Background(), models.RefFromURL("https://local.test/uploads/a.jpg"))
	require.True(t, ok)
	assert.Equal(t, 42, id)

	select {
	case ev := <-u.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestResolveStoreReturnsNothing(t *testing.T) {
	store := newFakeStore(1)
	store.storeNil = true
	u := newTestUploader(store, &fakeCatalog{}, &fakeFetcher{body: []byte("x")})

	id, ok := u.Resolve(context.Background(), models.RefFromURL("https://example.com/a.jpg"))
	assert.False(t, ok)
	assert.Zero(t, id)
	assert.Equal(t, ports.IndexStats{Initialized: true}, u.Stats())
}

func TestResolveCountsOneUploadForJoinedCallers(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := newFakeStore(300)
	fetcher := &fakeFetcher{body: []byte("x"), delay: 20 * time.Millisecond}
	u := NewUploader(store, &fakeCatalog{}, fetcher, metrics.New(reg), zap.NewNop().Sugar())
	ref := models.RefFromURL("https://example.com/race.jpg")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.Resolve(context.Background(), ref)
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(1), resolveCount(t, reg, metrics.OutcomeUploaded))
	assert.Equal(t, float64(7), resolveCount(t, reg, metrics.OutcomeHit))
}

func TestResolveEventCarriesRoom(t *testing.T) {
	u := newTestUploader(newFakeStore(5), &fakeCatalog{}, &fakeFetcher{body: []byte("x")})
	ctx := ports.WithRoom(context.Background(), "editors")

	_, ok := u.Resolve(ctx, models.RefFromURL("https://example.com/a.jpg"))
	require.True(t, ok)

	ev := <-u.Events()
	assert.Equal(t, "editors", ev.RoomID)
}
