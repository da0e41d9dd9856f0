package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Vovarama1992/featured-media/internal/ports"
	"go.uber.org/zap"
)

var ErrBodyTooLarge = errors.New("remote body exceeds limit")

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	attempts  int
	maxBytes  int64
	pause     time.Duration
	log       *zap.SugaredLogger
}

type HTTPFetcherOptions struct {
	Timeout   time.Duration
	Attempts  int
	MaxBytes  int64
	UserAgent string
}

func NewHTTPFetcher(opts HTTPFetcherOptions, log *zap.SugaredLogger) ports.RemoteFetcher {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		attempts:  opts.Attempts,
		maxBytes:  opts.MaxBytes,
		pause:     500 * time.Millisecond,
		log:       log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		body, retry, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.log.Debugw("[FETCH][ERR]", "url", url, "attempt", attempt, "err", err)

		if !retry || attempt == f.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.pause):
		}
	}

	return nil, lastErr
}

// fetchOnce reports whether a failed attempt is worth repeating.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode >= 500, fmt.Errorf("fetch http %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, false, ErrBodyTooLarge
	}

	return body, false, nil
}
