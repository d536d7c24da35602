package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"echovia/internal/media"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Fetcher downloads remote media into storage with a deadline and a size cap
type Fetcher struct {
	httpClient *http.Client
	storage    *media.Storage
	logger     *logrus.Logger
}

// NewFetcher creates a fetcher writing into storage
func NewFetcher(httpClient *http.Client, storage *media.Storage, logger *logrus.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Fetcher{httpClient: httpClient, storage: storage, logger: logger}
}

// Relay downloads rawURL into storage. The extension comes from the
// response content type, then the URL path, then fallbackExt.
func (f *Fetcher) Relay(ctx context.Context, rawURL, accept, fallbackExt string, timeout time.Duration, limit int64) (media.Stored, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return media.Stored{}, newError(CategoryInvalidInput, "invalid media URL", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", "identity")

	started := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return media.Stored{}, failure(ctx, "download media", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return media.Stored{}, newError(CategoryConversionFailed,
			fmt.Sprintf("media unavailable (%d), the link may have expired", resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return media.Stored{}, newError(CategoryNetwork, fmt.Sprintf("media source returned %d", resp.StatusCode), nil)
	}
	if limit > 0 && resp.ContentLength > limit {
		return media.Stored{}, newError(CategoryTooLarge,
			fmt.Sprintf("media is %s, limit %s", humanize.IBytes(uint64(resp.ContentLength)), humanize.IBytes(uint64(limit))), media.ErrTooLarge)
	}

	ext := media.ExtForContentType(resp.Header.Get("Content-Type"), "")
	if ext == "" {
		ext = path.Ext(req.URL.Path)
	}
	if ext == "" {
		ext = fallbackExt
	}

	stored, err := f.storage.Save(resp.Body, ext, limit)
	if err != nil {
		return media.Stored{}, failure(ctx, "store media", err)
	}

	f.logger.WithFields(logrus.Fields{
		"url":      req.URL.Host,
		"size":     humanize.IBytes(uint64(stored.Size)),
		"duration": time.Since(started).Round(time.Millisecond),
		"file":     stored.Name,
	}).Info("Relayed media")
	return stored, nil
}

// failure categorizes a transfer error, treating any error after the
// deadline passed as a timeout.
func failure(ctx context.Context, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(CategoryTimeout, msg, err)
	}
	return wrap(msg, err)
}
