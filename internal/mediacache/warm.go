// SPDX-License-Identifier: MIT

package mediacache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/medialink"
	"github.com/totemview/totem/internal/metrics"
	"github.com/totemview/totem/internal/playlist"
	"github.com/totemview/totem/internal/telemetry"
)

// maxItemBytes bounds a single cached object so one oversized video cannot
// fill the device disk.
const maxItemBytes = 128 << 20

// Warmer opportunistically populates the store from playlist snapshots.
type Warmer struct {
	store       *Store
	client      *http.Client
	limiter     *rate.Limiter
	concurrency int
	fetchLimit  time.Duration
}

// NewWarmer creates a warmer with bounded concurrency and a fetch rate
// limit so warm-up traffic never starves the playback fetches.
func NewWarmer(store *Store, concurrency int, fetchLimit time.Duration, ratePerSec float64) *Warmer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Warmer{
		store: store,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), 1),
		concurrency: concurrency,
		fetchLimit:  fetchLimit,
	}
}

// cacheable reports whether the item's bytes are worth fetching ahead of
// time. Embedded video is streamed by the external service and cannot be
// cached as bytes.
func cacheable(it playlist.Item) bool {
	return it.Type == playlist.TypeImage || it.Type == playlist.TypeVideo
}

// Warm fetches and stores every cacheable playlist item that is not cached
// yet. It is fire-and-forget: every failure is swallowed after logging, and
// the call returns when the whole pool drains or ctx is canceled.
func (w *Warmer) Warm(ctx context.Context, items []playlist.Item) {
	logger := log.WithComponentFromContext(ctx, "mediacache")

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	for _, item := range items {
		if !cacheable(item) {
			metrics.RecordCacheWarm("skipped")
			continue
		}
		it := item

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			url := medialink.Resolve(it.URL)
			if w.store.Has(url) {
				metrics.RecordCacheWarm("hit")
				return
			}
			if err := w.fetchOne(ctx, url); err != nil {
				metrics.RecordCacheWarm("failed")
				logger.Debug().Err(err).
					Str(log.FieldItemID, it.ID).
					Str(log.FieldURL, url).
					Msg("cache warm-up failed")
				return
			}
			metrics.RecordCacheWarm("stored")
		}()
	}
	wg.Wait()
}

func (w *Warmer) fetchOne(ctx context.Context, url string) error {
	ctx, span := telemetry.Tracer("mediacache").Start(ctx, "cache.fetch")
	defer span.End()

	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, w.fetchLimit)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxItemBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxItemBytes {
		return fmt.Errorf("object exceeds %d bytes", maxItemBytes)
	}
	if err := w.store.Put(url, data); err != nil {
		return err
	}
	span.SetAttributes(telemetry.CacheAttributes(url, "stored", int64(len(data)))...)
	return nil
}
