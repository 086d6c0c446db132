package resolve

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vaultpin/internal/gateway"
)

// Refresher caches signed download URLs for private CIDs and recomputes
// every tracked one on a fixed interval, so rendered pages keep loading
// after the original signature expires. It only mutates its own cache,
// never note text.
type Refresher struct {
	builder  *gateway.Builder
	interval time.Duration

	mu   sync.Mutex
	urls map[string]string
}

func NewRefresher(builder *gateway.Builder, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Refresher{
		builder:  builder,
		interval: interval,
		urls:     make(map[string]string),
	}
}

// URL returns the cached signed URL for a CID, resolving and tracking it
// on first sight.
func (f *Refresher) URL(ctx context.Context, cid string) (string, error) {
	f.mu.Lock()
	cached, ok := f.urls[cid]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	signed, err := f.builder.Resolve(ctx, cid)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.urls[cid] = signed
	f.mu.Unlock()
	return signed, nil
}

// Start launches the periodic refresh loop; it stops when ctx is done.
func (f *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.refreshAll(ctx)
			}
		}
	}()
}

func (f *Refresher) refreshAll(ctx context.Context) {
	f.mu.Lock()
	cids := make([]string, 0, len(f.urls))
	for cid := range f.urls {
		cids = append(cids, cid)
	}
	f.mu.Unlock()

	for _, cid := range cids {
		signed, err := f.builder.Resolve(ctx, cid)
		if err != nil {
			slog.Warn("refresh signed url failed", "cid", cid, "err", err)
			continue
		}
		f.mu.Lock()
		f.urls[cid] = signed
		f.mu.Unlock()
	}
}

// Tracked reports how many CIDs the refresher is maintaining.
func (f *Refresher) Tracked() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}
