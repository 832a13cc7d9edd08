package cache

import (
	"context"
	"encoding/json"
	"time"

	"finportal/internal"
	"finportal/internal/errors"
	"finportal/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// Loader fronts a Store with get-or-load semantics. Concurrent misses on
// the same key share one fill.
type Loader struct {
	name  string
	store Store
	ttl   time.Duration
	group singleflight.Group
	log   *internal.Logger
}

// NewLoader creates a loader. name labels its metrics and log lines.
func NewLoader(name string, store Store, ttl time.Duration) *Loader {
	return &Loader{
		name:  name,
		store: store,
		ttl:   ttl,
		log:   internal.DefaultLogger.With("Cache:" + name),
	}
}

// Fetch returns the cached value under key, or calls fill, stores its
// result and returns it. The boolean reports a cache hit. A failing store
// read is treated as a miss; a failing fill is returned unchanged and
// nothing is stored.
func Fetch[T any](ctx context.Context, l *Loader, key string, fill func(context.Context) (T, error)) (T, bool, error) {
	var out T

	data, ok, err := l.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues(l.name, "error").Inc()
		l.log.Warn("read %s failed, loading instead: %v", key, err)
	case ok:
		if err := json.Unmarshal(data, &out); err == nil {
			metrics.CacheRequests.WithLabelValues(l.name, "hit").Inc()
			l.log.Debug("hit %s", key)
			return out, true, nil
		}
		l.log.Warn("discarding undecodable entry %s", key)
	}
	metrics.CacheRequests.WithLabelValues(l.name, "miss").Inc()

	// The shared fill is detached from the caller's cancellation, so a
	// caller giving up does not fail the others waiting on the key. The
	// warehouse adapters bound it with their query timeout.
	fillCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (interface{}, error) {
		value, err := fill(fillCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode cache entry")
		}
		if err := l.store.Set(fillCtx, key, encoded, l.ttl); err != nil {
			l.log.Warn("write %s failed: %v", key, err)
		}
		return encoded, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return out, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return out, false, res.Err
	}
	v := res.Val
	// every caller decodes its own copy
	if err := json.Unmarshal(v.([]byte), &out); err != nil {
		return out, false, errors.Wrap(err, "failed to decode cache entry")
	}
	return out, false, nil
}

// Invalidate drops one entry.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil {
		return errors.ExternalServiceError("cache", err)
	}
	l.log.Info("invalidated %s", key)
	return nil
}

// Clear drops every entry of the underlying store.
func (l *Loader) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return errors.ExternalServiceError("cache", err)
	}
	l.log.Info("cleared")
	return nil
}
