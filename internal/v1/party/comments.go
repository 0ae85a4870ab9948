package party

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
)

const commentsCacheTTL = 5 * time.Minute
const commentsFetchTimeout = 5 * time.Second

type cachedComments struct {
	body      json.RawMessage
	expiresAt time.Time
}

// CommentsProxy transparently forwards comment requests to a rotating
// list of upstream Invidious instances, with a short-lived in-memory
// cache so a hot video doesn't refetch from upstream on every poll. Each
// request goes to the next instance in round-robin order; a failed request
// is not retried on another instance. The cache has no size bound, and an
// expired entry stays until the same key is fetched again.
type CommentsProxy struct {
	instances []string
	next      uint64
	client    *http.Client

	mu    sync.Mutex
	cache map[string]cachedComments
}

// NewCommentsProxy builds a proxy over the given instance list (non-empty;
// config.ValidateEnv guarantees at least one default).
func NewCommentsProxy(instances []string) *CommentsProxy {
	return &CommentsProxy{
		instances: instances,
		client:    &http.Client{Timeout: commentsFetchTimeout},
		cache:     make(map[string]cachedComments),
	}
}

func (cp *CommentsProxy) pickInstance() string {
	idx := atomic.AddUint64(&cp.next, 1) % uint64(len(cp.instances))
	return cp.instances[idx]
}

func (cp *CommentsProxy) cacheKey(videoId, sortBy, continuation string) string {
	return videoId + "|" + sortBy + "|" + continuation
}

// Fetch returns cached comments if fresh, else proxies to an upstream
// instance and caches the result on success.
func (cp *CommentsProxy) Fetch(ctx context.Context, videoId, sortBy, continuation string) (json.RawMessage, error) {
	key := cp.cacheKey(videoId, sortBy, continuation)

	cp.mu.Lock()
	if entry, ok := cp.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		cp.mu.Unlock()
		metrics.CommentsProxyRequests.WithLabelValues("cache-hit").Inc()
		return entry.body, nil
	}
	cp.mu.Unlock()

	instance := cp.pickInstance()
	url := fmt.Sprintf("%s/api/v1/comments/%s?sort_by=%s", instance, videoId, sortBy)
	if continuation != "" {
		url += "&continuation=" + continuation
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.CommentsProxyRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	resp, err := cp.client.Do(req)
	if err != nil {
		metrics.CommentsProxyRequests.WithLabelValues("upstream-error").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		metrics.CommentsProxyRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		metrics.CommentsProxyRequests.WithLabelValues("upstream-status").Inc()
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	cp.mu.Lock()
	cp.cache[key] = cachedComments{body: body, expiresAt: time.Now().Add(commentsCacheTTL)}
	cp.mu.Unlock()

	metrics.CommentsProxyRequests.WithLabelValues("upstream-success").Inc()
	return body, nil
}
