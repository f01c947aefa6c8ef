package api

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
)

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

type idempotencyEntry struct {
	resp     cachedResponse
	inFlight bool
}

// idempotencyCache replays the stored response when a write arrives again
// with the same Idempotency-Key, so queued CLI commands can be resent safely.
// A key is reserved while its first request runs.
type idempotencyCache struct {
	mu    sync.Mutex
	limit int
	order []string
	seen  map[string]idempotencyEntry
}

func newIdempotencyCache(limit int) *idempotencyCache {
	return &idempotencyCache{limit: limit, seen: make(map[string]idempotencyEntry)}
}

// reserve claims key for the caller. When the key is already known it returns
// the stored entry and false.
func (c *idempotencyCache) reserve(key string) (idempotencyEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.seen[key]; ok {
		return e, false
	}
	c.seen[key] = idempotencyEntry{inFlight: true}
	return idempotencyEntry{}, true
}

// release drops a reservation whose request did not succeed.
func (c *idempotencyCache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.seen[key]; ok && e.inFlight {
		delete(c.seen, key)
	}
}

func (c *idempotencyCache) put(key string, r cachedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[key] = idempotencyEntry{resp: r}
	c.order = append(c.order, key)
	for len(c.order) > c.limit {
		delete(c.seen, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *idempotencyCache) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		key = r.Method + " " + r.URL.Path + " " + key
		entry, owner := c.reserve(key)
		if !owner {
			if entry.inFlight {
				writeError(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
				return
			}
			for k, v := range entry.resp.header {
				w.Header()[k] = v
			}
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(entry.resp.status)
			_, _ = w.Write(entry.resp.body)
			return
		}
		defer c.release(key)
		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		// Only successful writes are remembered; a rejected command may be retried.
		if rec.status < 300 {
			c.put(key, cachedResponse{status: rec.status, header: w.Header().Clone(), body: rec.buf.Bytes()})
		}
	})
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}
