package common

import (
	"bytes"
	"log"
	"time"

	"drydock/internal/domain/deploy"
	"drydock/internal/infra/idemcache"

	"github.com/gin-gonic/gin"
)

type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotent replays a completed mutation for a repeated
// (Idempotency-Key, method, path) and marks replays with a response
// header. Only 2xx responses are cached; a failed attempt may be
// retried with the same key.
func Idempotent(cache idemcache.Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := IdempotencyKey(c)
		if key == "" {
			WriteError(c, deploy.ErrIdempotencyKeyRequired())
			return
		}
		cacheKey := idemcache.Key(key, c.Request.Method, c.Request.URL.Path)
		cached, ok, err := cache.Get(c.Request.Context(), cacheKey)
		if err != nil {
			log.Printf("idempotency lookup failed for %s: %v", cacheKey, err)
		}
		if ok {
			c.Header(HeaderReplay, "true")
			c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		}
		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Header(HeaderReplay, "false")
		c.Next()

		status := capture.Status()
		if status < 200 || status >= 300 {
			return
		}
		entry := idemcache.CachedResponse{Status: status, Body: capture.buf.Bytes()}
		if err := cache.Set(c.Request.Context(), cacheKey, entry, ttl); err != nil {
			log.Printf("idempotency store failed for %s: %v", cacheKey, err)
		}
	}
}
