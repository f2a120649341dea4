package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client's retry key.
const IdempotencyHeader = "Idempotency-Key"

// Idem claims an Idempotency-Key in Redis before the handler runs. A second
// request with the same key and session gets 409 while the claim lives. The
// claim is released when the handler answers 4xx or 5xx so the client can
// retry. Without Redis or a key the middleware is a pass-through.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func idemKey(session, key string) string {
	sum := sha256.Sum256([]byte(session + "|" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware implements chi middleware.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		claim := idemKey(r.Header.Get("X-Session-ID"), key)
		fresh, err := i.R.SetNX(ctx, claim, time.Now().UTC().Format(time.RFC3339), i.TTL).Result()
		switch {
		case err != nil:
			JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store error", nil)
			return
		case !fresh:
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() >= http.StatusBadRequest {
			_ = i.R.Del(context.WithoutCancel(ctx), claim).Err()
		}
	})
}
