package redis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-vitotrips/internal/auth"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/utils"
)

const (
	IdempotencyHeader  = "Idempotency-Key"
	ReplayedHeader     = "X-Idempotency-Replayed"
	processingMarker   = "PROCESSING"
	defaultInFlightTTL = 30 * time.Second
	defaultResultTTL   = 24 * time.Hour
)

// storedResponse is what a finished request leaves behind for replays.
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on POST requests. Keys are scoped to the caller. Requests
// without the header pass straight through.
type Idempotency struct {
	Client      *redis.Client
	InFlightTTL time.Duration
	ResultTTL   time.Duration
	Logger      *logger.Logger
}

func NewIdempotency(client *redis.Client, resultTTL time.Duration, log *logger.Logger) *Idempotency {
	if resultTTL <= 0 {
		resultTTL = defaultResultTTL
	}
	return &Idempotency{Client: client, InFlightTTL: defaultInFlightTTL, ResultTTL: resultTTL, Logger: log}
}

func idempotencyKey(r *http.Request, key string) string {
	caller := "anonymous"
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		caller = p.Email
	}
	return fmt.Sprintf("idempotency:%s:%s:%s", caller, r.URL.Path, key)
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (m *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		redisKey := idempotencyKey(r, key)

		val, err := m.Client.Get(ctx, redisKey).Result()
		switch {
		case err == nil && val == processingMarker:
			utils.WriteError(w, http.StatusConflict, "Request already in progress", "a request with this idempotency key is still being processed")
			return
		case err == nil:
			var stored storedResponse
			if jsonErr := json.Unmarshal([]byte(val), &stored); jsonErr == nil && stored.Status >= 200 {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(stored.Status)
				w.Write(stored.Body)
				return
			}
			m.Logger.Warn("REDIS", fmt.Sprintf("Discarding unreadable idempotency record %s", redisKey))
			if err := m.Client.Del(ctx, redisKey).Err(); err != nil {
				m.Logger.Error("REDIS", fmt.Sprintf("Failed to discard idempotency record: %v", err))
			}
		case err != redis.Nil:
			// without redis the request runs unguarded
			m.Logger.Error("REDIS", fmt.Sprintf("Idempotency lookup failed: %v", err))
			next.ServeHTTP(w, r)
			return
		}

		acquired, err := m.Client.SetNX(ctx, redisKey, processingMarker, m.InFlightTTL).Result()
		if err != nil {
			m.Logger.Error("REDIS", fmt.Sprintf("Idempotency reservation failed: %v", err))
			next.ServeHTTP(w, r)
			return
		}
		if !acquired {
			utils.WriteError(w, http.StatusConflict, "Request already in progress", "a request with this idempotency key is still being processed")
			return
		}

		cw := &captureWriter{ResponseWriter: w}
		next.ServeHTTP(cw, r)

		// only successes are remembered; a failed attempt may be retried with the same key
		if cw.status < 200 || cw.status >= 300 || !json.Valid(cw.body.Bytes()) {
			m.Client.Del(ctx, redisKey)
			return
		}
		record, _ := json.Marshal(storedResponse{Status: cw.status, Body: cw.body.Bytes()})
		if err := m.Client.Set(ctx, redisKey, record, m.ResultTTL).Err(); err != nil {
			m.Logger.Error("REDIS", fmt.Sprintf("Failed to store idempotent response: %v", err))
		}
	})
}
