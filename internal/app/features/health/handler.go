package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/health"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Check is one dependency pinged by the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// MongoCheck pings the primary.
func MongoCheck(client *mongo.Client) Check {
	return Check{Name: "database", Ping: func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}}
}

// RedisCheck pings the rate-limit counter store.
func RedisCheck(client redis.UniversalClient) Check {
	return Check{Name: "redis", Ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// Handler serves GET /health through waffle's health handler.
type Handler struct {
	h http.Handler
}

// NewHandler bounds each check by the ping deadline.
//
// On success: 200 and
//
//	{ "status":"ok", "checks":{"database":"ok","redis":"ok"} }
//
// When any check fails: 503, status "error", and that check reported as
// "error: <reason>".
func NewHandler(logger *zap.Logger, checks ...Check) *Handler {
	m := make(map[string]health.Check, len(checks))
	for _, c := range checks {
		ping := c.Ping
		m[c.Name] = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
			defer cancel()
			return ping(ctx)
		}
	}
	return &Handler{h: health.Handler(m, logger)}
}

// Serve handles GET /health.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	h.h.ServeHTTP(w, r)
}
