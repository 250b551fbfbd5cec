package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Pinger is the part of a pool the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the database section of the health report.
type Health struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Pool   *PoolStats `json:"pool,omitempty"`
}

const pingTimeout = 5 * time.Second

// Check pings the database with a bounded timeout. A nil pinger reports the
// registry as disabled.
func Check(ctx context.Context, p Pinger) Health {
	if p == nil {
		return Health{Status: "disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	h := Health{Status: "healthy"}
	if pool, ok := p.(*pgxpool.Pool); ok {
		h.Pool = GetPoolStats(pool)
	}
	if err := p.Ping(ctx); err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
	}
	return h
}

// Healthy reports whether h allows the service to answer requests.
func (h Health) Healthy() bool {
	return h.Status != "unhealthy"
}
