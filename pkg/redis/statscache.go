package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

// StatsCache stores the latest run stats per project so status dashboards
// can read them without replaying a run.
type StatsCache struct {
	client *Client
	ttl    time.Duration
}

// NewStatsCache creates a stats cache with the given entry TTL.
func NewStatsCache(client *Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(projectID uuid.UUID) string {
	return "stats:" + projectID.String()
}

// Put stores the stats for a project.
func (c *StatsCache) Put(ctx context.Context, projectID uuid.UUID, stats models.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey(projectID), data, c.ttl)
}

// Get returns cached stats for a project, or ok=false on a miss.
func (c *StatsCache) Get(ctx context.Context, projectID uuid.UUID) (models.Stats, bool, error) {
	var stats models.Stats
	raw, err := c.client.Get(ctx, statsKey(projectID))
	if err != nil {
		if err == goredis.Nil {
			return stats, false, nil
		}
		return stats, false, err
	}
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return stats, false, err
	}
	return stats, true, nil
}

// Invalidate drops the cached stats for a project.
func (c *StatsCache) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	return c.client.Del(ctx, statsKey(projectID))
}
