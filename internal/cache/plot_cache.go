// Package cache implements the TTL-bound Redis cache in front of the
// plot inventory store.  Entries are keyed per plot, per location
// collection and per statistics aggregate; any write to a plot deletes
// every key that could serve stale data about it before the write
// returns.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veridia/plot-reservation/internal/model"
)

// globalStatsKey is the location slot used for the cross-location
// statistics aggregate.
const globalStatsKey = "_global"

// PlotCache caches plot reads in Redis.  A nil client disables the
// cache: every Get misses and every Set and Invalidate is a no-op, so
// the service degrades to plain database reads when Redis is down.
type PlotCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New returns a PlotCache with the given TTL and key prefix.
func New(client *redis.Client, ttl time.Duration, prefix string) *PlotCache {
	return &PlotCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *PlotCache) plotKey(location string, id uint64) string {
	return fmt.Sprintf("%s:plot:%s:%d", c.prefix, location, id)
}

func (c *PlotCache) listKey(location string) string {
	return fmt.Sprintf("%s:plots:%s", c.prefix, location)
}

func (c *PlotCache) statsKey(location string) string {
	if location == "" {
		location = globalStatsKey
	}
	return fmt.Sprintf("%s:stats:%s", c.prefix, location)
}

// GetPlot returns a cached plot and whether it was present.
func (c *PlotCache) GetPlot(ctx context.Context, location string, id uint64) (model.Plot, bool) {
	var p model.Plot
	return p, c.get(ctx, c.plotKey(location, id), &p)
}

// SetPlot stores a plot under its exact key.
func (c *PlotCache) SetPlot(ctx context.Context, p model.Plot) {
	c.set(ctx, c.plotKey(p.Location, p.ID), p)
}

// GetList returns a cached location collection.
func (c *PlotCache) GetList(ctx context.Context, location string) ([]model.Plot, bool) {
	var plots []model.Plot
	return plots, c.get(ctx, c.listKey(location), &plots)
}

// SetList stores a location collection.
func (c *PlotCache) SetList(ctx context.Context, location string, plots []model.Plot) {
	c.set(ctx, c.listKey(location), plots)
}

// GetStats returns cached aggregate statistics for a location, or the
// global aggregate when location is empty.
func (c *PlotCache) GetStats(ctx context.Context, location string) (model.LocationStats, bool) {
	var s model.LocationStats
	return s, c.get(ctx, c.statsKey(location), &s)
}

// SetStats stores aggregate statistics.
func (c *PlotCache) SetStats(ctx context.Context, s model.LocationStats) {
	c.set(ctx, c.statsKey(s.Location), s)
}

// Invalidate deletes every key that could serve stale data about the
// given plot: its exact key, its location collection, the location
// statistics and the global statistics.
func (c *PlotCache) Invalidate(ctx context.Context, location string, id uint64) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx,
		c.plotKey(location, id),
		c.listKey(location),
		c.statsKey(location),
		c.statsKey(""),
	)
}

func (c *PlotCache) get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *PlotCache) set(ctx context.Context, key string, v any) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}
