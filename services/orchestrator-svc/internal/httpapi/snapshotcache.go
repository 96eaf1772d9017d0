package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"orchestrator/pkg/cache"
	"orchestrator/pkg/orchestration/monitor"
)

// snapshotCacheTTL bounds how stale a cached snapshot may be handed to a
// caller that hit a replica behind the one running the live Monitor.
const snapshotCacheTTL = 5 * time.Second

const snapshotCacheKey = "orchestrator:latest_snapshot"

// snapshotCache distributes the latest MonitoringData snapshot across
// orchestrator replicas so a getLatestMetrics call doesn't have to land
// on the specific instance whose Monitor produced it.
type snapshotCache struct {
	backend cache.Cache
}

func newSnapshotCache(backend cache.Cache) *snapshotCache {
	return &snapshotCache{backend: backend}
}

func (c *snapshotCache) publish(ctx context.Context, snap monitor.MonitoringData) {
	if c == nil || c.backend == nil {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.backend.Set(ctx, snapshotCacheKey, b, snapshotCacheTTL)
}

func (c *snapshotCache) fetch(ctx context.Context) (monitor.MonitoringData, bool) {
	if c == nil || c.backend == nil {
		return monitor.MonitoringData{}, false
	}
	b, err := c.backend.Get(ctx, snapshotCacheKey)
	if err != nil {
		return monitor.MonitoringData{}, false
	}
	var snap monitor.MonitoringData
	if err := json.Unmarshal(b, &snap); err != nil {
		return monitor.MonitoringData{}, false
	}
	return snap, true
}
