package api

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/neurodetect-server/internal/service"
)

const (
	reportCacheKey = "report"
	reportCacheTTL = 30 * time.Second
)

// reportCache holds the last computed aggregate report for a short TTL.
// Submissions and deletions invalidate it eagerly so the dashboard never
// shows stale counts for long.
type reportCache struct {
	lru *expirable.LRU[string, *service.Report]
}

func newReportCache() *reportCache {
	return &reportCache{
		lru: expirable.NewLRU[string, *service.Report](1, nil, reportCacheTTL),
	}
}

func (rc *reportCache) get() (*service.Report, bool) {
	return rc.lru.Get(reportCacheKey)
}

func (rc *reportCache) put(report *service.Report) {
	rc.lru.Add(reportCacheKey, report)
}

func (rc *reportCache) invalidate() {
	rc.lru.Remove(reportCacheKey)
}
