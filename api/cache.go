package api

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aluiziolira/motofit/metrics"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/recommend"
)

// ResultCache memoizes recommendations per catalog version and query.
// Cached results are shared and must not be modified.
type ResultCache struct {
	lru     *expirable.LRU[string, *recommend.Result]
	metrics *metrics.Metrics
}

// NewResultCache returns a cache of at most size results. A size of zero
// disables caching.
func NewResultCache(size int, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	c := &ResultCache{metrics: m}
	if size > 0 {
		c.lru = expirable.NewLRU[string, *recommend.Result](size, nil, ttl)
	}
	return c
}

// Recommend returns the cached result for q against cat, computing and
// storing it on a miss.
func (c *ResultCache) Recommend(cat *models.Catalog, q recommend.Query) (*recommend.Result, error) {
	if c == nil || c.lru == nil || cat == nil {
		return recommend.Recommend(cat, q)
	}
	key := fmt.Sprintf("%d|%s", cat.Version, q.Key())
	if res, ok := c.lru.Get(key); ok {
		c.metrics.IncCacheLookup(true)
		return res, nil
	}
	c.metrics.IncCacheLookup(false)

	res, err := recommend.Recommend(cat, q)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, res)
	return res, nil
}

// Len is the number of cached results.
func (c *ResultCache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
