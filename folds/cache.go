package folds

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes plans so that every strategy of a run, and repeated runs
// over the same data, replay identical partitions without re-planning.
// Cached partitions are shared and must be treated as read-only.
//
// Safe for concurrent use.
type Cache struct {
	plans *lru.Cache[string, []Partition]
}

// NewCache returns a cache holding at most size plans.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 16
	}
	plans, err := lru.New[string, []Partition](size)
	if err != nil {
		return nil, err
	}
	return &Cache{plans: plans}, nil
}

// Plan returns the cached plan for (labels, scheme, seed), planning and
// storing it on a miss. The boolean reports a cache hit.
func (c *Cache) Plan(labels []string, scheme Scheme, seed int64) ([]Partition, bool, error) {
	key := planKey(labels, scheme, seed)
	if plan, ok := c.plans.Get(key); ok {
		return plan, true, nil
	}
	plan, err := Plan(labels, scheme, seed)
	if err != nil {
		return nil, false, err
	}
	c.plans.Add(key, plan)
	return plan, false, nil
}

// Len returns the number of cached plans.
func (c *Cache) Len() int {
	return c.plans.Len()
}

func planKey(labels []string, scheme Scheme, seed int64) string {
	d := xxhash.New()
	for _, l := range labels {
		_, _ = d.WriteString(l)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%x/%d/%s/%d", d.Sum64(), len(labels), scheme, seed)
}
