package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/tierstore/tierstore/internal/circuit"
	"github.com/tierstore/tierstore/pkg/errors"
	"github.com/tierstore/tierstore/pkg/retry"
	"github.com/tierstore/tierstore/pkg/types"
)

// Tier names used in metrics labels and reports.
const (
	TierL1 = "l1"
	TierL2 = "l2"
	TierL3 = "l3"
)

// MultiLevelConfig configures the cache hierarchy.
type MultiLevelConfig struct {
	// L1Size and L2Size are entry capacities of the memory tiers.
	L1Size int
	L2Size int

	// Directory is the root of the L3 disk store.
	Directory string

	// DefaultTTL applies to Set calls without an explicit TTL.
	DefaultTTL time.Duration

	// Compression gzips L3 blobs.
	Compression bool

	// Retry and Breaker tune the L3 write/read discipline.
	Retry   retry.Config
	Breaker circuit.Config

	Logger   *zap.Logger
	Recorder types.Recorder
}

// expiryRecord tracks when a key was written and how long it stays valid.
// One record exists per key ever set, independent of tier residency.
type expiryRecord struct {
	created time.Time
	ttl     time.Duration
}

type counters struct {
	l1Hits        uint64
	l2Hits        uint64
	l3Hits        uint64
	misses        uint64
	sets          uint64
	invalidations uint64
}

// MultiLevelCache composes the three tiers into one cache:
//
//	L1 (hot, memory) → L2 (warm, memory) → L3 (cold, disk)
//
// Reads promote upward one tier at a time: an L2 hit is copied into L1, an
// L3 hit into L2 only — disk hits earn their way back into L1 via a
// subsequent access. Writes go to L1 and L3; L2 is populated exclusively by
// promotion, so an overwritten key may leave a stale L2 copy behind until
// eviction or invalidation. That is acceptable because L1 and L3 are
// authoritative and checked around it.
//
// A single mutex guards the tiers and the expiry map so the get-then-promote
// sequence is atomic with respect to concurrent Set/Invalidate of the same
// key; a promotion can never resurrect a value that was just invalidated.
type MultiLevelCache[V any] struct {
	mu     sync.Mutex
	l1     *TierCache[V]
	l2     *TierCache[V]
	l3     *PersistentStore[V]
	expiry map[string]expiryRecord

	defaultTTL time.Duration
	counters   counters

	logger   *zap.Logger
	recorder types.Recorder

	// now is swappable in tests.
	now func() time.Time
}

// NewMultiLevelCache builds the hierarchy. The codec defines the L3 byte
// format; memory tiers hold values directly.
func NewMultiLevelCache[V any](codec types.Codec[V], config MultiLevelConfig) (*MultiLevelCache[V], error) {
	if config.L1Size <= 0 {
		config.L1Size = 100
	}
	if config.L2Size <= 0 {
		config.L2Size = 1000
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := config.Recorder
	if recorder == nil {
		recorder = types.NopRecorder{}
	}

	l3, err := NewPersistentStore[V](codec, PersistentStoreConfig{
		Directory:   config.Directory,
		Compression: config.Compression,
		Retry:       config.Retry,
		Breaker:     config.Breaker,
		Logger:      logger,
		Recorder:    recorder,
	})
	if err != nil {
		return nil, err
	}

	c := &MultiLevelCache[V]{
		l1:         NewTierCache[V](config.L1Size),
		l2:         NewTierCache[V](config.L2Size),
		l3:         l3,
		expiry:     make(map[string]expiryRecord),
		defaultTTL: config.DefaultTTL,
		logger:     logger,
		recorder:   recorder,
		now:        time.Now,
	}

	c.l1.OnEvict(func(string) { recorder.RecordEviction(TierL1) })
	c.l2.OnEvict(func(string) { recorder.RecordEviction(TierL2) })

	return c, nil
}

// Get checks L1, then L2, then L3, promoting on the way back up. An
// expired key is purged from every tier and reported as a miss. Exactly
// one statistics counter moves per call.
func (c *MultiLevelCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	if record, ok := c.expiry[key]; ok {
		if c.now().Sub(record.created) > record.ttl {
			c.invalidateLocked(key)
			c.counters.misses++
			c.recorder.RecordMiss()
			return zero, false
		}
	}

	if value, ok := c.l1.Get(key); ok {
		c.counters.l1Hits++
		c.recorder.RecordHit(TierL1)
		return value, true
	}

	if value, ok := c.l2.Get(key); ok {
		c.counters.l2Hits++
		c.recorder.RecordHit(TierL2)
		c.l1.Set(key, value)
		return value, true
	}

	if value, ok := c.l3.Get(key); ok {
		c.counters.l3Hits++
		c.recorder.RecordHit(TierL3)
		c.l2.Set(key, value)
		return value, true
	}

	c.counters.misses++
	c.recorder.RecordMiss()
	return zero, false
}

// Set writes the value to L1 and L3 with the default TTL.
func (c *MultiLevelCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL writes the value to L1 and L3. A non-positive ttl selects the
// instance default. L2 is deliberately skipped; it fills via promotion
// only.
func (c *MultiLevelCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.l1.Set(key, value)
	c.l3.Set(key, value)

	c.expiry[key] = expiryRecord{created: c.now(), ttl: ttl}

	c.counters.sets++
	c.recorder.RecordSet()
	c.recorder.SetTierSize(TierL1, c.l1.Len())
	c.recorder.SetTierSize(TierL2, c.l2.Len())
}

// Invalidate removes the key from every tier and the expiry map. It
// reports whether the key was present anywhere.
func (c *MultiLevelCache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.invalidateLocked(key)
}

// invalidateLocked removes key everywhere. Caller must hold c.mu.
func (c *MultiLevelCache[V]) invalidateLocked(key string) bool {
	removedL1 := c.l1.Remove(key)
	removedL2 := c.l2.Remove(key)
	removedL3 := c.l3.Delete(key)
	_, hadExpiry := c.expiry[key]
	delete(c.expiry, key)

	found := removedL1 || removedL2 || removedL3 || hadExpiry
	if found {
		c.counters.invalidations++
		c.recorder.RecordInvalidations(1)
		c.recorder.SetTierSize(TierL1, c.l1.Len())
		c.recorder.SetTierSize(TierL2, c.l2.Len())
	}
	return found
}

// InvalidatePattern invalidates every known key matching the shell-glob
// pattern and returns how many were invalidated. Matching runs against the
// union of keys in L1, L2, and the expiry map: L3 files are named by key
// hash and cannot be enumerated by logical key, so only keys this process
// has seen are matchable. A malformed pattern fails fast.
func (c *MultiLevelCache[V]) InvalidatePattern(pattern string) (int, error) {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return 0, errors.WrapError(errors.ErrCodeInvalidPattern, "failed to compile glob pattern", err).
			WithComponent("multilevel").WithContext("pattern", pattern)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{})
	var matched []string

	collect := func(keys []string) {
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if matcher.Match(key) {
				matched = append(matched, key)
			}
		}
	}

	collect(c.l1.Keys())
	collect(c.l2.Keys())
	expiryKeys := make([]string, 0, len(c.expiry))
	for key := range c.expiry {
		expiryKeys = append(expiryKeys, key)
	}
	collect(expiryKeys)

	for _, key := range matched {
		c.invalidateLocked(key)
	}

	return len(matched), nil
}

// Clear empties all tiers and the expiry map and resets every statistics
// counter. Calling it twice is a no-op the second time.
func (c *MultiLevelCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.l1.Clear()
	c.l2.Clear()
	err := c.l3.Clear()

	c.expiry = make(map[string]expiryRecord)
	c.counters = counters{}

	c.recorder.SetTierSize(TierL1, 0)
	c.recorder.SetTierSize(TierL2, 0)
	c.recorder.SetTierSize(TierL3, 0)

	if err != nil {
		c.logger.Warn("failed to clear persistent tier", zap.Error(err))
		return err
	}
	return nil
}

// Stats returns a snapshot of cache statistics. L3 size is a file count
// and costs a directory walk; avoid calling on a hot path.
func (c *MultiLevelCache[V]) Stats() types.Stats {
	c.mu.Lock()
	snapshot := c.counters
	l1Size := c.l1.Len()
	l2Size := c.l2.Len()
	c.mu.Unlock()

	l3Size := c.l3.Len()

	totalHits := snapshot.l1Hits + snapshot.l2Hits + snapshot.l3Hits
	totalRequests := totalHits + snapshot.misses

	rate := func(hits uint64) float64 {
		if totalRequests == 0 {
			return 0
		}
		return float64(hits) / float64(totalRequests) * 100
	}

	stats := types.Stats{
		HitRate:       rate(totalHits),
		TotalRequests: totalRequests,
		TotalHits:     totalHits,
		TotalMisses:   snapshot.misses,
		L1Hits:        snapshot.l1Hits,
		L2Hits:        snapshot.l2Hits,
		L3Hits:        snapshot.l3Hits,
		L1Size:        l1Size,
		L2Size:        l2Size,
		L3Size:        l3Size,
		Sets:          snapshot.sets,
		Invalidations: snapshot.invalidations,
		L1HitRate:     rate(snapshot.l1Hits),
		L2HitRate:     rate(snapshot.l2Hits),
		L3HitRate:     rate(snapshot.l3Hits),
	}

	c.recorder.SetTierSize(TierL3, l3Size)

	return stats
}

// Info returns a human-readable statistics report.
func (c *MultiLevelCache[V]) Info() string {
	stats := c.Stats()

	return fmt.Sprintf(`Multi-Level Cache Statistics:
  Total Requests: %d
  Hit Rate: %.1f%%

  L1 (Hot):   %d hits (%.1f%%) - %d items
  L2 (Warm):  %d hits (%.1f%%) - %d items
  L3 (Disk):  %d hits (%.1f%%) - %d items

  Misses: %d
  Sets: %d
  Invalidations: %d
`,
		stats.TotalRequests, stats.HitRate,
		stats.L1Hits, stats.L1HitRate, stats.L1Size,
		stats.L2Hits, stats.L2HitRate, stats.L2Size,
		stats.L3Hits, stats.L3HitRate, stats.L3Size,
		stats.TotalMisses, stats.Sets, stats.Invalidations)
}
