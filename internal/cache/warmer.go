package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/tierstore/tierstore/pkg/errors"
	"github.com/tierstore/tierstore/pkg/types"
)

// Warmup defaults mirroring the hot-query selection knobs.
const (
	DefaultTopN          = 20
	DefaultMinCount      = 2
	DefaultRecencyWeight = 0.3

	// recencyHalfLifeDays halves a key's recency score every seven days.
	recencyHalfLifeDays = 7.0
)

// ValueGenerator produces the value for a key during warmup. Returning an
// error marks the key skipped; it never aborts the batch.
type ValueGenerator[V any] func(key string) (V, error)

// WarmerConfig configures the cache warmer.
type WarmerConfig struct {
	// UsageLog is the path of the persisted usage ledger (a single JSON
	// document).
	UsageLog string

	// SaveEvery batches ledger persistence: the ledger is written after
	// every SaveEvery tracked queries rather than on each call.
	SaveEvery int

	// MaxConcurrent bounds parallel value generation during warmup.
	MaxConcurrent int

	Logger   *zap.Logger
	Recorder types.Recorder
}

// CacheWarmer observes query keys, persists their usage history, and
// pre-populates the cache with the hottest ones on demand. Warming is an
// optimization: every failure path degrades to "no warming" rather than an
// error the caller must handle.
type CacheWarmer[V any] struct {
	mu    sync.Mutex
	cache *MultiLevelCache[V]

	path      string
	usage     map[string]*types.UsageRecord
	order     []string // key insertion order, for stable tie-breaking
	sinceSave int
	saveEvery int

	maxConcurrent int
	logger        *zap.Logger
	recorder      types.Recorder

	// now is swappable in tests.
	now func() time.Time
}

// NewCacheWarmer loads the usage ledger and returns a warmer bound to the
// given cache. A missing or unreadable ledger starts empty.
func NewCacheWarmer[V any](cache *MultiLevelCache[V], config WarmerConfig) (*CacheWarmer[V], error) {
	if config.UsageLog == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "usage log path is required").
			WithComponent("warmer")
	}
	if config.SaveEvery <= 0 {
		config.SaveEvery = 10
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := config.Recorder
	if recorder == nil {
		recorder = types.NopRecorder{}
	}

	if err := os.MkdirAll(filepath.Dir(config.UsageLog), 0750); err != nil {
		return nil, errors.WrapError(errors.ErrCodeInvalidConfig, "failed to create usage log directory", err).
			WithComponent("warmer").WithContext("path", config.UsageLog)
	}

	w := &CacheWarmer[V]{
		cache:         cache,
		path:          config.UsageLog,
		usage:         make(map[string]*types.UsageRecord),
		saveEvery:     config.SaveEvery,
		maxConcurrent: config.MaxConcurrent,
		logger:        logger,
		recorder:      recorder,
		now:           time.Now,
	}

	w.loadLedger()

	return w, nil
}

// TrackQuery records an access to key, creating the usage record on first
// sight and merging any metadata. The ledger is persisted every SaveEvery
// calls to bound I/O.
func (w *CacheWarmer[V]) TrackQuery(key string, metadata map[string]string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()

	record, exists := w.usage[key]
	if !exists {
		record = &types.UsageRecord{
			FirstSeen: now,
			Metadata:  make(map[string]string),
		}
		w.usage[key] = record
		w.order = append(w.order, key)
	}

	record.Count++
	record.LastSeen = now
	for k, v := range metadata {
		if record.Metadata == nil {
			record.Metadata = make(map[string]string)
		}
		record.Metadata[k] = v
	}

	w.sinceSave++
	if w.sinceSave >= w.saveEvery {
		if err := w.saveLedgerLocked(); err != nil {
			w.logger.Warn("failed to persist usage ledger", zap.Error(err))
		}
		w.sinceSave = 0
	}
}

// GetHotQueries ranks tracked keys by a blend of frequency and recency:
//
//	recency = 0.5^(days_since_last_seen / 7)
//	score   = (1-weight)*count + weight*(recency*count)
//
// Keys seen fewer than minCount times are excluded. Ties keep insertion
// order.
func (w *CacheWarmer[V]) GetHotQueries(topN, minCount int, recencyWeight float64) []types.HotQuery {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	scored := make([]types.HotQuery, 0, len(w.usage))

	for _, key := range w.order {
		record, ok := w.usage[key]
		if !ok || record.Count < minCount {
			continue
		}

		daysSinceLast := now.Sub(record.LastSeen).Hours() / 24
		recencyScore := math.Pow(0.5, daysSinceLast/recencyHalfLifeDays)

		count := float64(record.Count)
		score := (1-recencyWeight)*count + recencyWeight*(recencyScore*count)

		scored = append(scored, types.HotQuery{Key: key, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	return scored
}

// WarmupCache generates and caches values for the hottest keys not already
// resident. Generator errors and panics are isolated per key. Returns the
// number of entries warmed.
func (w *CacheWarmer[V]) WarmupCache(generator ValueGenerator[V], topN int) int {
	hot := w.GetHotQueries(topN, DefaultMinCount, DefaultRecencyWeight)

	var warmed atomic.Int64

	workers := pool.New().WithMaxGoroutines(w.maxConcurrent)
	for _, query := range hot {
		key := query.Key
		workers.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Warn("value generator panicked",
						zap.String("key", key), zap.Any("panic", r))
				}
			}()

			if _, ok := w.cache.Get(key); ok {
				return
			}

			value, err := generator(key)
			if err != nil {
				w.logger.Debug("value generator skipped key",
					zap.String("key", key), zap.Error(err))
				return
			}

			w.cache.Set(key, value)
			w.recorder.RecordWarmedEntry()
			warmed.Add(1)
		})
	}
	workers.Wait()

	return int(warmed.Load())
}

// RecommendCacheSize maps the number of distinct tracked keys to a preset
// tier sizing, as a starting configuration for operators.
func (w *CacheWarmer[V]) RecommendCacheSize() types.SizeRecommendation {
	w.mu.Lock()
	unique := len(w.usage)
	w.mu.Unlock()

	switch {
	case unique < 50:
		return types.SizeRecommendation{L1: 50, L2: 200, L3: 500}
	case unique < 200:
		return types.SizeRecommendation{L1: 100, L2: 500, L3: 1000}
	case unique < 1000:
		return types.SizeRecommendation{L1: 200, L2: 1000, L3: 5000}
	default:
		return types.SizeRecommendation{L1: 500, L2: 2000, L3: 10000}
	}
}

// CleanupOldEntries drops usage records whose last access is older than
// days and persists the pruned ledger. Returns the removal count.
func (w *CacheWarmer[V]) CleanupOldEntries(days int) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().AddDate(0, 0, -days)

	removed := 0
	kept := w.order[:0]
	for _, key := range w.order {
		record, ok := w.usage[key]
		if !ok {
			continue
		}
		if record.LastSeen.Before(cutoff) {
			delete(w.usage, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	w.order = kept

	if removed > 0 {
		if err := w.saveLedgerLocked(); err != nil {
			w.logger.Warn("failed to persist usage ledger", zap.Error(err))
		}
	}

	return removed
}

// AnalyzePatterns summarizes the ledger: totals, the most common keys, keys
// active in the last 24 hours, and counts per metadata "type".
func (w *CacheWarmer[V]) AnalyzePatterns() types.UsageAnalysis {
	w.mu.Lock()
	defer w.mu.Unlock()

	analysis := types.UsageAnalysis{
		QueryTypes: make(map[string]int),
	}

	if len(w.usage) == 0 {
		return analysis
	}

	dayAgo := w.now().Add(-24 * time.Hour)

	common := make([]types.KeyCount, 0, len(w.usage))
	for _, key := range w.order {
		record, ok := w.usage[key]
		if !ok {
			continue
		}

		analysis.TotalQueries += record.Count
		common = append(common, types.KeyCount{Key: key, Count: record.Count})

		if record.LastSeen.After(dayAgo) {
			analysis.RecentQueries24h++
		}

		queryType := record.Metadata["type"]
		if queryType == "" {
			queryType = "unknown"
		}
		analysis.QueryTypes[queryType] += record.Count
	}

	analysis.UniqueQueries = len(w.usage)
	analysis.QueriesPerUnique = float64(analysis.TotalQueries) / float64(analysis.UniqueQueries)

	sort.SliceStable(common, func(i, j int) bool {
		return common[i].Count > common[j].Count
	})
	if len(common) > 10 {
		common = common[:10]
	}
	analysis.MostCommon = common

	return analysis
}

// Statistics returns a human-readable usage report.
func (w *CacheWarmer[V]) Statistics() string {
	analysis := w.AnalyzePatterns()
	sizes := w.RecommendCacheSize()

	report := fmt.Sprintf(`Cache Warmer Statistics:
  Total Queries: %d
  Unique Queries: %d
  Avg Queries per Key: %.1f
  Recent (24h): %d

Most Common Queries:
`,
		analysis.TotalQueries, analysis.UniqueQueries,
		analysis.QueriesPerUnique, analysis.RecentQueries24h)

	limit := len(analysis.MostCommon)
	if limit > 5 {
		limit = 5
	}
	for _, item := range analysis.MostCommon[:limit] {
		report += fmt.Sprintf("  %4dx  %s\n", item.Count, item.Key)
	}

	report += fmt.Sprintf(`
Recommended Cache Sizes:
  L1 (hot):  %d items
  L2 (warm): %d items
  L3 (disk): %d items
`, sizes.L1, sizes.L2, sizes.L3)

	return report
}

// Flush persists the ledger immediately, independent of the save batching.
func (w *CacheWarmer[V]) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.saveLedgerLocked()
	if err == nil {
		w.sinceSave = 0
	}
	return err
}

// TrackedKeys returns the number of distinct keys in the ledger.
func (w *CacheWarmer[V]) TrackedKeys() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.usage)
}

// loadLedger reads the persisted ledger. Any failure resets to an empty
// ledger; warming is an optimization, not correctness-critical.
func (w *CacheWarmer[V]) loadLedger() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("failed to read usage ledger, starting fresh",
				zap.String("path", w.path), zap.Error(err))
		}
		return
	}

	var usage map[string]*types.UsageRecord
	if err := json.Unmarshal(data, &usage); err != nil {
		w.logger.Warn("corrupt usage ledger, starting fresh",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	// A JSON null unmarshals into a nil record; carrying one would panic
	// the first operation that touches the key. Drop them like any other
	// corruption.
	w.usage = make(map[string]*types.UsageRecord, len(usage))
	for key, record := range usage {
		if record == nil {
			w.logger.Warn("dropping null usage record",
				zap.String("path", w.path), zap.String("key", key))
			continue
		}
		w.usage[key] = record
	}

	// JSON objects are unordered; recover a stable order from first-seen
	// timestamps so tie-breaking stays deterministic across restarts.
	w.order = make([]string, 0, len(w.usage))
	for key := range w.usage {
		w.order = append(w.order, key)
	}
	sort.SliceStable(w.order, func(i, j int) bool {
		a, b := w.usage[w.order[i]], w.usage[w.order[j]]
		if a.FirstSeen.Equal(b.FirstSeen) {
			return w.order[i] < w.order[j]
		}
		return a.FirstSeen.Before(b.FirstSeen)
	})
}

// saveLedgerLocked writes the ledger atomically. Caller must hold w.mu.
func (w *CacheWarmer[V]) saveLedgerLocked() error {
	data, err := json.MarshalIndent(w.usage, "", "  ")
	if err != nil {
		return errors.WrapError(errors.ErrCodeLedgerSave, "failed to marshal usage ledger", err).
			WithComponent("warmer")
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return errors.WrapError(errors.ErrCodeLedgerSave, "failed to write usage ledger", err).
			WithComponent("warmer").WithContext("path", w.path)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapError(errors.ErrCodeLedgerSave, "failed to replace usage ledger", err).
			WithComponent("warmer").WithContext("path", w.path)
	}
	return nil
}
