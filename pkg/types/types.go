package types

import (
	"time"
)

// Stats represents aggregate cache performance statistics across all tiers.
type Stats struct {
	HitRate       float64 `json:"hit_rate"`
	TotalRequests uint64  `json:"total_requests"`
	TotalHits     uint64  `json:"total_hits"`
	TotalMisses   uint64  `json:"total_misses"`
	L1Hits        uint64  `json:"l1_hits"`
	L2Hits        uint64  `json:"l2_hits"`
	L3Hits        uint64  `json:"l3_hits"`
	L1Size        int     `json:"l1_size"`
	L2Size        int     `json:"l2_size"`
	L3Size        int     `json:"l3_size"`
	Sets          uint64  `json:"sets"`
	Invalidations uint64  `json:"invalidations"`
	L1HitRate     float64 `json:"l1_hit_rate"`
	L2HitRate     float64 `json:"l2_hit_rate"`
	L3HitRate     float64 `json:"l3_hit_rate"`
}

// UsageRecord tracks observed accesses for a single cache key. It is the
// unit of the warmer's persisted usage ledger.
type UsageRecord struct {
	Count     int               `json:"count"`
	FirstSeen time.Time         `json:"first_seen"`
	LastSeen  time.Time         `json:"last_seen"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// HotQuery is a ranked warmup candidate.
type HotQuery struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// SizeRecommendation suggests starting tier capacities based on the number
// of distinct keys the warmer has observed.
type SizeRecommendation struct {
	L1 int `json:"l1"`
	L2 int `json:"l2"`
	L3 int `json:"l3"`
}

// UsageAnalysis summarizes the warmer's usage ledger.
type UsageAnalysis struct {
	TotalQueries     int            `json:"total_queries"`
	UniqueQueries    int            `json:"unique_queries"`
	QueriesPerUnique float64        `json:"queries_per_unique"`
	MostCommon       []KeyCount     `json:"most_common"`
	RecentQueries24h int            `json:"recent_queries_24h"`
	QueryTypes       map[string]int `json:"query_types"`
}

// KeyCount pairs a key with its access count.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
