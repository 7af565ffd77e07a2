/*
Package cache implements the tierstore multi-level cache engine: three
tiers with usage-driven pre-warming.

# Cache Architecture

	┌─────────────────────────────────────────────┐
	│              Application                    │
	│      (Get / Set / Invalidate / Stats)       │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           MultiLevelCache                   │  ← This Package
	│  ┌───────────────────────────────────────┐  │
	│  │              L1 Tier                  │  │
	│  │          (Memory - Hot)               │  │
	│  │   • Small LRU, exact recency          │  │
	│  │   • Populated by Set and L2 hits      │  │
	│  └───────────────────────────────────────┘  │
	│                      │                      │
	│  ┌───────────────────────────────────────┐  │
	│  │              L2 Tier                  │  │
	│  │          (Memory - Warm)              │  │
	│  │   • Larger LRU                        │  │
	│  │   • Populated only by L3 promotion    │  │
	│  └───────────────────────────────────────┘  │
	│                      │                      │
	│  ┌───────────────────────────────────────┐  │
	│  │              L3 Tier                  │  │
	│  │          (Disk - Cold)                │  │
	│  │   • Content-addressed blob store      │  │
	│  │   • sha256 names, 2-char shard dirs   │  │
	│  │   • Persistent across restarts        │  │
	│  │   • Self-healing on corruption        │  │
	│  └───────────────────────────────────────┘  │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│              CacheWarmer                    │
	│   • Usage ledger (JSON, batched saves)      │
	│   • Hotness = frequency × recency decay     │
	│   • Bulk pre-population on startup          │
	└─────────────────────────────────────────────┘

# Promotion Policy

Reads walk L1 → L2 → L3. An L2 hit is copied into L1; an L3 hit is copied
into L2 only, so disk-resident data must be touched twice before it reaches
the hot tier. Writes go to L1 and L3; L2 fills exclusively through
promotion.

# TTL Semantics

Every Set records a per-key expiry independent of tier residency. An
expired key is purged from all tiers on its next access and the access
counts as a single miss.

# Failure Model

The cache prioritizes availability over strict error propagation. Corrupt
L3 blobs are deleted and surface as misses. L3 write failures are retried
briefly, then dropped; a circuit breaker stops disk traffic entirely while
the disk is unhealthy. Both paths are observable through the Recorder
side-channel and structured logs rather than through returned errors.
*/
package cache
