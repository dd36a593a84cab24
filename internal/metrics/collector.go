// Package metrics provides per-run metrics collection: a nil-receiver-safe
// set of Inc* counters (nodes expanded, provider calls by outcome, cache/
// coalesce/retry activity) and a Snapshot() for a point-in-time read.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
type Snapshot struct {
	NodesExpanded  int64
	NodesSkipped   int64
	ProviderCalls  int64
	ProviderErrors int64
	ProviderByKind map[string]int64
	CacheHits      int64
	CacheMisses    int64
	CoalescedWaits int64
	HTTPRetries    int64

	Side string
}

// Collector accumulates metrics during a single run. Thread-safe via
// sync.Mutex. Every Inc* method is nil-receiver safe so callers can pass a
// nil *Collector when metrics are not configured.
type Collector struct {
	mu sync.Mutex

	nodesExpanded  int64
	nodesSkipped   int64
	providerCalls  int64
	providerErrors int64
	providerByKind map[string]int64
	cacheHits      int64
	cacheMisses    int64
	coalescedWaits int64
	httpRetries    int64

	side string
}

// NewCollector creates a Collector labeled with the run's side.
func NewCollector(side string) *Collector {
	return &Collector{side: side, providerByKind: make(map[string]int64)}
}

// IncNodesExpanded records a node whose Expand step appended at least one child.
func (c *Collector) IncNodesExpanded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.nodesExpanded++
	c.mu.Unlock()
}

// IncNodesSkipped records a node that Plan decided to skip.
func (c *Collector) IncNodesSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.nodesSkipped++
	c.mu.Unlock()
}

// IncProviderCall records a provider invocation, successful or not.
func (c *Collector) IncProviderCall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.providerCalls++
	c.mu.Unlock()
}

// IncProviderError records a failed provider invocation, keyed by the
// engineerr.Kind string that classified the failure.
func (c *Collector) IncProviderError(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.providerErrors++
	c.providerByKind[kind]++
	c.mu.Unlock()
}

// IncCacheHit records a cache hit in a provider.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// IncCacheMiss records a cache miss in a provider.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// IncCoalescedWait records a caller that waited for an in-flight fetch
// rather than initiating its own.
func (c *Collector) IncCoalescedWait() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.coalescedWaits++
	c.mu.Unlock()
}

// IncHTTPRetry records an HTTP retry attempt.
func (c *Collector) IncHTTPRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.httpRetries++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.providerByKind))
	for k, v := range c.providerByKind {
		byKind[k] = v
	}

	return Snapshot{
		NodesExpanded:  c.nodesExpanded,
		NodesSkipped:   c.nodesSkipped,
		ProviderCalls:  c.providerCalls,
		ProviderErrors: c.providerErrors,
		ProviderByKind: byKind,
		CacheHits:      c.cacheHits,
		CacheMisses:    c.cacheMisses,
		CoalescedWaits: c.coalescedWaits,
		HTTPRetries:    c.httpRetries,
		Side:           c.side,
	}
}
