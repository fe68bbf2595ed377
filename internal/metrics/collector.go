// Package metrics provides in-memory client-side request statistics.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Server-reported inference time (chat only)
	InferenceCount int64
	TotalInference time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Name        string
	Count       int64
	Errors      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// nil unless the server reported inference times
	AvgInferenceMs *float64
}

// Snapshot represents the full client statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot
}

// Operation names for the collector, one per API call.
const (
	OpChat               = "chat"
	OpListModels         = "list_models"
	OpDownloadModel      = "download_model"
	OpDownloadStatus     = "download_status"
	OpTestModel          = "test_model"
	OpSystemInfo         = "system_info"
	OpListConversations  = "list_conversations"
	OpDeleteConversation = "delete_conversation"
	OpBehaviorSettings   = "behavior_settings"
	OpEmotionKeywords    = "emotion_keywords"
	OpHealth             = "health"
)

// Collector aggregates in-memory request statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records the round-trip time of a request and whether it failed.
func (c *Collector) RecordTiming(op string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if failed {
		m.Errors++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordInference records the inference time the server reported for a reply.
func (c *Collector) RecordInference(op string, inference time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.InferenceCount++
	m.TotalInference += inference
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(name string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Name:        name,
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if m.InferenceCount > 0 {
		avg := float64(m.TotalInference.Milliseconds()) / float64(m.InferenceCount)
		snap.AvgInferenceMs = &avg
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics, ordered by operation name.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.ops))
	for name := range c.ops {
		names = append(names, name)
	}
	sort.Strings(names)

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	for _, name := range names {
		if op := snapshotOp(name, c.ops[name]); op != nil {
			snap.Operations = append(snap.Operations, *op)
		}
	}
	return snap
}

// Operation returns the snapshot for a single operation, or nil if unseen.
func (c *Collector) Operation(op string) *OperationSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshotOp(op, c.ops[op])
}
