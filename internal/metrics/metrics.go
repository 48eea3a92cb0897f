// Package metrics provides the engine's metrics collection: a Redis-backed
// heartbeat document consumed by the host application's admin dashboard, and
// Prometheus counters exposed on the HTTP surface.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKey is the Redis key where the engine's metrics are stored.
	MetricsKey = "metrics:alert-engine"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// EngineMetrics is the heartbeat document written to Redis.
type EngineMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"`

	// Counters (monotonically increasing since start)
	EvaluationsRun   uint64 `json:"evaluations_run"`
	AlertsCreated    uint64 `json:"alerts_created"`
	Escalations      uint64 `json:"escalations"`
	RemindersSent    uint64 `json:"reminders_sent"`
	ProcessingErrors uint64 `json:"processing_errors"`

	// Latencies (averages in nanoseconds)
	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	// Service-specific counters (flexible map)
	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Recorder is the subset of collector operations the engine components use.
// The null object pattern avoids nil checks at call sites.
type Recorder interface {
	RecordEvaluation(latency time.Duration)
	RecordAlertCreated()
	RecordEscalation()
	RecordReminder()
	RecordError()
	IncrementCustom(name string)
}

// NoOp is a no-op implementation of Recorder.
type NoOp struct{}

var _ Recorder = (*NoOp)(nil)

func (NoOp) RecordEvaluation(_ time.Duration) {}
func (NoOp) RecordAlertCreated()              {}
func (NoOp) RecordEscalation()                {}
func (NoOp) RecordReminder()                  {}
func (NoOp) RecordError()                     {}
func (NoOp) IncrementCustom(_ string)         {}

// Collector collects engine metrics and reports them to Redis periodically.
type Collector struct {
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	evaluationsRun   atomic.Uint64
	alertsCreated    atomic.Uint64
	escalations      atomic.Uint64
	remindersSent    atomic.Uint64
	processingErrors atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a new metrics collector reporting to the given Redis client.
func NewCollector(redisClient *redis.Client) *Collector {
	return &Collector{
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// RecordEvaluation increments the evaluation counter with latency.
func (c *Collector) RecordEvaluation(latency time.Duration) {
	c.evaluationsRun.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordAlertCreated increments the alerts created counter.
func (c *Collector) RecordAlertCreated() {
	c.alertsCreated.Add(1)
}

// RecordEscalation increments the escalation counter.
func (c *Collector) RecordEscalation() {
	c.escalations.Add(1)
}

// RecordReminder increments the reminders sent counter.
func (c *Collector) RecordReminder() {
	c.remindersSent.Add(1)
}

// RecordError increments the processing errors counter.
func (c *Collector) RecordError() {
	c.processingErrors.Add(1)
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(1)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *EngineMetrics {
	var avgLatencyNs float64
	latencyCount := c.latencyCount.Load()
	if latencyCount > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(latencyCount)
	}

	c.customMu.RLock()
	customCounters := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		customCounters[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &EngineMetrics{
		ServiceName:            "alert-engine",
		StartedAt:              c.startedAt,
		LastUpdated:            time.Now().UTC(),
		Status:                 "healthy",
		EvaluationsRun:         c.evaluationsRun.Load(),
		AlertsCreated:          c.alertsCreated.Load(),
		Escalations:            c.escalations.Load(),
		RemindersSent:          c.remindersSent.Load(),
		ProcessingErrors:       c.processingErrors.Load(),
		AvgProcessingLatencyNs: avgLatencyNs,
		CustomCounters:         customCounters,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.GetSnapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "error", err)
		return
	}

	if err := c.redis.Set(ctx, MetricsKey, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "key", MetricsKey)
}
