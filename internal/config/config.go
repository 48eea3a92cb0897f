// Package config provides configuration parsing and validation for the
// alert engine: fixed process settings supplied at startup, and the
// hot-reloadable automation/performance document stored in Redis.
package config

import (
	"fmt"
	"time"
)

// Config holds the fixed process configuration for the engine. These values
// do not change while the process runs.
type Config struct {
	HTTPPort           string
	PostgresDSN        string
	RedisAddr          string
	KafkaBrokers       string
	NotificationsTopic string
	TasksTopic         string
	RulePollInterval   time.Duration
	MetricTimeout      time.Duration
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.NotificationsTopic == "" {
		return fmt.Errorf("notifications-topic cannot be empty")
	}
	if c.TasksTopic == "" {
		return fmt.Errorf("tasks-topic cannot be empty")
	}
	if c.RulePollInterval <= 0 {
		return fmt.Errorf("rule-poll-interval must be > 0")
	}
	if c.MetricTimeout <= 0 {
		return fmt.Errorf("metric-timeout must be > 0")
	}
	return nil
}

// AutomationConfig controls time-based escalation and reminders.
type AutomationConfig struct {
	AutoEscalationEnabled    bool    `json:"auto_escalation_enabled"`
	EscalationTimeoutHours   float64 `json:"escalation_timeout_hours"`
	AutoRemindersEnabled     bool    `json:"auto_reminders_enabled"`
	ReminderIntervalsMinutes []int   `json:"reminder_intervals_minutes"`
	MLThreshold              float64 `json:"ml_threshold"`
}

// PerformanceConfig bounds the work done per scheduler tick.
type PerformanceConfig struct {
	BatchSize                  int `json:"batch_size"`
	ProcessingIntervalMinutes  int `json:"processing_interval_minutes"`
	MaxConcurrentNotifications int `json:"max_concurrent_notifications"`
}

// EngineConfig is an immutable snapshot of the automation and performance
// settings. The scheduler re-reads it at the start of each tick and never
// mutates it mid-tick.
type EngineConfig struct {
	Automation  AutomationConfig  `json:"automation"`
	Performance PerformanceConfig `json:"performance"`
}

// Default returns the engine configuration used when no override document
// has been stored.
func Default() *EngineConfig {
	return &EngineConfig{
		Automation: AutomationConfig{
			AutoEscalationEnabled:    true,
			EscalationTimeoutHours:   24,
			AutoRemindersEnabled:     true,
			ReminderIntervalsMinutes: []int{60, 480},
			MLThreshold:              0.5,
		},
		Performance: PerformanceConfig{
			BatchSize:                  100,
			ProcessingIntervalMinutes:  5,
			MaxConcurrentNotifications: 10,
		},
	}
}

// Validate checks that the engine configuration is internally consistent.
// Returns an error if validation fails, nil otherwise.
func (c *EngineConfig) Validate() error {
	if c.Automation.EscalationTimeoutHours <= 0 {
		return fmt.Errorf("automation.escalation_timeout_hours must be > 0")
	}
	prev := 0
	for i, interval := range c.Automation.ReminderIntervalsMinutes {
		if interval <= 0 {
			return fmt.Errorf("automation.reminder_intervals_minutes[%d] must be > 0", i)
		}
		if interval <= prev {
			return fmt.Errorf("automation.reminder_intervals_minutes must be strictly ascending")
		}
		prev = interval
	}
	if c.Automation.MLThreshold < 0 || c.Automation.MLThreshold > 1 {
		return fmt.Errorf("automation.ml_threshold must be in [0,1]")
	}
	if c.Performance.BatchSize <= 0 {
		return fmt.Errorf("performance.batch_size must be > 0")
	}
	if c.Performance.ProcessingIntervalMinutes <= 0 {
		return fmt.Errorf("performance.processing_interval_minutes must be > 0")
	}
	if c.Performance.MaxConcurrentNotifications <= 0 {
		return fmt.Errorf("performance.max_concurrent_notifications must be > 0")
	}
	return nil
}

// EscalationTimeout returns the auto-escalation timeout as a duration.
func (c *EngineConfig) EscalationTimeout() time.Duration {
	return time.Duration(c.Automation.EscalationTimeoutHours * float64(time.Hour))
}

// ProcessingInterval returns the scheduler tick interval as a duration.
func (c *EngineConfig) ProcessingInterval() time.Duration {
	return time.Duration(c.Performance.ProcessingIntervalMinutes) * time.Minute
}
