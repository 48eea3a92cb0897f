package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"alert-engine/internal/alerts"
	"alert-engine/internal/config"
	"alert-engine/internal/dispatcher"
	"alert-engine/internal/events"
	"alert-engine/internal/metrics"
)

// SystemActor is recorded as the acting user on automatic transitions.
const SystemActor = "system"

// tickTimeout bounds a single scheduler pass.
const tickTimeout = 2 * time.Minute

// Scheduler periodically escalates overdue active alerts and emits reminder
// notifications, driven by the automation section of the engine config. The
// tick interval is fixed at startup; every other knob is re-read each tick.
type Scheduler struct {
	store    AlertStore
	configs  ConfigSource
	notifier EventPublisher
	recorder metrics.Recorder

	cron    *cron.Cron
	entryID cron.EntryID

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler builds a scheduler. A nil recorder disables metric recording.
func NewScheduler(store AlertStore, configs ConfigSource, notifier EventPublisher, recorder metrics.Recorder) *Scheduler {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Scheduler{
		store:    store,
		configs:  configs,
		notifier: notifier,
		recorder: recorder,
		now:      time.Now,
	}
}

// Start loads the config once to fix the tick interval and begins the cron
// loop. A config read failure here is fatal; mid-run failures only skip a
// tick.
func (s *Scheduler) Start(ctx context.Context) error {
	cfg, err := s.configs.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading engine config: %w", err)
	}

	interval := cfg.ProcessingInterval()
	s.cron = cron.New()
	s.entryID, err = s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.RunTick(context.Background())
	})
	if err != nil {
		return fmt.Errorf("registering scheduler tick: %w", err)
	}
	s.cron.Start()

	slog.Info("Escalation scheduler started", "interval", interval.String())
	return nil
}

// Stop halts the cron loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	slog.Info("Escalation scheduler stopped")
}

// RunTick executes a single escalation-and-reminder pass. Exported so the
// HTTP layer and tests can trigger a pass on demand.
func (s *Scheduler) RunTick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	started := s.now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(started).Seconds())
	}()

	cfg, err := s.configs.Load(ctx)
	if err != nil {
		slog.Error("Skipping scheduler tick, config unavailable", "error", err)
		s.recorder.RecordError()
		return
	}

	if cfg.Automation.AutoEscalationEnabled {
		s.runEscalations(ctx, cfg)
	}
	if cfg.Automation.AutoRemindersEnabled {
		s.runReminders(ctx, cfg)
	}
}

// runEscalations promotes active alerts older than the escalation timeout.
// The batch is bounded and oldest-first, so a backlog drains across ticks.
func (s *Scheduler) runEscalations(ctx context.Context, cfg *config.EngineConfig) {
	cutoff := s.now().Add(-cfg.EscalationTimeout())
	overdue, err := s.store.ListOverdueActive(ctx, cutoff, cfg.Performance.BatchSize)
	if err != nil {
		slog.Error("Listing overdue alerts failed", "error", err)
		s.recorder.RecordError()
		return
	}

	escalated := 0
	for _, alert := range overdue {
		note := fmt.Sprintf("Automatically escalated after %.0f hours without resolution", cfg.Automation.EscalationTimeoutHours)
		recipients := escalationRecipients(alert)
		updated, err := s.store.EscalateAlert(ctx, alert.AlertID, SystemActor, note, recipients)
		if err != nil {
			if errors.Is(err, alerts.ErrInvalidTransition) || errors.Is(err, alerts.ErrNotFound) {
				// Someone resolved or escalated it since we listed. Fine.
				slog.Debug("Alert already transitioned, skipping auto-escalation", "alertID", alert.AlertID)
				continue
			}
			slog.Error("Auto-escalation failed", "alertID", alert.AlertID, "error", err)
			s.recorder.RecordError()
			continue
		}
		escalated++
		s.recorder.RecordEscalation()
		metrics.EscalationsTotal.WithLabelValues("auto").Inc()
		s.publishEscalation(ctx, updated)
	}

	if escalated > 0 {
		slog.Info("Auto-escalation pass complete", "escalated", escalated, "scanned", len(overdue))
	}
}

// escalationRecipients maps the alert's current recipients one tier up.
func escalationRecipients(alert *alerts.Alert) []string {
	if len(alert.Recipients) == 0 {
		return nil
	}
	return dispatcher.NextTier(alert.Recipients)
}

// publishEscalation notifies the new recipients. Failures are logged, not
// retried; the state transition already committed.
func (s *Scheduler) publishEscalation(ctx context.Context, alert *alerts.Alert) {
	for _, target := range alert.Recipients {
		event := events.NewNotification(target, alert.AlertID, events.KindEscalation, alert.Title, string(alert.Priority))
		if err := s.notifier.Publish(ctx, alert.AlertID, event); err != nil {
			slog.Error("Publishing escalation event failed", "alertID", alert.AlertID, "target", target, "error", err)
			s.recorder.RecordError()
		}
	}
}

// reminderJob is one alert due for a reminder, with the counter value the
// compare-and-set must match.
type reminderJob struct {
	alert    *alerts.Alert
	dueCount int
	expected int
}

// runReminders emits reminder events for active alerts that crossed one or
// more configured reminder thresholds since the last pass.
func (s *Scheduler) runReminders(ctx context.Context, cfg *config.EngineConfig) {
	intervals := cfg.Automation.ReminderIntervalsMinutes
	if len(intervals) == 0 {
		return
	}

	olderThan := s.now().Add(-time.Duration(intervals[0]) * time.Minute)
	candidates, err := s.store.ListReminderCandidates(ctx, olderThan, len(intervals), cfg.Performance.BatchSize)
	if err != nil {
		slog.Error("Listing reminder candidates failed", "error", err)
		s.recorder.RecordError()
		return
	}

	var jobs []reminderJob
	for _, alert := range candidates {
		due := crossedIntervals(alert.Age(s.now()), intervals)
		if due <= alert.RemindersSent {
			continue
		}
		jobs = append(jobs, reminderJob{alert: alert, dueCount: due, expected: alert.RemindersSent})
	}
	if len(jobs) == 0 {
		return
	}

	workers := cfg.Performance.MaxConcurrentNotifications
	if workers < 1 {
		workers = 1
	}
	jobCh := make(chan reminderJob)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				s.sendReminder(ctx, job)
			}
		}()
	}
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	slog.Info("Reminder pass complete", "due", len(jobs), "scanned", len(candidates))
}

// crossedIntervals counts how many reminder thresholds the alert's age has
// passed. Intervals are validated as strictly ascending.
func crossedIntervals(age time.Duration, intervals []int) int {
	crossed := 0
	for _, minutes := range intervals {
		if age >= time.Duration(minutes)*time.Minute {
			crossed++
		}
	}
	return crossed
}

// sendReminder claims the reminder via compare-and-set, then publishes. The
// CAS runs first so a concurrent tick cannot double-send; a lost publish
// after a won CAS is accepted.
func (s *Scheduler) sendReminder(ctx context.Context, job reminderJob) {
	claimed, err := s.store.IncrementRemindersSent(ctx, job.alert.AlertID, job.dueCount-job.expected, job.expected)
	if err != nil {
		slog.Error("Claiming reminder failed", "alertID", job.alert.AlertID, "error", err)
		s.recorder.RecordError()
		return
	}
	if !claimed {
		slog.Debug("Reminder already claimed by another pass", "alertID", job.alert.AlertID)
		return
	}

	s.recorder.RecordReminder()
	metrics.RemindersTotal.Inc()
	for _, target := range job.alert.Recipients {
		event := events.NewNotification(target, job.alert.AlertID, events.KindReminder, job.alert.Title, string(job.alert.Priority))
		if err := s.notifier.Publish(ctx, job.alert.AlertID, event); err != nil {
			slog.Error("Publishing reminder event failed", "alertID", job.alert.AlertID, "target", target, "error", err)
			s.recorder.RecordError()
		}
	}
}
