package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"alert-engine/internal/alerts"
)

// fakeAlertStore records inserted alerts and serves canned active alerts.
type fakeAlertStore struct {
	mu sync.Mutex

	inserted  []*alerts.Alert
	escalated []string

	// active maps "ruleID/subjectID" to the existing active alert, also the
	// dedup set for InsertRuleAlert.
	active map[string]*alerts.Alert

	insertErr   error
	escalateErr error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{active: make(map[string]*alerts.Alert)}
}

func key(ruleID, subjectID string) string {
	return ruleID + "/" + subjectID
}

func (f *fakeAlertStore) InsertRuleAlert(ctx context.Context, a *alerts.Alert) (*alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	k := key(a.RuleID, a.SubjectID)
	if _, exists := f.active[k]; exists {
		return nil, nil
	}
	created := *a
	created.AlertID = fmt.Sprintf("alert-%d", len(f.inserted)+1)
	created.Status = alerts.StatusActive
	f.inserted = append(f.inserted, &created)
	f.active[k] = &created
	return &created, nil
}

func (f *fakeAlertStore) GetActiveAlertByRule(ctx context.Context, ruleID, subjectID string) (*alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.active[key(ruleID, subjectID)]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no active alert: %w", alerts.ErrNotFound)
}

func (f *fakeAlertStore) EscalateAlert(ctx context.Context, alertID, userID, note string, recipients []string) (*alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.escalateErr != nil {
		return nil, f.escalateErr
	}
	f.escalated = append(f.escalated, alertID)
	for _, a := range f.active {
		if a.AlertID == alertID {
			updated := *a
			updated.Status = alerts.StatusEscalated
			updated.EscalationLevel++
			if recipients != nil {
				updated.Recipients = recipients
			}
			return &updated, nil
		}
	}
	return nil, fmt.Errorf("alert %s: %w", alertID, alerts.ErrNotFound)
}

// fakePublisher records published events.
type fakePublisher struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}
