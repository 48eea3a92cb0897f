package evaluator

import (
	"sync"

	"alert-engine/internal/rules"
)

// RuleSet provides thread-safe access to the active rule set. It supports
// atomic swapping when rules are reloaded, so an in-flight evaluation always
// sees one consistent set.
type RuleSet struct {
	mu    sync.RWMutex
	rules []*rules.Rule
}

// NewRuleSet creates a rule set holding the given initial rules.
func NewRuleSet(initial []*rules.Rule) *RuleSet {
	return &RuleSet{
		rules: initial,
	}
}

// Rules returns the current rule slice. Callers must not mutate the returned
// rules; the slice itself is safe to range over after a concurrent Replace.
func (s *RuleSet) Rules() []*rules.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Replace atomically swaps the rule set with a new one.
func (s *RuleSet) Replace(next []*rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = next
}

// Count returns the current number of rules in the set.
func (s *RuleSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}
