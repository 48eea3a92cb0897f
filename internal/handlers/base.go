// Package handlers provides HTTP handlers for the alert-engine API.
package handlers

import (
	"alert-engine/internal/metrics"
)

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	rules    RuleRepository
	alerts   AlertRepository
	engine   Evaluator
	dispatch ActionDispatcher
	reloader RuleReloader
	scorer   RiskScorer
	configs  ConfigSource
	miner    PatternMiner
	recorder metrics.Recorder
}

// Deps carries the handler dependencies. Any nil optional field falls back
// to a safe default in NewHandlers.
type Deps struct {
	Rules    RuleRepository
	Alerts   AlertRepository
	Engine   Evaluator
	Dispatch ActionDispatcher
	Reloader RuleReloader
	Scorer   RiskScorer
	Configs  ConfigSource
	Miner    PatternMiner
	Recorder metrics.Recorder
}

// NewHandlers creates a new handlers instance.
// If Recorder is nil, a no-op implementation is used.
func NewHandlers(d Deps) *Handlers {
	if d.Recorder == nil {
		d.Recorder = metrics.NoOp{}
	}
	return &Handlers{
		rules:    d.Rules,
		alerts:   d.Alerts,
		engine:   d.Engine,
		dispatch: d.Dispatch,
		reloader: d.Reloader,
		scorer:   d.Scorer,
		configs:  d.Configs,
		miner:    d.Miner,
		recorder: d.Recorder,
	}
}
