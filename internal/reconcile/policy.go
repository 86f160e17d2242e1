package reconcile

import (
	"math"
	"time"
)

// Policy holds the retry constants for both loops.
type Policy struct {
	// Completion loop.
	CompletionInitialDelay  time.Duration
	CompletionGrowth        float64
	CompletionMaxDelay      time.Duration
	CompletionErrorGrowth   float64
	CompletionErrorMaxDelay time.Duration

	// Analysis loop.
	AnalysisInitialDelay time.Duration
	AnalysisMaxDelay     time.Duration

	// MaxRetries bounds wakes per call across both loops.
	MaxRetries int
}

func DefaultPolicy() Policy {
	return Policy{
		CompletionInitialDelay:  60 * time.Second,
		CompletionGrowth:        1.2,
		CompletionMaxDelay:      180 * time.Second,
		CompletionErrorGrowth:   1.5,
		CompletionErrorMaxDelay: 300 * time.Second,
		AnalysisInitialDelay:    30 * time.Second,
		AnalysisMaxDelay:        300 * time.Second,
		MaxRetries:              3,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.CompletionInitialDelay <= 0 {
		p.CompletionInitialDelay = d.CompletionInitialDelay
	}
	if p.CompletionGrowth <= 0 {
		p.CompletionGrowth = d.CompletionGrowth
	}
	if p.CompletionMaxDelay <= 0 {
		p.CompletionMaxDelay = d.CompletionMaxDelay
	}
	if p.CompletionErrorGrowth <= 0 {
		p.CompletionErrorGrowth = d.CompletionErrorGrowth
	}
	if p.CompletionErrorMaxDelay <= 0 {
		p.CompletionErrorMaxDelay = d.CompletionErrorMaxDelay
	}
	if p.AnalysisInitialDelay <= 0 {
		p.AnalysisInitialDelay = d.AnalysisInitialDelay
	}
	if p.AnalysisMaxDelay <= 0 {
		p.AnalysisMaxDelay = d.AnalysisMaxDelay
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	return p
}

// NextCompletionDelay grows the previous completion delay. A vendor error
// grows faster and may reach a higher cap than a call that is still active.
func (p Policy) NextCompletionDelay(prev time.Duration, vendorErr bool) time.Duration {
	if prev <= 0 {
		prev = p.CompletionInitialDelay
	}
	growth, ceiling := p.CompletionGrowth, p.CompletionMaxDelay
	if vendorErr {
		growth, ceiling = p.CompletionErrorGrowth, p.CompletionErrorMaxDelay
	}
	next := time.Duration(float64(prev) * growth)
	if next > ceiling {
		return ceiling
	}
	return next
}

// AnalysisDelay is initial × 2^(retryCount−1), capped.
func (p Policy) AnalysisDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	next := float64(p.AnalysisInitialDelay) * math.Pow(2, float64(retryCount-1))
	if next >= float64(p.AnalysisMaxDelay) {
		return p.AnalysisMaxDelay
	}
	return time.Duration(next)
}
