package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks the stages of a run. Steps may complete from
// several goroutines at once.
type ProgressTracker struct {
	logger    Logger
	operation string
	total     int
	completed int
	current   string
	startTime time.Time
	listeners []func(ProgressStats)
	mutex     sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation string
	Total     int
	Logger    Logger
	Listeners []func(ProgressStats)
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}

	tracker := &ProgressTracker{
		logger:    config.Logger.WithComponent("progress"),
		operation: config.Operation,
		total:     config.Total,
		startTime: time.Now(),
		listeners: config.Listeners,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"steps":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Step records that the named step finished and notifies listeners.
func (p *ProgressTracker) Step(name string) {
	p.mutex.Lock()
	p.completed++
	p.current = name
	stats := p.statsLocked()
	listeners := p.listeners
	p.mutex.Unlock()

	p.logger.WithFields(Fields{
		"operation":  p.operation,
		"step":       name,
		"completed":  stats.Completed,
		"total":      stats.Total,
		"percentage": fmt.Sprintf("%.1f%%", stats.Percentage),
	}).Debug("Step completed")

	for _, listener := range listeners {
		listener(stats)
	}
}

// Complete logs the final duration of the operation
func (p *ProgressTracker) Complete() {
	stats := p.GetStats()
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"steps":     stats.Completed,
		"duration":  stats.Duration.String(),
	}).Info("Operation completed")
}

// CompleteWithError marks the operation as complete with error
func (p *ProgressTracker) CompleteWithError(err error) {
	stats := p.GetStats()
	p.logger.WithError(err).WithFields(Fields{
		"operation": p.operation,
		"completed": stats.Completed,
		"total":     stats.Total,
		"duration":  stats.Duration.String(),
	}).Error("Operation completed with error")
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.statsLocked()
}

func (p *ProgressTracker) statsLocked() ProgressStats {
	var percentage float64
	if p.total > 0 {
		percentage = float64(p.completed) / float64(p.total) * 100
	}
	return ProgressStats{
		Operation:  p.operation,
		Step:       p.current,
		Completed:  p.completed,
		Total:      p.total,
		Percentage: percentage,
		Duration:   time.Since(p.startTime),
	}
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Step       string        `json:"step"`
	Completed  int           `json:"completed"`
	Total      int           `json:"total"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	return fmt.Sprintf("[%d/%d] %s (%.1f%% complete)", ps.Completed, ps.Total, ps.Step, ps.Percentage)
}
