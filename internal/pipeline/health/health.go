package health

import (
	"context"
	"time"

	"github.com/courseforge/quizgen/internal/core/domain"
	"github.com/courseforge/quizgen/internal/pipeline/metrics"
)

// Status levels for the health report.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Pinger is anything with a health check.
type Pinger interface {
	Health(ctx context.Context) error
}

// DepthReader reports pending jobs per stage.
type DepthReader interface {
	QueueDepth(ctx context.Context, stage domain.Stage) (int64, error)
}

// Report is the detailed health payload.
type Report struct {
	Status   Status           `json:"status"`
	Database string           `json:"database"`
	Queue    string           `json:"queue"`
	Depths   map[string]int64 `json:"queue_depths,omitempty"`
}

// Monitor checks dependency health and refreshes queue gauges.
type Monitor struct {
	db    Pinger
	queue Pinger
	depth DepthReader
}

// NewMonitor creates a health monitor. Any dependency may be nil (e.g. the
// database-less dev mode).
func NewMonitor(db, queue Pinger, depth DepthReader) *Monitor {
	return &Monitor{db: db, queue: queue, depth: depth}
}

// CheckHealth produces the current health report.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	report := Report{Status: StatusHealthy, Database: "ok", Queue: "ok"}

	if m.db != nil {
		if err := m.db.Health(ctx); err != nil {
			report.Status = StatusCritical
			report.Database = err.Error()
		}
	} else {
		report.Database = "disabled"
	}

	if m.queue != nil {
		if err := m.queue.Health(ctx); err != nil {
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
			report.Queue = err.Error()
		}
	} else {
		report.Queue = "disabled"
	}

	if m.depth != nil {
		report.Depths = make(map[string]int64, 3)
		for _, stage := range []domain.Stage{domain.StageExtraction, domain.StageGeneration, domain.StageExport} {
			if n, err := m.depth.QueueDepth(ctx, stage); err == nil {
				report.Depths[string(stage)] = n
				metrics.QueueDepth.WithLabelValues(string(stage)).Set(float64(n))
			}
		}
	}

	return report
}

// Start refreshes queue depth gauges until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckHealth(ctx)
		}
	}
}
