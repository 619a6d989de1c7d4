package pipeline

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"visits-pipeline/internal/model"
)

// Stage names
const (
	StageFetch     = "fetch"
	StageAggregate = "aggregate"
	StagePublish   = "publish"
	StageExport    = "export"
)

// Tracker records per-stage timings and counts for one run
type Tracker struct {
	mu      sync.Mutex
	metrics model.RunMetrics
	stages  map[string]int
}

// NewTracker creates a tracker for runID
func NewTracker(runID string) *Tracker {
	return &Tracker{
		metrics: model.RunMetrics{
			RunID:     runID,
			StartTime: time.Now(),
			Status:    model.StatusRunning,
		},
		stages: make(map[string]int),
	}
}

// StartStage marks the start of a stage
func (t *Tracker) StartStage(stage string, workerCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stages[stage] = len(t.metrics.Stages)
	t.metrics.Stages = append(t.metrics.Stages, model.StageMetrics{
		StageName:   stage,
		StartTime:   time.Now(),
		WorkerCount: workerCount,
		Status:      "started",
	})
}

// EndStage marks a stage as completed
func (t *Tracker) EndStage(stage string, recordsProcessed int64) {
	t.finish(stage, "completed", recordsProcessed)
}

// FailStage marks a stage as failed
func (t *Tracker) FailStage(stage string) {
	t.finish(stage, "failed", 0)
}

func (t *Tracker) finish(stage, status string, records int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.stages[stage]
	if !ok {
		return
	}
	s := &t.metrics.Stages[i]
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.RecordsProcessed = records
	s.Status = status
}

// SetCounts records the run-wide totals
func (t *Tracker) SetCounts(days int, records, groups int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.DaysFetched = days
	t.metrics.TotalRecords = records
	t.metrics.SummaryGroups = groups
}

// Complete marks the run as completed
func (t *Tracker) Complete() {
	t.end(model.StatusCompleted)
}

// Fail marks the run as failed
func (t *Tracker) Fail() {
	t.end(model.StatusFailed)
}

func (t *Tracker) end(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.EndTime = time.Now()
	t.metrics.ProcessingTime = t.metrics.EndTime.Sub(t.metrics.StartTime)
	t.metrics.Status = status
}

// Metrics returns a copy of the current metrics
func (t *Tracker) Metrics() model.RunMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.metrics
	m.Stages = append([]model.StageMetrics(nil), t.metrics.Stages...)
	return m
}

// Log writes one line per stage and a run summary
func (t *Tracker) Log(logger logrus.FieldLogger) {
	m := t.Metrics()
	for _, s := range m.Stages {
		logger.WithFields(logrus.Fields{
			"stage":    s.StageName,
			"status":   s.Status,
			"records":  s.RecordsProcessed,
			"workers":  s.WorkerCount,
			"duration": s.Duration.Round(time.Millisecond),
		}).Info("Stage finished")
	}
	logger.WithFields(logrus.Fields{
		"run_id":   m.RunID,
		"status":   m.Status,
		"days":     m.DaysFetched,
		"records":  m.TotalRecords,
		"groups":   m.SummaryGroups,
		"duration": m.ProcessingTime.Round(time.Millisecond),
	}).Info("Run finished")
}
