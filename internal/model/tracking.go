package model

import "time"

// Run statuses, in the order a successful run passes through them
const (
	StatusRunning     = "running"
	StatusFetching    = "fetching"
	StatusAggregating = "aggregating"
	StatusPublishing  = "publishing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// StageMetrics represents metrics for a specific pipeline stage
type StageMetrics struct {
	StageName        string        `json:"stage_name"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int64         `json:"records_processed"`
	WorkerCount      int           `json:"worker_count"`
	Status           string        `json:"status"` // "started", "completed", "failed"
}

// RunMetrics represents overall run metrics
type RunMetrics struct {
	RunID          string         `json:"run_id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Status         string         `json:"status"`
	DaysFetched    int            `json:"days_fetched"`
	TotalRecords   int64          `json:"total_records"`
	SummaryGroups  int64          `json:"summary_groups"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Stages         []StageMetrics `json:"stages"`
}
