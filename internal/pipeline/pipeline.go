package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"visits-pipeline/internal/config"
	"visits-pipeline/internal/logging"
	"visits-pipeline/internal/model"
	"visits-pipeline/internal/store"
	"visits-pipeline/internal/warehouse"
	"visits-pipeline/pkg/utils"
)

// Recorder persists run history. *store.DB and store.Discard implement it.
type Recorder interface {
	SaveRun(runID string, config interface{}) error
	UpdateRunStatus(runID string, status string) error
	SaveRunError(runID string, err error) error
	SaveStage(runID string, m model.StageMetrics) error
	SaveExport(runID string, r model.ExportResult) error
}

// Runner wires one end-to-end run: fetch, aggregate, publish
type Runner struct {
	Config    config.Config
	Warehouse warehouse.Warehouse
	// OpenSpreadsheet authenticates and opens the destination. It is called
	// only once every day has been fetched and aggregated.
	OpenSpreadsheet func(ctx context.Context) (Spreadsheet, error)
	Recorder        Recorder
	// Output enables CSV copies of the summaries when set
	Output *utils.OutputManager
	Logger logrus.FieldLogger
}

// runConfig is the part of the configuration stored with a run
type runConfig struct {
	TablePrefix string   `json:"table_prefix"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Columns     []string `json:"columns"`
	SheetLink   string   `json:"sheet_link"`
	Workers     int      `json:"workers"`
	TaskTimeout string   `json:"task_timeout"`
}

// ------------------- Pipeline Runner -------------------

// Run executes the pipeline once and returns the run ID. Any error aborts
// the run; nothing is published unless every day was fetched.
func (r *Runner) Run(ctx context.Context) (runID string, err error) {
	cfg := r.Config
	runID = uuid.NewString()
	recorder := r.Recorder
	if recorder == nil {
		recorder = store.Discard{}
	}
	base := r.Logger
	if base == nil {
		base = logging.Discard()
	}
	logger := base.WithField("run_id", runID)

	tracker := NewTracker(runID)

	logger.Infof("BigQuery dataset table: %s*", cfg.TablePrefix)
	logger.Infof("Google Sheet link: %s", cfg.SheetLink)

	if err := recorder.SaveRun(runID, runConfig{
		TablePrefix: cfg.TablePrefix,
		StartDate:   cfg.StartDate,
		EndDate:     cfg.EndDate,
		Columns:     cfg.Columns,
		SheetLink:   cfg.SheetLink,
		Workers:     cfg.FetchWorkers,
		TaskTimeout: cfg.TaskTimeout.String(),
	}); err != nil {
		return runID, fmt.Errorf("failed to record run: %w", err)
	}

	// Record the outcome whatever happens below
	defer func() {
		if err != nil {
			tracker.Fail()
			recorder.UpdateRunStatus(runID, model.StatusFailed)
			recorder.SaveRunError(runID, err)
		} else {
			tracker.Complete()
			recorder.UpdateRunStatus(runID, model.StatusCompleted)
		}
		for _, s := range tracker.Metrics().Stages {
			if saveErr := recorder.SaveStage(runID, s); saveErr != nil {
				logger.WithError(saveErr).Warn("Failed to record stage")
			}
		}
		tracker.Log(logger)
	}()

	// --- FETCH STAGE ---
	recorder.UpdateRunStatus(runID, model.StatusFetching)
	tracker.StartStage(StageFetch, cfg.FetchWorkers)
	tables, err := Fetch(ctx, r.Warehouse, FetchOptions{
		TablePrefix: cfg.TablePrefix,
		Columns:     cfg.Columns,
		Dates:       cfg.Dates,
		Workers:     cfg.FetchWorkers,
		TaskTimeout: cfg.TaskTimeout,
	}, logger)
	if err != nil {
		tracker.FailStage(StageFetch)
		return runID, err
	}
	var fetched int64
	for _, t := range tables {
		fetched += int64(t.Len())
	}
	tracker.EndStage(StageFetch, fetched)

	// --- AGGREGATION STAGE ---
	recorder.UpdateRunStatus(runID, model.StatusAggregating)
	tracker.StartStage(StageAggregate, 1)
	combined, err := model.Concat(tables...)
	if err != nil {
		tracker.FailStage(StageAggregate)
		return runID, fmt.Errorf("combining daily tables: %w", err)
	}
	summaries, err := Aggregate(combined, cfg.Summaries)
	if err != nil {
		tracker.FailStage(StageAggregate)
		return runID, err
	}
	var groups int64
	for _, s := range summaries {
		groups += int64(len(s.Rows))
	}
	tracker.EndStage(StageAggregate, int64(combined.Len()))
	tracker.SetCounts(len(tables), int64(combined.Len()), groups)

	// --- PUBLISH STAGE ---
	recorder.UpdateRunStatus(runID, model.StatusPublishing)
	tracker.StartStage(StagePublish, len(summaries))
	ss, err := r.OpenSpreadsheet(ctx)
	if err != nil {
		tracker.FailStage(StagePublish)
		return runID, fmt.Errorf("opening spreadsheet: %w", err)
	}
	results, err := Publish(ctx, ss, summaries, logger)
	if err != nil {
		tracker.FailStage(StagePublish)
		return runID, err
	}
	tracker.EndStage(StagePublish, groups)

	// --- CSV EXPORT STAGE ---
	if r.Output != nil {
		tracker.StartStage(StageExport, 1)
		for _, s := range summaries {
			res, err := ExportCSV(r.Output, runID, s)
			if err != nil {
				tracker.FailStage(StageExport)
				return runID, err
			}
			logger.WithField("path", res.Path).Info("Summary exported to CSV")
			results = append(results, res)
		}
		tracker.EndStage(StageExport, groups)
	}

	for _, res := range results {
		if err := recorder.SaveExport(runID, res); err != nil {
			logger.WithError(err).Warn("Failed to record export")
		}
	}

	return runID, nil
}
