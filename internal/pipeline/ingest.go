package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"visits-pipeline/internal/model"
	"visits-pipeline/internal/warehouse"
)

// ErrTaskTimeout is returned when a per-day read exceeds its deadline
var ErrTaskTimeout = errors.New("fetch task timed out")

// FetchOptions controls the per-day fetch
type FetchOptions struct {
	TablePrefix string
	Columns     []string
	Dates       model.DateRange
	Workers     int
	TaskTimeout time.Duration
}

// ------------------- Query planning -------------------

// TableName returns the day-partitioned table for day
func TableName(prefix string, day time.Time) string {
	return prefix + day.Format(model.PartitionLayout)
}

// BuildQuery returns the per-day query selecting columns from table
func BuildQuery(columns []string, table string) string {
	return fmt.Sprintf("SELECT %s FROM %s;", strings.Join(columns, ", "), table)
}

// LeafColumns returns the result column names of a selection:
// geoNetwork.country is returned by the warehouse as country.
func LeafColumns(columns []string) []string {
	leaves := make([]string, len(columns))
	for i, c := range columns {
		leaves[i] = c[strings.LastIndex(c, ".")+1:]
	}
	return leaves
}

// PlanTasks returns one task per day in the range, oldest first
func PlanTasks(opts FetchOptions) []model.FetchTask {
	days := opts.Dates.Days()
	tasks := make([]model.FetchTask, 0, len(days))
	for _, day := range days {
		table := TableName(opts.TablePrefix, day)
		tasks = append(tasks, model.FetchTask{
			Day:   day,
			Table: table,
			Query: BuildQuery(opts.Columns, table),
		})
	}
	return tasks
}

// ------------------- Fetch -------------------

type submittedJob struct {
	task model.FetchTask
	job  warehouse.Job
}

// Fetch submits every day's query up front, oldest first, and reads the
// results on a pool of opts.Workers goroutines. Results are collected as they
// complete. Each read gets opts.TaskTimeout from the moment a worker picks it
// up; the first failure cancels the remaining work and no tables are returned.
func Fetch(ctx context.Context, wh warehouse.Warehouse, opts FetchOptions, logger logrus.FieldLogger) ([]*model.Table, error) {
	tasks := PlanTasks(opts)
	if len(tasks) == 0 {
		return nil, nil
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// submission never waits for a free reader
	jobsCh := make(chan submittedJob, len(tasks))
	// every task yields exactly one result, so sends never block
	resultsCh := make(chan model.FetchResult, len(tasks))

	var wg sync.WaitGroup

	// --- SUBMISSION ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobsCh)
		for _, task := range tasks {
			logger.WithField("table", task.Table).
				Infof("Querying data from dataset for the period %s", task.Day.Format(model.DateLayout))

			job, err := wh.Query(ctx, task.Query)
			if err != nil {
				resultsCh <- model.FetchResult{Task: task, Err: err}
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobsCh <- submittedJob{task: task, job: job}:
			}
		}
	}()

	// --- READ WORKERS ---
	leaves := LeafColumns(opts.Columns)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for s := range jobsCh {
				res := readWithTimeout(ctx, s, opts.TaskTimeout)
				if res.Err == nil && len(res.Table.Columns) == 0 && res.Table.Len() == 0 {
					res.Table.Columns = leaves
				}
				logger.WithFields(logrus.Fields{
					"worker": workerID,
					"table":  s.task.Table,
					"rows":   res.Table.Len(),
				}).Debug("Fetch task finished")
				resultsCh <- res
			}
		}(i + 1)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	// --- COLLECTION ---
	tables := make([]*model.Table, 0, len(tasks))
	for res := range resultsCh {
		if res.Err != nil {
			return nil, fmt.Errorf("fetching %s: %w", res.Task.Table, res.Err)
		}
		tables = append(tables, res.Table)
	}

	if len(tables) != len(tasks) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch cancelled: %w", err)
		}
		return nil, fmt.Errorf("fetched %d of %d days", len(tables), len(tasks))
	}
	return tables, nil
}

// readWithTimeout reads one job, giving up once its deadline passes even if
// the job ignores context cancellation.
func readWithTimeout(ctx context.Context, s submittedJob, timeout time.Duration) model.FetchResult {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan model.FetchResult, 1)
	go func() {
		table, err := s.job.Read(taskCtx)
		if err == nil && table == nil {
			table = &model.Table{}
		}
		done <- model.FetchResult{Task: s.task, Table: table, Err: err}
	}()

	select {
	case res := <-done:
		if res.Err != nil && ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			res.Err = fmt.Errorf("%w after %s: %w", ErrTaskTimeout, timeout, res.Err)
		}
		return res
	case <-taskCtx.Done():
		if ctx.Err() != nil {
			return model.FetchResult{Task: s.task, Err: ctx.Err()}
		}
		return model.FetchResult{Task: s.task, Err: fmt.Errorf("%w after %s", ErrTaskTimeout, timeout)}
	}
}
