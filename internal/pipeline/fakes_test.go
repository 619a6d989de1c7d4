package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"visits-pipeline/internal/model"
	"visits-pipeline/internal/sheets"
	"visits-pipeline/internal/warehouse"
)

// ------------------- Fake warehouse -------------------

type fakeWarehouse struct {
	mu       sync.Mutex
	tables   map[string]*model.Table // keyed by table name
	failRead map[string]error
	hang     map[string]bool // Read ignores ctx and never returns
	delay    time.Duration
	gate     chan struct{} // when set, Read waits for it to close
	queries  []string

	inFlight    int32
	maxInFlight int32
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{
		tables:   map[string]*model.Table{},
		failRead: map[string]error{},
		hang:     map[string]bool{},
	}
}

func (w *fakeWarehouse) Query(ctx context.Context, sql string) (warehouse.Job, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, sql)

	// SELECT ... FROM <table>;
	name := strings.TrimSuffix(sql[strings.LastIndex(sql, " FROM ")+len(" FROM "):], ";")
	return &fakeJob{w: w, name: name}, nil
}

func (w *fakeWarehouse) submitted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.queries...)
}

type fakeJob struct {
	w    *fakeWarehouse
	name string
}

func (j *fakeJob) Read(ctx context.Context) (*model.Table, error) {
	n := atomic.AddInt32(&j.w.inFlight, 1)
	defer atomic.AddInt32(&j.w.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&j.w.maxInFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&j.w.maxInFlight, peak, n) {
			break
		}
	}

	j.w.mu.Lock()
	table, hasTable := j.w.tables[j.name]
	err := j.w.failRead[j.name]
	hang := j.w.hang[j.name]
	delay := j.w.delay
	gate := j.w.gate
	j.w.mu.Unlock()

	if hang {
		select {}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !hasTable {
		return nil, fmt.Errorf("table %s not found", j.name)
	}
	return table, nil
}

// visitsTable builds a per-day table with the leaf columns of the default selection
func visitsTable(rows ...model.Row) *model.Table {
	t := model.NewTable("visitNumber", "country", "browser", "operatingSystem")
	t.Rows = rows
	return t
}

// ------------------- Fake spreadsheet -------------------

type fakeTab struct {
	ws     *sheets.Worksheet
	values [][]string
}

type fakeSpreadsheet struct {
	mu      sync.Mutex
	nextID  int64
	tabs    map[string]*fakeTab
	findErr error

	finds, adds, resizes, updates int
}

func newFakeSpreadsheet() *fakeSpreadsheet {
	return &fakeSpreadsheet{nextID: 1, tabs: map[string]*fakeTab{}}
}

func (f *fakeSpreadsheet) withTab(title string, rows, cols int64) *fakeSpreadsheet {
	f.tabs[title] = &fakeTab{ws: &sheets.Worksheet{ID: f.nextID, Title: title, Rows: rows, Cols: cols}}
	f.nextID++
	return f
}

func (f *fakeSpreadsheet) FindWorksheet(ctx context.Context, title string) (*sheets.Worksheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	tab, ok := f.tabs[title]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrWorksheetNotFound, title)
	}
	ws := *tab.ws
	return &ws, nil
}

func (f *fakeSpreadsheet) AddWorksheet(ctx context.Context, title string, rows, cols int) (*sheets.Worksheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if _, ok := f.tabs[title]; ok {
		return nil, errors.New("a sheet with this name already exists")
	}
	ws := &sheets.Worksheet{ID: f.nextID, Title: title, Rows: int64(rows), Cols: int64(cols)}
	f.nextID++
	f.tabs[title] = &fakeTab{ws: ws}
	out := *ws
	return &out, nil
}

func (f *fakeSpreadsheet) Resize(ctx context.Context, ws *sheets.Worksheet, rows, cols int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes++
	tab, ok := f.tabs[ws.Title]
	if !ok {
		return errors.New("no such sheet")
	}
	tab.ws.Rows, tab.ws.Cols = int64(rows), int64(cols)
	ws.Rows, ws.Cols = int64(rows), int64(cols)
	// shrinking drops cells outside the grid
	if len(tab.values) > rows {
		tab.values = tab.values[:rows]
	}
	return nil
}

func (f *fakeSpreadsheet) Update(ctx context.Context, ws *sheets.Worksheet, values [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	tab, ok := f.tabs[ws.Title]
	if !ok {
		return errors.New("no such sheet")
	}
	// overwrite the block anchored at A1; the service appends rows past the grid
	for i, row := range values {
		if i < len(tab.values) {
			tab.values[i] = append([]string(nil), row...)
		} else {
			tab.values = append(tab.values, append([]string(nil), row...))
		}
	}
	return nil
}

func (f *fakeSpreadsheet) tab(title string) *fakeTab {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[title]
}
