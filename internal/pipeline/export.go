package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"visits-pipeline/internal/model"
	"visits-pipeline/internal/sheets"
	"visits-pipeline/pkg/utils"
)

// Spreadsheet is the destination document. *sheets.Spreadsheet implements it.
type Spreadsheet interface {
	FindWorksheet(ctx context.Context, title string) (*sheets.Worksheet, error)
	AddWorksheet(ctx context.Context, title string, rows, cols int) (*sheets.Worksheet, error)
	Resize(ctx context.Context, ws *sheets.Worksheet, rows, cols int) error
	Update(ctx context.Context, ws *sheets.Worksheet, values [][]string) error
}

// ------------------- Sheet export -------------------

// Publish writes every summary to its own worksheet. The writes run
// concurrently; the first failure is returned.
func Publish(ctx context.Context, ss Spreadsheet, summaries []model.Summary, logger logrus.FieldLogger) ([]model.ExportResult, error) {
	results := make([]model.ExportResult, len(summaries))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range summaries {
		i, s := i, s
		g.Go(func() error {
			res, err := PublishSummary(gctx, ss, s, logger)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PublishSummary finds or creates the worksheet titled s.Title, sizes it to
// the summary and overwrites it.
func PublishSummary(ctx context.Context, ss Spreadsheet, s model.Summary, logger logrus.FieldLogger) (model.ExportResult, error) {
	logger.WithField("worksheet", s.Title).
		Infof("Writing aggregated table to Google Sheet (worksheet %s)", s.Title)

	rows, cols := s.Size()
	created := false

	ws, err := ss.FindWorksheet(ctx, s.Title)
	switch {
	case err == nil:
		if err := ss.Resize(ctx, ws, rows, cols); err != nil {
			return model.ExportResult{}, err
		}
	case errors.Is(err, sheets.ErrWorksheetNotFound):
		ws, err = ss.AddWorksheet(ctx, s.Title, rows, cols)
		if err != nil {
			return model.ExportResult{}, err
		}
		created = true
	default:
		return model.ExportResult{}, fmt.Errorf("looking up worksheet %q: %w", s.Title, err)
	}

	if err := ss.Update(ctx, ws, SheetValues(s)); err != nil {
		return model.ExportResult{}, err
	}

	logger.WithFields(logrus.Fields{
		"worksheet": s.Title,
		"rows":      len(s.Rows),
		"created":   created,
	}).Info("Worksheet written")

	return model.ExportResult{
		Type:        "sheet",
		Path:        s.Title,
		RecordCount: len(s.Rows),
		Created:     created,
		Timestamp:   time.Now(),
	}, nil
}

// ------------------- CSV export -------------------

// ExportCSV writes a summary as <run dir>/<slug>.csv with the same values that
// are written to the worksheet.
func ExportCSV(om *utils.OutputManager, runID string, s model.Summary) (model.ExportResult, error) {
	path, err := om.GetOutputFilePath(runID, utils.Slug(s.Title)+".csv")
	if err != nil {
		return model.ExportResult{}, err
	}

	file, err := os.Create(path)
	if err != nil {
		return model.ExportResult{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(SheetValues(s)); err != nil {
		return model.ExportResult{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return model.ExportResult{
		Type:        "csv",
		Path:        path,
		RecordCount: len(s.Rows),
		Timestamp:   time.Now(),
	}, nil
}
