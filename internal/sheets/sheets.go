// Package sheets wraps the Google Sheets API with the handful of worksheet
// operations the publisher needs: find by title, add, resize and overwrite.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrWorksheetNotFound is returned by FindWorksheet when no tab has the title
var ErrWorksheetNotFound = errors.New("worksheet not found")

// Scopes requested for the spreadsheet credentials
var Scopes = []string{
	"https://spreadsheets.google.com/feeds",
	sheets.SpreadsheetsScope,
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Worksheet identifies a tab inside the spreadsheet
type Worksheet struct {
	ID    int64
	Title string
	Rows  int64
	Cols  int64
}

// Spreadsheet is an opened spreadsheet. It holds no per-worksheet state and is
// safe to share between goroutines that target different tabs.
type Spreadsheet struct {
	ID  string
	svc *sheets.Service
}

// SpreadsheetID extracts the document ID from a shared spreadsheet URL
func SpreadsheetID(link string) (string, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("no spreadsheet id in link %q", link)
	}
	return m[1], nil
}

// Open authenticates with a service-account key file and opens the
// spreadsheet behind link.
func Open(ctx context.Context, link, credentialsFile string) (*Spreadsheet, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account file to config: %w", err)
	}

	return OpenWithOptions(ctx, link, option.WithHTTPClient(config.Client(ctx)))
}

// OpenWithOptions opens the spreadsheet behind link with explicit client options
func OpenWithOptions(ctx context.Context, link string, opts ...option.ClientOption) (*Spreadsheet, error) {
	id, err := SpreadsheetID(link)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets client: %w", err)
	}
	return &Spreadsheet{ID: id, svc: svc}, nil
}

// FindWorksheet looks up a tab by title
func (s *Spreadsheet) FindWorksheet(ctx context.Context, title string) (*Worksheet, error) {
	resp, err := s.svc.Spreadsheets.Get(s.ID).
		Fields("sheets(properties(sheetId,title,gridProperties(rowCount,columnCount)))").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetching spreadsheet %s: %w", s.ID, err)
	}

	for _, sheet := range resp.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return toWorksheet(sheet.Properties), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, title)
}

// AddWorksheet creates a tab with the given grid size
func (s *Spreadsheet) AddWorksheet(ctx context.Context, title string, rows, cols int) (*Worksheet, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
			},
		}},
	}

	resp, err := s.svc.Spreadsheets.BatchUpdate(s.ID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("adding worksheet %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, fmt.Errorf("adding worksheet %q: empty reply", title)
	}
	return toWorksheet(resp.Replies[0].AddSheet.Properties), nil
}

// Resize sets the grid of ws to exactly rows x cols
func (s *Spreadsheet) Resize(ctx context.Context, ws *Worksheet, rows, cols int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:         ws.ID,
					ForceSendFields: []string{"SheetId"},
					GridProperties: &sheets.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
				Fields: "gridProperties(rowCount,columnCount)",
			},
		}},
	}

	if _, err := s.svc.Spreadsheets.BatchUpdate(s.ID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("resizing worksheet %q: %w", ws.Title, err)
	}
	ws.Rows, ws.Cols = int64(rows), int64(cols)
	return nil
}

// Update overwrites the block starting at A1 with values in a single call
func (s *Spreadsheet) Update(ctx context.Context, ws *Worksheet, values [][]string) error {
	rows := make([][]interface{}, len(values))
	for i, row := range values {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		rows[i] = cells
	}

	rng := A1(ws.Title)
	vr := &sheets.ValueRange{
		Range:          rng,
		MajorDimension: "ROWS",
		Values:         rows,
	}

	_, err := s.svc.Spreadsheets.Values.Update(s.ID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating worksheet %q: %w", ws.Title, err)
	}
	return nil
}

// A1 returns the top-left cell reference of a tab
func A1(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}

func toWorksheet(p *sheets.SheetProperties) *Worksheet {
	ws := &Worksheet{ID: p.SheetId, Title: p.Title}
	if p.GridProperties != nil {
		ws.Rows = p.GridProperties.RowCount
		ws.Cols = p.GridProperties.ColumnCount
	}
	return ws
}
