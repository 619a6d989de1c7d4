package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheetsAPI serves the subset of the Sheets v4 REST API used by Spreadsheet
type fakeSheetsAPI struct {
	mu       sync.Mutex
	nextID   int64
	tabs     []*sheets.SheetProperties
	values   map[string][][]interface{}
	inputOpt string
	failGet  bool
}

func newFakeSheetsAPI(tabs ...*sheets.SheetProperties) *fakeSheetsAPI {
	return &fakeSheetsAPI{nextID: 100, tabs: tabs, values: map[string][][]interface{}{}}
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		if f.failGet {
			http.Error(w, `{"error":{"code":403,"message":"permission denied"}}`, http.StatusForbidden)
			return
		}
		resp := &sheets.Spreadsheet{SpreadsheetId: "abc123"}
		for _, p := range f.tabs {
			resp.Sheets = append(resp.Sheets, &sheets.Sheet{Properties: p})
		}
		json.NewEncoder(w).Encode(resp)

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := &sheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: "abc123"}
		for _, rq := range req.Requests {
			switch {
			case rq.AddSheet != nil:
				p := rq.AddSheet.Properties
				p.SheetId = f.nextID
				f.nextID++
				f.tabs = append(f.tabs, p)
				resp.Replies = append(resp.Replies, &sheets.Response{AddSheet: &sheets.AddSheetResponse{Properties: p}})
			case rq.UpdateSheetProperties != nil:
				p := rq.UpdateSheetProperties.Properties
				for _, tab := range f.tabs {
					if tab.SheetId == p.SheetId {
						tab.GridProperties = p.GridProperties
					}
				}
				resp.Replies = append(resp.Replies, &sheets.Response{})
			}
		}
		json.NewEncoder(w).Encode(resp)

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		f.values[rng] = vr.Values
		f.inputOpt = r.URL.Query().Get("valueInputOption")
		json.NewEncoder(w).Encode(&sheets.UpdateValuesResponse{SpreadsheetId: "abc123", UpdatedRange: rng})

	default:
		http.NotFound(w, r)
	}
}

func openFake(t *testing.T, api *fakeSheetsAPI) *Spreadsheet {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	ss, err := OpenWithOptions(context.Background(),
		"https://docs.google.com/spreadsheets/d/abc123/edit#gid=0",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return ss
}

func TestSpreadsheetID(t *testing.T) {
	t.Run("extracts id from edit link", func(t *testing.T) {
		id, err := SpreadsheetID("https://docs.google.com/spreadsheets/d/1KCnvCP_jSmL-9zpqbmyU1OWOT/edit#gid=0")
		require.NoError(t, err)
		assert.Equal(t, "1KCnvCP_jSmL-9zpqbmyU1OWOT", id)
	})

	t.Run("rejects other links", func(t *testing.T) {
		_, err := SpreadsheetID("https://example.com/not-a-sheet")
		assert.Error(t, err)
	})
}

func TestA1(t *testing.T) {
	assert.Equal(t, "'Visits per Country'!A1", A1("Visits per Country"))
	assert.Equal(t, "'Bob''s tab'!A1", A1("Bob's tab"))
}

func TestFindWorksheet(t *testing.T) {
	ctx := context.Background()

	t.Run("finds existing tab", func(t *testing.T) {
		api := newFakeSheetsAPI(&sheets.SheetProperties{
			SheetId:        7,
			Title:          "Visits per Country",
			GridProperties: &sheets.GridProperties{RowCount: 1000, ColumnCount: 26},
		})
		ss := openFake(t, api)

		ws, err := ss.FindWorksheet(ctx, "Visits per Country")
		require.NoError(t, err)
		assert.Equal(t, int64(7), ws.ID)
		assert.Equal(t, int64(1000), ws.Rows)
		assert.Equal(t, int64(26), ws.Cols)
	})

	t.Run("missing tab is not found", func(t *testing.T) {
		ss := openFake(t, newFakeSheetsAPI(&sheets.SheetProperties{Title: "Sheet1"}))

		ws, err := ss.FindWorksheet(ctx, "Visits per Browser")
		assert.Nil(t, ws)
		assert.ErrorIs(t, err, ErrWorksheetNotFound)
	})

	t.Run("api failure is not masked as not found", func(t *testing.T) {
		api := newFakeSheetsAPI()
		api.failGet = true
		ss := openFake(t, api)

		_, err := ss.FindWorksheet(ctx, "Visits per Browser")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrWorksheetNotFound)
	})
}

func TestAddResizeUpdate(t *testing.T) {
	ctx := context.Background()
	api := newFakeSheetsAPI(&sheets.SheetProperties{
		SheetId:        0,
		Title:          "Sheet1",
		GridProperties: &sheets.GridProperties{RowCount: 1000, ColumnCount: 26},
	})
	ss := openFake(t, api)

	t.Run("add worksheet", func(t *testing.T) {
		ws, err := ss.AddWorksheet(ctx, "Visits per Country", 3, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(100), ws.ID)
		assert.Equal(t, int64(3), ws.Rows)
		assert.Equal(t, int64(2), ws.Cols)
	})

	t.Run("resize worksheet", func(t *testing.T) {
		ws, err := ss.FindWorksheet(ctx, "Sheet1")
		require.NoError(t, err)

		require.NoError(t, ss.Resize(ctx, ws, 4, 2))
		assert.Equal(t, int64(4), ws.Rows)

		again, err := ss.FindWorksheet(ctx, "Sheet1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), again.Rows)
		assert.Equal(t, int64(2), again.Cols)
	})

	t.Run("update writes raw values at A1", func(t *testing.T) {
		ws, err := ss.FindWorksheet(ctx, "Visits per Country")
		require.NoError(t, err)

		err = ss.Update(ctx, ws, [][]string{{"country", "visitNumber"}, {"US", "3"}})
		require.NoError(t, err)

		got := api.values["'Visits per Country'!A1"]
		require.Len(t, got, 2)
		assert.Equal(t, []interface{}{"country", "visitNumber"}, got[0])
		assert.Equal(t, []interface{}{"US", "3"}, got[1])
		assert.Equal(t, "RAW", api.inputOpt)
	})
}
