package sheets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrUnavailable marks transient store failures (rate limits, 5xx, network).
// Callers may retry with backoff; everything else is a caller error.
var ErrUnavailable = errors.New("tabular store unavailable")

type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	SlotsSheet      string
	SignupsSheet    string
}

// SheetsService wraps the spreadsheet as two logical tables, Slots and
// Signups. All operations are network calls with no transaction semantics; a
// read followed by a write may race another writer. Callers own verification.
type SheetsService struct {
	svc *sheets.Service
	cfg Config
	log *zerolog.Logger

	mu       sync.Mutex
	rowCache map[string]map[int64]int // sheet title -> row id -> 1-based sheet row
	sheetIDs map[string]int64         // sheet title -> numeric sheet id
	nextID   map[string]int64         // sheet title -> next generated row id
}

func NewSheetsService(ctx context.Context, cfg Config, logger *zerolog.Logger) (*SheetsService, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	s := &SheetsService{
		svc:      svc,
		cfg:      cfg,
		log:      logger,
		rowCache: make(map[string]map[int64]int),
		sheetIDs: make(map[string]int64),
		nextID:   make(map[string]int64),
	}
	if err := s.loadSheetIDs(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SheetsService) loadSheetIDs(ctx context.Context) error {
	meta, err := s.svc.Spreadsheets.Get(s.cfg.SpreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return wrapErr("load spreadsheet metadata", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	for _, title := range []string{s.cfg.SlotsSheet, s.cfg.SignupsSheet} {
		if _, ok := s.sheetIDs[title]; !ok {
			return fmt.Errorf("sheet %q not found in spreadsheet", title)
		}
	}
	return nil
}

// ReadRange fetches raw cell values for an A1 range.
func (s *SheetsService) ReadRange(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("read "+rng, err)
	}
	return resp.Values, nil
}

// AppendRows appends raw rows below the given table range and returns the
// 1-based sheet row the first appended row landed on.
func (s *SheetsService) AppendRows(ctx context.Context, rng string, rows [][]interface{}) (int, error) {
	resp, err := s.svc.Spreadsheets.Values.Append(s.cfg.SpreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return 0, wrapErr("append "+rng, err)
	}
	if resp.Updates == nil {
		return 0, fmt.Errorf("append %s: response missing updated range", rng)
	}
	start, err := parseRangeStartRow(resp.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", rng, err)
	}
	return start, nil
}

// UpdateCells applies a batch of addressed value writes in one call. Formula
// strings are evaluated, which is what the clamped counter update relies on.
func (s *SheetsService) UpdateCells(ctx context.Context, data []*sheets.ValueRange) error {
	if len(data) == 0 {
		return nil
	}
	_, err := s.svc.Spreadsheets.Values.BatchUpdate(s.cfg.SpreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("batch update", err)
	}
	return nil
}

// DeleteRows removes the given 1-based sheet rows, issued in descending order
// so earlier deletions do not shift later indices.
func (s *SheetsService) DeleteRows(ctx context.Context, sheetTitle string, rowNums []int) error {
	if len(rowNums) == 0 {
		return nil
	}
	s.mu.Lock()
	sheetID, ok := s.sheetIDs[sheetTitle]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown sheet %q", sheetTitle)
	}

	sorted := append([]int(nil), rowNums...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	reqs := make([]*sheets.Request, 0, len(sorted))
	for _, row := range sorted {
		reqs = append(reqs, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		})
	}
	_, err := s.svc.Spreadsheets.BatchUpdate(s.cfg.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("delete rows from "+sheetTitle, err)
	}

	// Row positions below the deleted ones shifted; the cache for this sheet
	// is stale until the next full read.
	s.mu.Lock()
	delete(s.rowCache, sheetTitle)
	s.mu.Unlock()
	return nil
}

func (s *SheetsService) setCachedRow(sheet string, id int64, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rowCache[sheet]
	if !ok {
		m = make(map[int64]int)
		s.rowCache[sheet] = m
	}
	m[id] = row
}

func (s *SheetsService) getCachedRow(sheet string, id int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rowCache[sheet][id]
	return row, ok
}

// ClearCache drops all cached row positions.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[string]map[int64]int)
}

// allocateIDs hands out count fresh row ids for a sheet. Ids are monotonic
// and never reused, so append order is recoverable from them.
func (s *SheetsService) allocateIDs(sheet string, count int) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, count)
	for i := range ids {
		s.nextID[sheet]++
		ids[i] = s.nextID[sheet]
	}
	return ids
}

func (s *SheetsService) observeID(sheet string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= s.nextID[sheet] {
		s.nextID[sheet] = id
	}
}

func wrapErr(op string, err error) error {
	// A cancelled caller is not a store outage.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 || gerr.Code >= 500 {
			return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// Anything else that never reached the API (DNS, connection resets) is
	// transient.
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}
