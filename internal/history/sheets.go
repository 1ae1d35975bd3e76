package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/market"
)

const (
	alertsSheet    = "alerts"
	schedulerSheet = "scheduler_state"

	alertsRange    = alertsSheet + "!A2:D"
	schedulerRange = schedulerSheet + "!A2:B"
)

// SheetsConfig points the store at a Google spreadsheet.
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// SheetsStore keeps the ledger in a Google spreadsheet: one row per
// record on the alerts worksheet (market, date, symbol, record JSON) and
// one row per market on the scheduler worksheet. The remote API has no
// conditional write, so the existence-check-then-append of each save is
// serialised under a per-store mutex; rows are append-only, which
// preserves insertion order for Load.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	window        int

	mu sync.Mutex
}

// NewSheetsStore builds a store over the Sheets API.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, trackingWindow int) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("storage.sheets.spreadsheet_id is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create sheets service: %v", ErrStorageUnavailable, err)
	}
	return &SheetsStore{svc: svc, spreadsheetID: cfg.SpreadsheetID, window: trackingWindow}, nil
}

type sheetRow struct {
	index  int // zero-based data row index, excluding header
	market string
	date   string
	symbol string
	record Record
}

// Save appends the alert's record unless its key already has a row.
func (s *SheetsStore) Save(ctx context.Context, a alert.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx)
	if err != nil {
		return false, err
	}

	key := KeyOf(a)
	if _, ok := findRow(rows, key); ok {
		return false, nil
	}

	payload, err := json.Marshal(NewRecord(a))
	if err != nil {
		return false, fmt.Errorf("%w: encode record: %v", ErrStorageUnavailable, err)
	}

	values := &sheets.ValueRange{Values: [][]any{{
		key.Market.String(), key.Date.Format("2006-01-02"), key.Symbol, string(payload),
	}}}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, alertsRange, values).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("%w: append record row: %v", ErrStorageUnavailable, err)
	}
	return true, nil
}

// Load returns the day's records in row (insertion) order.
func (s *SheetsStore) Load(ctx context.Context, m market.Market, date time.Time) ([]Record, error) {
	return s.LoadRange(ctx, m, date, date)
}

// LoadRange returns records with evaluation dates inside [start, end].
func (s *SheetsStore) LoadRange(ctx context.Context, m market.Market, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx)
	if err != nil {
		return nil, err
	}

	from := dayStart(start).Format("2006-01-02")
	to := dayStart(end).Format("2006-01-02")

	var records []Record
	for _, row := range rows {
		if row.market != m.String() || row.date < from || row.date > to {
			continue
		}
		records = append(records, row.record)
	}
	return records, nil
}

// UpdateTracking rewrites the record cell of the matching row.
func (s *SheetsStore) UpdateTracking(ctx context.Context, key Key, offset int, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows(ctx)
	if err != nil {
		return err
	}

	row, ok := findRow(rows, key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}

	rec := row.record
	if err := rec.ApplySample(offset, s.window, price); err != nil {
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", ErrStorageUnavailable, err)
	}

	cell := fmt.Sprintf("%s!D%d", alertsSheet, row.index+2) // +2: header row, 1-based
	values := &sheets.ValueRange{Values: [][]any{{string(payload)}}}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cell, values).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: update record row: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// GetSchedulerState loads the market's scheduler-state row.
func (s *SheetsStore) GetSchedulerState(ctx context.Context, m market.Market) (SchedulerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, schedulerRange).Context(ctx).Do()
	if err != nil {
		return SchedulerState{}, fmt.Errorf("%w: read scheduler sheet: %v", ErrStorageUnavailable, err)
	}

	for _, row := range resp.Values {
		if len(row) < 2 || toString(row[0]) != m.String() {
			continue
		}
		var state SchedulerState
		if err := json.Unmarshal([]byte(toString(row[1])), &state); err != nil {
			return SchedulerState{}, fmt.Errorf("%w: decode scheduler state: %v", ErrStorageUnavailable, err)
		}
		return state, nil
	}
	return SchedulerState{SchemaVersion: SchemaVersion}, nil
}

// SetSchedulerState upserts the market's scheduler-state row.
func (s *SheetsStore) SetSchedulerState(ctx context.Context, m market.Market, state SchedulerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.SchemaVersion = SchemaVersion
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode scheduler state: %v", ErrStorageUnavailable, err)
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, schedulerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: read scheduler sheet: %v", ErrStorageUnavailable, err)
	}

	for i, row := range resp.Values {
		if len(row) >= 1 && toString(row[0]) == m.String() {
			cell := fmt.Sprintf("%s!A%d:B%d", schedulerSheet, i+2, i+2)
			values := &sheets.ValueRange{Values: [][]any{{m.String(), string(payload)}}}
			_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cell, values).
				ValueInputOption("RAW").Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("%w: update scheduler row: %v", ErrStorageUnavailable, err)
			}
			return nil
		}
	}

	values := &sheets.ValueRange{Values: [][]any{{m.String(), string(payload)}}}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, schedulerRange, values).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: append scheduler row: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// ClearOld is intentionally a no-op for the sheets backend: row deletion
// reorders the remaining rows under concurrent readers, and retention of
// the spreadsheet ledger is managed by its owners.
func (s *SheetsStore) ClearOld(ctx context.Context, m market.Market, olderThan time.Time) (int, error) {
	return 0, nil
}

func (s *SheetsStore) readRows(ctx context.Context) ([]sheetRow, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, alertsRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read alerts sheet: %v", ErrStorageUnavailable, err)
	}

	rows := make([]sheetRow, 0, len(resp.Values))
	for i, raw := range resp.Values {
		if len(raw) < 4 {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(toString(raw[3])), &rec); err != nil {
			return nil, fmt.Errorf("%w: decode record row %d: %v", ErrStorageUnavailable, i+2, err)
		}
		rows = append(rows, sheetRow{
			index:  i,
			market: toString(raw[0]),
			date:   toString(raw[1]),
			symbol: toString(raw[2]),
			record: rec,
		})
	}
	return rows, nil
}

func findRow(rows []sheetRow, key Key) (sheetRow, bool) {
	date := key.Date.Format("2006-01-02")
	for _, row := range rows {
		if row.market == key.Market.String() && row.date == date && row.symbol == key.Symbol {
			return row, true
		}
	}
	return sheetRow{}, false
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

var _ Store = (*SheetsStore)(nil)
