package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/market"
)

const (
	dayFileExt         = ".json"
	schedulerStateFile = "scheduler_state.json"
)

// FileStore keeps one JSON document per (market, day) under a root
// directory. It assumes single-writer discipline; an in-process mutex
// serialises the read-then-write of each save so rapid double saves
// cannot race the dedup check.
type FileStore struct {
	root   string
	window int

	mu sync.Mutex
}

// NewFileStore opens (creating if needed) a file-backed store.
func NewFileStore(root string, trackingWindow int) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store root: %v", ErrStorageUnavailable, err)
	}
	return &FileStore{root: root, window: trackingWindow}, nil
}

type dayDocument struct {
	SchemaVersion int      `json:"schema_version"`
	Records       []Record `json:"records"`
}

// Save persists the alert unless a record already exists for its key.
func (s *FileStore) Save(ctx context.Context, a alert.Alert) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := KeyOf(a)
	doc, err := s.readDay(key.Market, key.Date)
	if err != nil {
		return false, err
	}
	for _, rec := range doc.Records {
		if rec.Alert.Symbol == a.Symbol {
			return false, nil
		}
	}

	doc.Records = append(doc.Records, NewRecord(a))
	if err := s.writeDay(key.Market, key.Date, doc); err != nil {
		return false, err
	}
	return true, nil
}

// Load returns the day's records in insertion order.
func (s *FileStore) Load(ctx context.Context, m market.Market, date time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDay(m, date)
	if err != nil {
		return nil, err
	}
	return doc.Records, nil
}

// LoadRange returns records with evaluation dates inside [start, end].
func (s *FileStore) LoadRange(ctx context.Context, m market.Market, start, end time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dates, err := s.listDates(m)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, date := range dates {
		if date.Before(dayStart(start)) || date.After(dayStart(end)) {
			continue
		}
		doc, err := s.readDay(m, date)
		if err != nil {
			return nil, err
		}
		records = append(records, doc.Records...)
	}
	return records, nil
}

// UpdateTracking applies one price sample to a stored record.
func (s *FileStore) UpdateTracking(ctx context.Context, key Key, offset int, price decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDay(key.Market, key.Date)
	if err != nil {
		return err
	}

	idx := -1
	for i, rec := range doc.Records {
		if rec.Alert.Symbol == key.Symbol {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}

	updated := doc.Records[idx]
	if err := updated.ApplySample(offset, s.window, price); err != nil {
		return err
	}
	doc.Records[idx] = updated
	return s.writeDay(key.Market, key.Date, doc)
}

// GetSchedulerState loads the market's persisted scheduler state.
func (s *FileStore) GetSchedulerState(ctx context.Context, m market.Market) (SchedulerState, error) {
	if err := ctx.Err(); err != nil {
		return SchedulerState{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.marketDir(m), schedulerStateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SchedulerState{SchemaVersion: SchemaVersion}, nil
		}
		return SchedulerState{}, fmt.Errorf("%w: read scheduler state: %v", ErrStorageUnavailable, err)
	}

	var state SchedulerState
	if err := json.Unmarshal(data, &state); err != nil {
		return SchedulerState{}, fmt.Errorf("%w: decode scheduler state: %v", ErrStorageUnavailable, err)
	}
	return state, nil
}

// SetSchedulerState persists the market's scheduler state.
func (s *FileStore) SetSchedulerState(ctx context.Context, m market.Market, state SchedulerState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state.SchemaVersion = SchemaVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode scheduler state: %v", ErrStorageUnavailable, err)
	}
	return s.writeFileAtomic(filepath.Join(s.marketDir(m), schedulerStateFile), data)
}

// ClearOld deletes day documents older than the cutoff date.
func (s *FileStore) ClearOld(ctx context.Context, m market.Market, olderThan time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dates, err := s.listDates(m)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, date := range dates {
		if !date.Before(dayStart(olderThan)) {
			continue
		}
		doc, err := s.readDay(m, date)
		if err != nil {
			return removed, err
		}
		if err := os.Remove(s.dayPath(m, date)); err != nil {
			return removed, fmt.Errorf("%w: remove day file: %v", ErrStorageUnavailable, err)
		}
		removed += len(doc.Records)
	}
	return removed, nil
}

func (s *FileStore) marketDir(m market.Market) string {
	return filepath.Join(s.root, strings.ToLower(m.String()))
}

func (s *FileStore) dayPath(m market.Market, date time.Time) string {
	return filepath.Join(s.marketDir(m), date.UTC().Format("2006-01-02")+dayFileExt)
}

func (s *FileStore) readDay(m market.Market, date time.Time) (dayDocument, error) {
	data, err := os.ReadFile(s.dayPath(m, date))
	if err != nil {
		if os.IsNotExist(err) {
			return dayDocument{SchemaVersion: SchemaVersion}, nil
		}
		return dayDocument{}, fmt.Errorf("%w: read day file: %v", ErrStorageUnavailable, err)
	}

	var doc dayDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return dayDocument{}, fmt.Errorf("%w: decode day file: %v", ErrStorageUnavailable, err)
	}
	return doc, nil
}

func (s *FileStore) writeDay(m market.Market, date time.Time, doc dayDocument) error {
	doc.SchemaVersion = SchemaVersion
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode day file: %v", ErrStorageUnavailable, err)
	}
	return s.writeFileAtomic(s.dayPath(m, date), data)
}

// writeFileAtomic writes via a temp file and rename so a crashed write
// never leaves a truncated document behind.
func (s *FileStore) writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create market dir: %v", ErrStorageUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename temp file: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *FileStore) listDates(m market.Market) ([]time.Time, error) {
	entries, err := os.ReadDir(s.marketDir(m))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list market dir: %v", ErrStorageUnavailable, err)
	}

	var dates []time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, dayFileExt) || name == schedulerStateFile {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSuffix(name, dayFileExt))
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func dayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

var _ Store = (*FileStore)(nil)
