package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileProvider reads feature snapshots exported by the indicator
// pipeline as one JSON document per evaluation date.
type FileProvider struct {
	root string
}

// NewFileProvider points a provider at a snapshot directory.
func NewFileProvider(root string) *FileProvider {
	return &FileProvider{root: root}
}

// GetSnapshot returns the snapshot for one symbol on one date.
func (p *FileProvider) GetSnapshot(ctx context.Context, symbol string, date time.Time) (FeatureSnapshot, error) {
	snaps, err := p.LoadDay(ctx, date)
	if err != nil {
		return FeatureSnapshot{}, err
	}
	for _, snap := range snaps {
		if snap.Symbol == symbol {
			return snap, nil
		}
	}
	return FeatureSnapshot{}, ErrNotAvailable
}

// LoadDay returns every snapshot recorded for the given date.
func (p *FileProvider) LoadDay(ctx context.Context, date time.Time) ([]FeatureSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.root, date.UTC().Format("2006-01-02")+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAvailable
		}
		return nil, fmt.Errorf("read snapshot file %s: %w", path, err)
	}

	var snaps []FeatureSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("decode snapshot file %s: %w", path, err)
	}
	return snaps, nil
}

var _ Provider = (*FileProvider)(nil)
