// Package analytics surfaces which alert criteria historically produced
// winners. Buckets are recomputed on demand from history records and are
// never persisted.
package analytics

import (
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"

	"screener-alerts/internal/history"
)

// GroupBy selects the aggregation dimension.
type GroupBy string

const (
	ByScore     GroupBy = "score"
	ByPattern   GroupBy = "pattern"
	BySetup     GroupBy = "setup"
	ByDirection GroupBy = "direction"
)

// Bucket aggregates outcomes for one grouping key. A win is a final
// Return% strictly greater than zero.
type Bucket struct {
	GroupBy     GroupBy
	Key         string
	Count       int
	Wins        int
	WinRate     float64 // percent
	AvgReturn   float64 // percent
	AvgDrawdown float64 // percent, direction-adjusted worst excursion
}

type sample struct {
	ret      float64
	drawdown float64
	win      bool
}

// Aggregate groups the provided records by the chosen dimension. Score,
// setup, and direction partition the records; the pattern dimension
// fans out, so a record matching several patterns contributes to each.
func Aggregate(records []history.Record, groupBy GroupBy) []Bucket {
	grouped := map[string][]sample{}
	for _, rec := range records {
		s := sample{
			ret:      rec.ReturnPct().InexactFloat64(),
			drawdown: rec.MaxDrawdownPct().InexactFloat64(),
		}
		s.win = rec.ReturnPct().IsPositive()

		for _, key := range keysFor(rec, groupBy) {
			grouped[key] = append(grouped[key], s)
		}
	}

	buckets := make([]Bucket, 0, len(grouped))
	for key, samples := range grouped {
		bucket := Bucket{GroupBy: groupBy, Key: key, Count: len(samples)}
		returns := make([]float64, 0, len(samples))
		drawdowns := make([]float64, 0, len(samples))
		for _, s := range samples {
			returns = append(returns, s.ret)
			drawdowns = append(drawdowns, s.drawdown)
			if s.win {
				bucket.Wins++
			}
		}
		bucket.WinRate = float64(bucket.Wins) / float64(bucket.Count) * 100
		bucket.AvgReturn, _ = stats.Mean(returns)
		bucket.AvgDrawdown, _ = stats.Mean(drawdowns)
		buckets = append(buckets, bucket)
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].WinRate != buckets[j].WinRate {
			return buckets[i].WinRate > buckets[j].WinRate
		}
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return keyLess(groupBy, buckets[i].Key, buckets[j].Key)
	})
	return buckets
}

func keysFor(rec history.Record, groupBy GroupBy) []string {
	switch groupBy {
	case ByScore:
		return []string{strconv.Itoa(rec.Alert.Score)}
	case ByPattern:
		return rec.Alert.Patterns
	case BySetup:
		return []string{string(rec.Alert.Setup)}
	case ByDirection:
		return []string{string(rec.Alert.Direction)}
	default:
		return nil
	}
}

// keyLess orders tie-broken keys: numerically for the score dimension,
// lexically otherwise.
func keyLess(groupBy GroupBy, a, b string) bool {
	if groupBy == ByScore {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			return ai < bi
		}
	}
	return a < b
}
