// Package fold pivots long-format EAV result rows into one record per owner.
package fold

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Well-known record keys.
const (
	KeyScanID     = "scan_id"
	KeyStartTime  = "start_time_utc"
	KeyWaveformID = "waveform_id"
	KeyChannel    = "channel"
	KeySignal     = "signal_name"
	KeyRate       = "sampling_rate_hz"
	KeyComment    = "comment"
	KeyProcess    = "process_name"
	KeyData       = "data"
)

// Key prefixes that keep numeric- and text-origin scan metadata apart.
const (
	NumericPrefix = "f_"
	TextPrefix    = "s_"
)

// Record is one folded entity.
type Record map[string]any

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// Int64 returns the integer stored under key.
func (r Record) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	}
	return 0, false
}

// Float returns the float stored under key.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key].(float64)
	return v, ok
}

// String returns the string stored under key.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key].(string)
	return v, ok
}

// Time returns the timestamp stored under key.
func (r Record) Time(key string) (time.Time, bool) {
	v, ok := r[key].(time.Time)
	return v, ok
}

// Floats returns the numeric array stored under key.
func (r Record) Floats(key string) ([]float64, bool) {
	v, ok := r[key].([]float64)
	return v, ok
}

// Field is a named column value.
type Field struct {
	Key   string
	Value any
}

// Row is one long-format row: an owner id, the owner's shared columns and at
// most one (name, value) pair. Name is empty for rows that carry no pair, for
// example an owner with no metadata returned by an outer join.
type Row struct {
	Owner  int64
	Shared []Field
	Name   string
	Value  any
}

// Source is a batch of rows whose pair names get Prefix prepended.
type Source struct {
	Prefix string
	Rows   []Row
}

// Fold reduces sources, in order, to one record per distinct owner. Owners
// appear in first-seen order. Shared fields are copied when an owner is first
// seen; pairs are merged afterwards and a repeated name keeps the last value.
// An empty input yields an empty, non-nil slice.
func Fold(sources ...Source) []Record {
	out := []Record{}
	index := map[int64]int{}
	for _, src := range sources {
		for _, row := range src.Rows {
			i, seen := index[row.Owner]
			if !seen {
				rec := make(Record, len(row.Shared)+1)
				for _, f := range row.Shared {
					rec[f.Key] = f.Value
				}
				i = len(out)
				index[row.Owner] = i
				out = append(out, rec)
			}
			if row.Name != "" {
				out[i][src.Prefix+row.Name] = row.Value
			}
		}
	}
	return out
}

// ScanMeta folds scan metadata rows from the numeric and text EAV tables.
// Numeric-origin names are prefixed with NumericPrefix and text-origin names
// with TextPrefix, so a name present in both tables yields two fields.
func ScanMeta(numeric, text []Row) []Record {
	return Fold(Source{Prefix: NumericPrefix, Rows: numeric}, Source{Prefix: TextPrefix, Rows: text})
}

// WaveformMeta folds waveform rows keyed by waveform id. Pair names are used
// unprefixed.
func WaveformMeta(rows []Row) []Record {
	return Fold(Source{Rows: rows})
}

// Arrays folds per-array records, as returned by the waveform array query,
// into one record per waveform. Each record's KeyData is stored under its
// KeyProcess name next to the waveform's shared columns. Records without a
// waveform id are skipped.
func Arrays(records []Record) []Record {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		wid, ok := r.Int64(KeyWaveformID)
		if !ok {
			continue
		}
		shared := make([]Field, 0, len(r))
		for _, k := range r.Keys() {
			if k == KeyProcess || k == KeyData {
				continue
			}
			shared = append(shared, Field{Key: k, Value: r[k]})
		}
		name, _ := r.String(KeyProcess)
		rows = append(rows, Row{Owner: wid, Shared: shared, Name: name, Value: r[KeyData]})
	}
	return Fold(Source{Rows: rows})
}

// ScanShared returns the shared scan columns for a scan row.
func ScanShared(scanID int64, start time.Time) []Field {
	return []Field{
		{Key: KeyScanID, Value: scanID},
		{Key: KeyStartTime, Value: start},
	}
}

// WaveformShared returns the shared waveform columns for a waveform row.
// A nil comment is stored as nil.
func WaveformShared(waveformID, scanID int64, channel, signal string, rateHz float64, comment *string) []Field {
	var c any
	if comment != nil {
		c = *comment
	}
	return []Field{
		{Key: KeyWaveformID, Value: waveformID},
		{Key: KeyScanID, Value: scanID},
		{Key: KeyChannel, Value: channel},
		{Key: KeySignal, Value: signal},
		{Key: KeyRate, Value: rateHz},
		{Key: KeyComment, Value: c},
	}
}

// IDs collects the int64 values stored under key, in record order.
func IDs(records []Record, key string) ([]int64, error) {
	ids := make([]int64, 0, len(records))
	for i, r := range records {
		id, ok := r.Int64(key)
		if !ok {
			return nil, fmt.Errorf("record %d has no integer %q", i, key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
