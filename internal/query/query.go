// Package query implements the two phase waveform read. Stage resolves the
// scans matching a filter so a caller can inspect how many there are; Run
// then fetches the waveform payloads for exactly those scans.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/scopedb/internal/filter"
	"github.com/banshee-data/scopedb/internal/fold"
	"github.com/banshee-data/scopedb/internal/monitoring"
	"github.com/banshee-data/scopedb/internal/timeutil"
)

// ErrNotStaged is returned by Run before a successful Stage.
var ErrNotStaged = errors.New("query not staged")

// Store is the read side of the waveform store.
type Store interface {
	QueryScans(ctx context.Context, f filter.Filter) ([]fold.Record, error)
	QueryWaveformArrays(ctx context.Context, scanIDs []int64, signals, processes []string) ([]fold.Record, error)
	QueryWaveformScalars(ctx context.Context, scanIDs []int64, signals, metrics []string) ([]fold.Record, error)
}

// Options selects what a Query returns. Empty name lists mean everything.
type Options struct {
	Filter  filter.Filter
	Signals []string // signal names, e.g. GMES
	Arrays  []string // array process names, e.g. raw or power_spectrum
	Metrics []string // waveform scalar names, e.g. mean
	Clock   timeutil.Clock
}

// Result holds the folded output of Run.
type Result struct {
	// ScanMeta has one record per staged scan.
	ScanMeta []fold.Record
	// WaveformData has one record per waveform, with each array stored
	// under its process name.
	WaveformData []fold.Record
	// WaveformMeta has one record per waveform with its scalar metrics.
	WaveformMeta []fold.Record
}

// Query is a staged read. It is not safe for concurrent use.
type Query struct {
	id    uuid.UUID
	store Store
	opts  Options
	clock timeutil.Clock

	staged   bool
	stagedAt time.Time
	scans    []fold.Record
	scanIDs  []int64
}

// New returns an unstaged query against s.
func New(s Store, opts Options) *Query {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Query{id: uuid.New(), store: s, opts: opts, clock: clock}
}

// ID identifies the query in log output.
func (q *Query) ID() uuid.UUID { return q.id }

// Stage runs the scan query. It may be called again to refresh the staged
// set. A failed Stage leaves the previous state in place.
func (q *Query) Stage(ctx context.Context) error {
	started := q.clock.Now()
	scans, err := q.store.QueryScans(ctx, q.opts.Filter)
	if err != nil {
		return err
	}
	ids, err := fold.IDs(scans, fold.KeyScanID)
	if err != nil {
		return err
	}

	q.scans, q.scanIDs = scans, ids
	q.staged = true
	q.stagedAt = q.clock.Now()
	monitoring.Logf("[query %s] staged %d scans in %s", q.id, len(ids), q.clock.Since(started))
	return nil
}

// Staged reports whether Stage has succeeded.
func (q *Query) Staged() bool { return q.staged }

// StagedAt returns when the last successful Stage finished.
func (q *Query) StagedAt() time.Time { return q.stagedAt }

// ScanCount returns the number of staged scans, zero before Stage.
func (q *Query) ScanCount() int { return len(q.scanIDs) }

// Scans returns the staged scan records.
func (q *Query) Scans() []fold.Record { return q.scans }

// Run fetches waveform arrays and scalars for the staged scans.
func (q *Query) Run(ctx context.Context) (Result, error) {
	if !q.staged {
		return Result{}, ErrNotStaged
	}
	started := q.clock.Now()

	arrays, err := q.store.QueryWaveformArrays(ctx, q.scanIDs, q.opts.Signals, q.opts.Arrays)
	if err != nil {
		return Result{}, err
	}
	scalars, err := q.store.QueryWaveformScalars(ctx, q.scanIDs, q.opts.Signals, q.opts.Metrics)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		ScanMeta:     q.scans,
		WaveformData: fold.Arrays(arrays),
		WaveformMeta: scalars,
	}
	monitoring.Logf("[query %s] fetched %d arrays over %d waveforms in %s",
		q.id, len(arrays), len(res.WaveformData), q.clock.Since(started))
	return res, nil
}
