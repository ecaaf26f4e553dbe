package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/scopedb/internal/monitoring"
)

// batchRows caps the rows per multi-row INSERT so the parameter count stays
// well below both engines' limits.
const batchRows = 500

// NamedArray is one waveform array row.
type NamedArray struct {
	Name string
	Data []float64
}

// NamedValue is one numeric EAV row.
type NamedValue struct {
	Name  string
	Value float64
}

// NamedText is one text EAV row.
type NamedText struct {
	Name  string
	Value string
}

// WaveformRow is the parent row of a waveform's arrays and scalars.
type WaveformRow struct {
	ScanID  int64
	Channel string
	Signal  string
	RateHz  float64
	Comment *string
}

// Persister writes one scan inside a transaction and returns its id.
type Persister interface {
	Persist(ctx context.Context, tx *Tx) (int64, error)
}

// Tx is an open write transaction. It is only valid inside Persist.
type Tx struct {
	tx        *sql.Tx
	dialect   dialect
	waveforms int
}

// InsertScan writes p in a single transaction. Any failure rolls the
// transaction back and the failing step's error is returned as is.
func (g *Gateway) InsertScan(ctx context.Context, p Persister) (id int64, err error) {
	start := time.Now()
	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap("begin", err)
	}
	defer func() {
		if err != nil {
			monitoring.Logf("[store] rolling back scan write: %v", err)
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			monitoring.Logf("[store] rollback failed: %v", rbErr)
		}
	}()

	tx := &Tx{tx: sqlTx, dialect: g.dialect}
	id, err = p.Persist(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err = sqlTx.Commit(); err != nil {
		return 0, wrap("commit", err)
	}

	monitoring.Logf("[store] wrote scan %d with %d waveforms in %s", id, tx.waveforms, time.Since(start))
	return id, nil
}

// AddScan inserts the scan row and returns its id.
func (t *Tx) AddScan(ctx context.Context, start time.Time) (int64, error) {
	return t.insertReturning(ctx, "insert scan",
		"INSERT INTO scan (start_time_utc) VALUES (?) RETURNING id", start)
}

// AddWaveform inserts a waveform row and returns its id.
func (t *Tx) AddWaveform(ctx context.Context, w WaveformRow) (int64, error) {
	var comment any
	if w.Comment != nil {
		comment = *w.Comment
	}
	id, err := t.insertReturning(ctx, "insert waveform",
		"INSERT INTO waveform (scan_id, channel, signal_name, sampling_rate_hz, comment) VALUES (?, ?, ?, ?, ?) RETURNING id",
		w.ScanID, w.Channel, w.Signal, w.RateHz, comment)
	if err != nil {
		return 0, err
	}
	t.waveforms++
	return id, nil
}

// AddArrays batch inserts the arrays of one waveform.
func (t *Tx) AddArrays(ctx context.Context, waveformID int64, arrays []NamedArray) error {
	rows := make([][]any, 0, len(arrays))
	for _, a := range arrays {
		data, err := encodeArray(a.Data)
		if err != nil {
			return fmt.Errorf("array %q: %w", a.Name, err)
		}
		rows = append(rows, []any{waveformID, a.Name, data})
	}
	return t.insertRows(ctx, "insert waveform arrays", "waveform_array",
		[]string{"waveform_id", "process_name", "data"}, rows)
}

// AddScalars batch inserts the scalars of one waveform.
func (t *Tx) AddScalars(ctx context.Context, waveformID int64, scalars []NamedValue) error {
	rows := make([][]any, 0, len(scalars))
	for _, s := range scalars {
		rows = append(rows, []any{waveformID, s.Name, s.Value})
	}
	return t.insertRows(ctx, "insert waveform scalars", "waveform_scalar",
		[]string{"waveform_id", "name", "value"}, rows)
}

// AddScanNumeric batch inserts numeric scan metadata.
func (t *Tx) AddScanNumeric(ctx context.Context, scanID int64, meta []NamedValue) error {
	rows := make([][]any, 0, len(meta))
	for _, m := range meta {
		rows = append(rows, []any{scanID, m.Name, m.Value})
	}
	return t.insertRows(ctx, "insert scan numeric metadata", "scan_numeric_meta",
		[]string{"scan_id", "name", "value"}, rows)
}

// AddScanText batch inserts text scan metadata.
func (t *Tx) AddScanText(ctx context.Context, scanID int64, meta []NamedText) error {
	rows := make([][]any, 0, len(meta))
	for _, m := range meta {
		rows = append(rows, []any{scanID, m.Name, m.Value})
	}
	return t.insertRows(ctx, "insert scan text metadata", "scan_text_meta",
		[]string{"scan_id", "name", "value"}, rows)
}

func (t *Tx) insertReturning(ctx context.Context, op, query string, args ...any) (int64, error) {
	var id int64
	if err := t.tx.QueryRowContext(ctx, t.dialect.rebind(query), t.dialect.args(args)...).Scan(&id); err != nil {
		return 0, wrap(op, err)
	}
	return id, nil
}

// insertRows writes rows with multi-row INSERT statements. No rows is a no-op.
func (t *Tx) insertRows(ctx context.Context, op, table string, cols []string, rows [][]any) error {
	for len(rows) > 0 {
		n := min(len(rows), batchRows)
		chunk := rows[:n]
		rows = rows[n:]

		group := "(" + placeholders(len(cols)) + ")"
		groups := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, r := range chunk {
			groups[i] = group
			args = append(args, r...)
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(groups, ", "))
		if _, err := t.tx.ExecContext(ctx, t.dialect.rebind(query), t.dialect.args(args)...); err != nil {
			return wrap(op, err)
		}
	}
	return nil
}
