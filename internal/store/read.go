package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/banshee-data/scopedb/internal/filter"
	"github.com/banshee-data/scopedb/internal/fold"
)

// QueryScans returns one folded record per scan matching f, in scan id
// order. Scans without metadata are included. Validation of f happens before
// any I/O.
func (g *Gateway) QueryScans(ctx context.Context, f filter.Filter) ([]fold.Record, error) {
	cl, err := f.Compile()
	if err != nil {
		return nil, err
	}

	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, wrap("acquire connection", err)
	}
	defer conn.Close()

	sub := "SELECT DISTINCT scan.id, scan.start_time_utc FROM scan"
	if frag := cl.SQL(); frag != "" {
		sub += "\n" + frag
	}
	args := g.dialect.args(cl.Args)

	numeric, err := g.scanMetaRows(ctx, conn, sub, "scan_numeric_meta", args, func(r *sql.Rows, row *fold.Row) error {
		var name sql.NullString
		var value sql.NullFloat64
		if err := scanMetaRow(r, row, &name, &value); err != nil {
			return err
		}
		if name.Valid {
			row.Name, row.Value = name.String, value.Float64
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	text, err := g.scanMetaRows(ctx, conn, sub, "scan_text_meta", args, func(r *sql.Rows, row *fold.Row) error {
		var name, value sql.NullString
		if err := scanMetaRow(r, row, &name, &value); err != nil {
			return err
		}
		if name.Valid {
			row.Name, row.Value = name.String, value.String
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fold.ScanMeta(numeric, text), nil
}

func scanMetaRow(r *sql.Rows, row *fold.Row, name, value any) error {
	var start any
	if err := r.Scan(&row.Owner, &start, name, value); err != nil {
		return err
	}
	t, err := parseTime(start)
	if err != nil {
		return err
	}
	row.Shared = fold.ScanShared(row.Owner, t)
	return nil
}

func (g *Gateway) scanMetaRows(ctx context.Context, conn *sql.Conn, sub, table string, args []any,
	scan func(*sql.Rows, *fold.Row) error) ([]fold.Row, error) {
	query := fmt.Sprintf(`SELECT s.id, s.start_time_utc, m.name, m.value
FROM (%s) AS s
LEFT JOIN %s m ON m.scan_id = s.id
ORDER BY s.id, m.id`, sub, table)

	op := "query " + table
	rows, err := conn.QueryContext(ctx, g.dialect.rebind(query), args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []fold.Row{}
	for rows.Next() {
		var row fold.Row
		if err := scan(rows, &row); err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

// QueryWaveformArrays returns one record per stored array of the given scans:
// the waveform's shared columns plus fold.KeyProcess and fold.KeyData. Empty
// signals or processes mean no restriction. No scan ids means no rows.
func (g *Gateway) QueryWaveformArrays(ctx context.Context, scanIDs []int64, signals, processes []string) ([]fold.Record, error) {
	if len(scanIDs) == 0 {
		return []fold.Record{}, nil
	}

	where, args := waveformWhere(scanIDs, signals, "a.process_name", processes)
	query := `SELECT w.id, w.scan_id, w.channel, w.signal_name, w.sampling_rate_hz, w.comment, a.process_name, a.data
FROM waveform w
JOIN waveform_array a ON a.waveform_id = w.id
` + where + `
ORDER BY w.id, a.id`

	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, wrap("acquire connection", err)
	}
	defer conn.Close()

	const op = "query waveform arrays"
	rows, err := conn.QueryContext(ctx, g.dialect.rebind(query), args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []fold.Record{}
	for rows.Next() {
		var process, data string
		_, shared, err := scanWaveform(rows, &process, &data)
		if err != nil {
			return nil, wrap(op, err)
		}
		arr, err := decodeArray(data)
		if err != nil {
			return nil, err
		}
		rec := make(fold.Record, len(shared)+2)
		for _, f := range shared {
			rec[f.Key] = f.Value
		}
		rec[fold.KeyProcess] = process
		rec[fold.KeyData] = arr
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

// QueryWaveformScalars returns one folded record per waveform of the given
// scans, holding its shared columns and its scalar metrics. Empty signals or
// metrics mean no restriction. No scan ids means no rows.
func (g *Gateway) QueryWaveformScalars(ctx context.Context, scanIDs []int64, signals, metrics []string) ([]fold.Record, error) {
	if len(scanIDs) == 0 {
		return []fold.Record{}, nil
	}

	where, args := waveformWhere(scanIDs, signals, "v.name", metrics)
	query := `SELECT w.id, w.scan_id, w.channel, w.signal_name, w.sampling_rate_hz, w.comment, v.name, v.value
FROM waveform w
JOIN waveform_scalar v ON v.waveform_id = w.id
` + where + `
ORDER BY w.id, v.id`

	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, wrap("acquire connection", err)
	}
	defer conn.Close()

	const op = "query waveform scalars"
	rows, err := conn.QueryContext(ctx, g.dialect.rebind(query), args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []fold.Row
	for rows.Next() {
		var (
			name  string
			value float64
		)
		wid, shared, err := scanWaveform(rows, &name, &value)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, fold.Row{Owner: wid, Shared: shared, Name: name, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return fold.WaveformMeta(out), nil
}

// scanWaveform reads the six waveform columns followed by one (name, value)
// pair.
func scanWaveform(r *sql.Rows, name, value any) (int64, []fold.Field, error) {
	var (
		wid, sid        int64
		channel, signal string
		rate            float64
		comment         sql.NullString
	)
	if err := r.Scan(&wid, &sid, &channel, &signal, &rate, &comment, name, value); err != nil {
		return 0, nil, err
	}
	var c *string
	if comment.Valid {
		c = &comment.String
	}
	return wid, fold.WaveformShared(wid, sid, channel, signal, rate, c), nil
}

func waveformWhere(scanIDs []int64, signals []string, nameCol string, names []string) (string, []any) {
	args := make([]any, 0, len(scanIDs)+len(signals)+len(names))
	for _, id := range scanIDs {
		args = append(args, id)
	}
	conds := []string{fmt.Sprintf("w.scan_id IN (%s)", placeholders(len(scanIDs)))}
	if len(signals) > 0 {
		conds = append(conds, fmt.Sprintf("w.signal_name IN (%s)", placeholders(len(signals))))
		for _, s := range signals {
			args = append(args, s)
		}
	}
	if len(names) > 0 {
		conds = append(conds, fmt.Sprintf("%s IN (%s)", nameCol, placeholders(len(names))))
		for _, n := range names {
			args = append(args, n)
		}
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
