package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/scopedb/internal/analysis"
	"github.com/banshee-data/scopedb/internal/config"
	"github.com/banshee-data/scopedb/internal/fold"
	"github.com/banshee-data/scopedb/internal/plotting"
	"github.com/banshee-data/scopedb/internal/query"
	"github.com/banshee-data/scopedb/internal/scan"
	"github.com/banshee-data/scopedb/internal/store"
)

// storeFlags are shared by every command that touches the database.
type storeFlags struct {
	config string
	db     string
	role   string
}

func (s *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.config, "config", "", "JSON or YAML store configuration file")
	fs.StringVar(&s.db, "db", "", "SQLite database file (overrides --config)")
	fs.StringVar(&s.role, "role", "", "Database role: readwrite or owner")
}

func (s *storeFlags) load() (*config.StoreConfig, error) {
	cfg := config.EmptyStoreConfig()
	if s.config != "" {
		var err error
		if cfg, err = config.LoadStoreConfig(s.config); err != nil {
			return nil, err
		}
	}
	if s.db != "" {
		driver, path := config.DriverSQLite, s.db
		cfg.Driver, cfg.Path, cfg.Conn = &driver, &path, nil
	}
	if s.role != "" {
		role := s.role
		cfg.Role = &role
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (s *storeFlags) open(ctx context.Context) (*store.Gateway, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg)
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func handleInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}
	if err := store.ApplySchema(cfg.GetDriver(), cfg.DSN()); err != nil {
		return err
	}
	v, dirty, err := store.SchemaVersion(cfg.GetDriver(), cfg.DSN())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}

func handleIngest(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "ingest: at least one scan file is required")
		return errUsage
	}

	ctx, cancel := commandContext()
	defer cancel()

	g, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer g.Close()

	for _, path := range fs.Args() {
		s, err := loadScanFile(path)
		if err != nil {
			return err
		}
		id, err := s.Insert(ctx, g)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "%s: scan %d (%d waveforms)\n", path, id, len(s.Waveforms()))
	}
	return nil
}

type queryOutput struct {
	QueryID   string        `json:"query_id"`
	ScanCount int           `json:"scan_count"`
	Scans     []fold.Record `json:"scans"`
	Waveforms []fold.Record `json:"waveforms,omitempty"`
	Metrics   []fold.Record `json:"metrics,omitempty"`
}

func handleQuery(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	var sf storeFlags
	var qf queryFlags
	sf.register(fs)
	qf.register(fs, true)
	countOnly := fs.Bool("count", false, "Only stage the query and print the scan count")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	opts, err := qf.options()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	g, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer g.Close()

	q := query.New(g, opts)
	if err := q.Stage(ctx); err != nil {
		return err
	}
	out := queryOutput{QueryID: q.ID().String(), ScanCount: q.ScanCount(), Scans: q.Scans()}
	if !*countOnly {
		res, err := q.Run(ctx)
		if err != nil {
			return err
		}
		out.Waveforms, out.Metrics = res.WaveformData, res.WaveformMeta
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func handleDelete(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	var sf storeFlags
	sf.register(fs)
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "delete: at least one scan id is required")
		return errUsage
	}

	ids := make([]int64, 0, fs.NArg())
	for _, a := range fs.Args() {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid scan id %q: %w", a, err)
		}
		ids = append(ids, id)
	}

	ctx, cancel := commandContext()
	defer cancel()

	g, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer g.Close()

	for _, id := range ids {
		n, err := g.DeleteScan(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "scan %d: %d deleted\n", id, n)
	}
	return nil
}

func handlePlot(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	var sf storeFlags
	var qf queryFlags
	sf.register(fs)
	qf.register(fs, false)
	kind := fs.String("kind", "spectrum", "What to draw: spectrum or raw")
	outPath := fs.String("out", "waveforms.png", "Output image path (.png, .svg, .pdf)")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	opts, err := qf.options()
	if err != nil {
		return err
	}
	var title, xLabel, yLabel string
	switch *kind {
	case "spectrum":
		opts.Arrays = []string{analysis.ArrayFrequencies, analysis.ArrayPowerSpectrum}
		title, xLabel, yLabel = "Power spectral density", "Frequency (Hz)", "PSD (V²/Hz)"
	case "raw":
		opts.Arrays = []string{scan.RawProcess}
		title, xLabel, yLabel = "Raw waveforms", "Time (s)", "Amplitude"
	default:
		return fmt.Errorf("unknown plot kind %q", *kind)
	}
	opts.Metrics = []string{analysis.MetricMean}

	ctx, cancel := commandContext()
	defer cancel()

	g, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer g.Close()

	q := query.New(g, opts)
	if err := q.Stage(ctx); err != nil {
		return err
	}
	res, err := q.Run(ctx)
	if err != nil {
		return err
	}

	var series []plotting.Series
	if *kind == "raw" {
		series = plotting.RawSeries(res.WaveformData, scan.RawProcess)
	} else {
		series = plotting.SpectrumSeries(res.WaveformData)
	}
	p, err := plotting.Render(title, xLabel, yLabel, series)
	if err != nil {
		return err
	}
	if err := plotting.Save(p, *outPath); err != nil {
		return err
	}
	info, err := os.Stat(*outPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d waveforms from %d scans to %s (%s)\n",
		len(series), q.ScanCount(), *outPath, humanize.Bytes(uint64(info.Size())))
	return nil
}

// loadScanFile reads a scan JSON document and runs the analyzer over its
// signals.
func loadScanFile(path string) (*scan.Scan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan file: %w", err)
	}
	defer f.Close()
	return decodeScan(f)
}
