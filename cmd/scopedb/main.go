// Command scopedb stores and queries RF scope waveform scans.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/banshee-data/scopedb/internal/monitoring"
	"github.com/banshee-data/scopedb/internal/version"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "scopedb: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("scopedb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logFormat := fs.String("log-format", "text", "Diagnostic log format: text, json or none")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	flush, err := setupLogging(*logFormat)
	if err != nil {
		return err
	}
	defer flush()

	if fs.NArg() < 1 {
		printUsage(stderr)
		return errUsage
	}

	command := fs.Arg(0)
	rest := fs.Args()[1:]

	switch command {
	case "init":
		return handleInit(rest, stdout, stderr)
	case "ingest":
		return handleIngest(rest, stdout, stderr)
	case "query":
		return handleQuery(rest, stdout, stderr)
	case "delete":
		return handleDelete(rest, stdout, stderr)
	case "plot":
		return handlePlot(rest, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return errUsage
	}
}

// setupLogging points monitoring.Logf at the requested sink and returns a
// flush function.
func setupLogging(format string) (func(), error) {
	switch format {
	case "text":
		return func() {}, nil
	case "none":
		monitoring.SetLogger(nil)
		return func() {}, nil
	case "json":
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		monitoring.UseZap(logger)
		return func() { _ = logger.Sync() }, nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `scopedb - waveform scan store

Usage: scopedb [-log-format text|json|none] <command> [options]

Commands:
  init       Create or upgrade the database schema
  ingest     Analyze and store a scan from a JSON file
  query      Select scans by time and metadata, print waveforms as JSON
  delete     Delete a scan and everything under it (owner role)
  plot       Render spectra or raw waveforms of matching scans to PNG
  version    Show scopedb version
  help       Show this help message

Store Flags (all commands but version):
  --config <file>   JSON or YAML store configuration
  --db <path>       SQLite database file (overrides --config)
  --role <role>     readwrite or owner

Query Flags (query, plot):
  --begin <time>    Earliest scan start, RFC 3339
  --end <time>      Latest scan start, RFC 3339
  --where <expr>    Metadata constraint such as "a<2" or "c='on'", repeatable
  --signals <list>  Comma separated signal names
  --arrays <list>   Comma separated array names (query only)
  --metrics <list>  Comma separated waveform metric names (query only)

Examples:
  scopedb init --db scopes.db
  scopedb ingest --db scopes.db scan.json
  scopedb query --db scopes.db --where "a<2" --where "c='on'" --signals GMES --arrays raw
  scopedb query --db scopes.db --count --begin 2024-01-01T00:00:00Z
  scopedb delete --db scopes.db --role owner 42
  scopedb plot --db scopes.db --signals GMES --out spectra.png`)
}
