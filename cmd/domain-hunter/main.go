package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"domain-hunter/pkg/config"
	"domain-hunter/pkg/logging"
	"domain-hunter/pkg/output"
	"domain-hunter/pkg/progress"
	"domain-hunter/pkg/resolver"
	"domain-hunter/pkg/scanner"
	"domain-hunter/pkg/telemetry"
	"domain-hunter/pkg/wordlist"

	"github.com/spf13/pflag"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	configPath  string
	domain      string
	wordlist    string
	output      string
	backend     string
	dbPath      string
	logLevel    string
	logFile     string
	upstreams   []string
	timeout     time.Duration
	showScan    int64
	concurrency int
	metricsPort int
	retention   int
	history     int
	quiet       bool
	noColor     bool
	version     bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("domain-hunter", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: domain-hunter -d <domain> -w <wordlist> [flags]\n\nFlags:\n%s", fs.FlagUsages())
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVarP(&opts.domain, "domain", "d", "", "Target domain (e.g. example.com)")
	fs.StringVarP(&opts.wordlist, "wordlist", "w", "", "Path to the subdomain wordlist")
	fs.IntVarP(&opts.concurrency, "concurrency", "c", config.DefaultConcurrency, "Number of lookups in flight at once")
	fs.StringVarP(&opts.output, "output", "o", "", "Write resolved subdomains to this file")
	fs.StringVar(&opts.backend, "resolver", config.DefaultBackend, "Resolver backend (dns or system)")
	fs.StringSliceVar(&opts.upstreams, "upstream", nil, "Upstream DNS server host[:port] (repeatable)")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Per-lookup timeout")
	fs.StringVar(&opts.dbPath, "db", "", "Record the scan in this SQLite database")
	fs.IntVar(&opts.retention, "retention-days", 0, "Prune recorded scans older than this many days (0 keeps all)")
	fs.IntVar(&opts.history, "history", 0, "List the N most recent recorded scans (filtered by --domain) and exit")
	fs.Int64Var(&opts.showScan, "show-scan", 0, "Print the results of a recorded scan and exit")
	fs.StringVar(&opts.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFile, "log-file", "scanner_errors.log", "Log file path")
	fs.IntVar(&opts.metricsPort, "metrics-port", 0, "Expose Prometheus metrics on this port (0 disables)")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Only output raw results")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return opts, fs, nil
}

// buildConfig loads the optional config file, lets explicitly set flags
// override it and validates the result for a scan.
func buildConfig(opts *options, fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := loadConfig(opts, fs)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// historyMode reports whether the flags ask to read the scan history
// instead of scanning
func historyMode(opts *options) bool {
	return opts.history != 0 || opts.showScan != 0
}

// buildHistoryConfig is buildConfig for --history and --show-scan, which
// need neither a wordlist nor a resolver.
func buildHistoryConfig(opts *options, fs *pflag.FlagSet) (*config.Config, error) {
	if opts.history < 0 {
		return nil, fmt.Errorf("invalid history limit: %d (must be a positive integer)", opts.history)
	}
	if opts.showScan < 0 {
		return nil, fmt.Errorf("invalid scan id: %d", opts.showScan)
	}
	if opts.history > 0 && opts.showScan > 0 {
		return nil, fmt.Errorf("--history and --show-scan cannot be combined")
	}

	cfg, err := loadConfig(opts, fs)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.DatabasePath == "" {
		return nil, fmt.Errorf("reading scan history needs --db or storage.database_path")
	}

	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadConfig(opts *options, fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.LoadWithDefaults()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if fs.Changed("domain") {
		cfg.Scan.Domain = opts.domain
	}
	if fs.Changed("wordlist") {
		cfg.Scan.Wordlist = opts.wordlist
	}
	if fs.Changed("concurrency") {
		cfg.Scan.Concurrency = opts.concurrency
	}
	if fs.Changed("output") {
		cfg.Scan.Output = opts.output
	}
	if fs.Changed("quiet") {
		cfg.Scan.Quiet = opts.quiet
	}
	if fs.Changed("no-color") {
		cfg.Scan.NoColor = opts.noColor
	}

	if fs.Changed("resolver") {
		cfg.Resolver.Backend = opts.backend
	}
	if fs.Changed("upstream") {
		cfg.Resolver.Upstreams = opts.upstreams
	}
	if cfg.Resolver.Backend == config.BackendDNS && len(cfg.Resolver.Upstreams) == 0 {
		cfg.Resolver.Upstreams = config.DefaultUpstreams()
	}
	if fs.Changed("timeout") {
		cfg.Resolver.Timeout = opts.timeout
	}

	if fs.Changed("db") {
		cfg.Storage.Enabled = opts.dbPath != ""
		cfg.Storage.DatabasePath = opts.dbPath
	}
	if fs.Changed("retention-days") {
		cfg.Storage.RetentionDays = opts.retention
	}

	if fs.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if fs.Changed("log-file") {
		cfg.Logging.Output = "file"
		cfg.Logging.FilePath = opts.logFile
	}

	if fs.Changed("metrics-port") {
		cfg.Telemetry.Enabled = opts.metricsPort > 0
		cfg.Telemetry.PrometheusEnabled = opts.metricsPort > 0
		cfg.Telemetry.PrometheusPort = opts.metricsPort
	}
	cfg.Telemetry.ServiceVersion = version

	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if opts.version {
		_, _ = fmt.Fprintf(stdout, "domain-hunter %s (built %s)\n", version, buildTime)
		return exitOK
	}

	if historyMode(opts) {
		cfg, err := buildHistoryConfig(opts, fs)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
			return exitUsage
		}
		return runHistory(ctx, cfg, opts, newConsole(stdout, cfg.Scan.NoColor))
	}

	cfg, err := buildConfig(opts, fs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		fs.Usage()
		return exitUsage
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logger.Close() }()
	logging.SetGlobal(logger)

	ui := newConsole(stdout, cfg.Scan.NoColor)
	if !cfg.Scan.Quiet {
		ui.banner(cfg, version)
	}

	labels, err := wordlist.Load(cfg.Scan.Wordlist)
	if err != nil {
		logger.Error("Failed to read wordlist", "path", cfg.Scan.Wordlist, "error", err)
	}
	if len(labels) == 0 {
		ui.fail("No words found in the wordlist. Exiting.")
		return exitOK
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	telem, err := telemetry.New(ctx, &cfg.Telemetry, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		return exitFailure
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during telemetry shutdown", "error", err)
		}
	}()

	metrics, err := telem.InitMetrics()
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		return exitFailure
	}

	res, err := resolver.New(&cfg.Resolver, logger)
	if err != nil {
		logger.Error("Failed to create resolver", "error", err)
		ui.fail(fmt.Sprintf("Failed to create resolver: %v", err))
		return exitFailure
	}

	scanOpts := []scanner.Option{
		scanner.WithConcurrency(cfg.Scan.Concurrency),
		scanner.WithLogger(logger),
		scanner.WithMetrics(metrics),
	}
	if cfg.Scan.Quiet {
		scanOpts = append(scanOpts, scanner.WithResultHandler(ui.raw))
	} else {
		scanOpts = append(scanOpts,
			scanner.WithResultHandler(ui.hit),
			scanner.WithDisplay(func(total int64) progress.Display {
				return progress.NewBarDisplay(stderr, total, "Scanning")
			}),
		)
	}

	scan, err := scanner.New(res, scanOpts...)
	if err != nil {
		logger.Error("Failed to create scanner", "error", err)
		return exitFailure
	}

	report, err := scan.Scan(ctx, cfg.Scan.Domain, labels)
	// Restore default signal handling so a second interrupt ends the
	// process during the saves below.
	stop()
	if report == nil {
		logger.Error("Scan failed", "domain", cfg.Scan.Domain, "error", err)
		ui.fail(fmt.Sprintf("Scan failed: %v", err))
		return exitFailure
	}
	if err != nil {
		logger.Error("Scan ended early", "domain", report.Domain, "error", err)
	}

	if report.Interrupted {
		ui.warn("Scan interrupted by user.")
	}
	if !cfg.Scan.Quiet {
		ui.summary(report)
	}

	if cfg.Scan.Output != "" {
		if saveErr := output.SaveFile(cfg.Scan.Output, report.Results); saveErr != nil {
			logger.Error("Failed to save results", "path", cfg.Scan.Output, "error", saveErr)
			ui.fail(fmt.Sprintf("Failed to save results: %v", saveErr))
		} else if !cfg.Scan.Quiet {
			ui.info("Results saved to: " + cfg.Scan.Output)
		}
	}

	if cfg.Storage.Enabled {
		id, histErr := saveHistory(&cfg.Storage, report, cfg.Scan.Concurrency, logger)
		if histErr != nil {
			logger.Error("Failed to record scan history", "path", cfg.Storage.DatabasePath, "error", histErr)
		} else {
			logger.Info("Scan recorded", "id", id, "path", cfg.Storage.DatabasePath)
		}
	}

	if err != nil {
		return exitFailure
	}
	return exitOK
}
