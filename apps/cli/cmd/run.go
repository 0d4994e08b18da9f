package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/config"
	"github.com/abdul-hamid-achik/apicheck/packages/core/env"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/history"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/output"
	"github.com/abdul-hamid-achik/apicheck/packages/targets"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [suite.yaml|directory...]",
	Short: "Run contract suites",
	Long: `Run suites from YAML files and/or the built-in target catalog.

Examples:
  apicheck run --target all
  apicheck run --target brewery,dogs --parallel
  apicheck run ./suites/ --tags smoke
  apicheck run posts.yaml --name "get_post*" -v
  apicheck run posts.yaml -o junit --output-file report.xml
  apicheck run --target jsonplaceholder -o xlsx --output-file report.xlsx
  apicheck run posts.yaml --history runs.db --watch`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	targetFlag      string
	envFileFlag     string
	varFlags        []string
	configFlag      string
	nameFlag        string
	tagsFlag        string
	verboseFlag     int // 0=off, 1=-v, 2=-vv
	quietFlag       bool
	noColorFlag     bool
	outputFlag      string
	outputFileFlag  string
	bailFlag        bool
	failFastFlag    bool
	strictAllFlag   bool
	timeoutFlag     string
	parallelFlag    bool
	concurrencyFlag int
	rateFlag        float64
	historyFlag     string
	watchFlag       bool
	dryRunFlag      bool
	proxyFlag       string
	insecureFlag    bool
)

func init() {
	// Selection flags
	runCmd.Flags().StringVarP(&targetFlag, "target", "T", getEnvString("APICHECK_TARGET", ""), "Catalog targets to run, comma-separated, or \"all\" (env: APICHECK_TARGET)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only cases whose id matches pattern (trailing * for prefix)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("APICHECK_TAGS", ""), "Run only cases with specified tags (comma-separated) (env: APICHECK_TAGS)")

	// Variable and config flags
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("APICHECK_ENV_FILE", ""), "Comma-separated .env files for variable interpolation (env: APICHECK_ENV_FILE)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a suite variable (key=value), repeatable")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("APICHECK_CONFIG", ""), "Path to config file (env: APICHECK_CONFIG)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v for details and curl reproductions, -vv to log every request)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("APICHECK_QUIET", false), "Suppress all output except errors (env: APICHECK_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("APICHECK_NO_COLOR", false), "Disable colored output (env: APICHECK_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("APICHECK_OUTPUT", "console"), "Output format: "+strings.Join(output.Formats, ", ")+" (env: APICHECK_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("APICHECK_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: APICHECK_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("APICHECK_HISTORY", ""), "Record runs in this SQLite database (env: APICHECK_HISTORY)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("APICHECK_BAIL", false), "Stop a suite after its first failed case (env: APICHECK_BAIL)")
	runCmd.Flags().BoolVar(&failFastFlag, "fail-fast", getEnvBool("APICHECK_FAIL_FAST", false), "Stop evaluating a case at its first failed check (env: APICHECK_FAIL_FAST)")
	runCmd.Flags().BoolVar(&strictAllFlag, "strict-all", getEnvBool("APICHECK_STRICT_ALL", false), "Validate every array element against the record schema, not just the first (env: APICHECK_STRICT_ALL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("APICHECK_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m; default 100s) (env: APICHECK_TIMEOUT)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("APICHECK_PARALLEL", false), "Run cases in parallel (env: APICHECK_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("APICHECK_CONCURRENCY", runner.DefaultConcurrency), "Number of concurrent cases in parallel mode (env: APICHECK_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("APICHECK_RATE", 0), "Maximum requests per second, 0 for unlimited (env: APICHECK_RATE)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Load suites and show what would run without sending requests")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch suite files for changes and re-run")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("APICHECK_PROXY", ""), "Proxy URL for HTTP requests (env: APICHECK_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("APICHECK_INSECURE", false), "Disable SSL certificate validation (env: APICHECK_INSECURE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// flagSet reports whether a flag was given on the command line or through
// its environment variable.
func flagSet(cmd *cobra.Command, name, envKey string) bool {
	if cmd.Flags().Changed(name) {
		return true
	}
	return envKey != "" && os.Getenv(envKey) != ""
}

// flagConfig collects the settings given as flags, so that they override
// the config file.
func flagConfig(cmd *cobra.Command) (*config.Config, error) {
	c := &config.Config{
		Proxy:      proxyFlag,
		History:    historyFlag,
		OutputFile: outputFileFlag,
	}
	if flagSet(cmd, "output", "APICHECK_OUTPUT") {
		c.Output = strings.ToLower(outputFlag)
		if c.Output == "excel" {
			c.Output = "xlsx"
		}
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag)
		}
		c.Timeout = int(d.Milliseconds())
	}
	if flagSet(cmd, "concurrency", "APICHECK_CONCURRENCY") {
		if concurrencyFlag < 1 {
			return nil, fmt.Errorf("concurrency must be at least 1")
		}
		c.Concurrency = concurrencyFlag
	}
	if flagSet(cmd, "rate", "APICHECK_RATE") {
		if rateFlag < 0 {
			return nil, fmt.Errorf("rate must not be negative")
		}
		c.Rate = rateFlag
	}
	if flagSet(cmd, "parallel", "APICHECK_PARALLEL") {
		c.Parallel = config.BoolPtr(parallelFlag)
	}
	if flagSet(cmd, "fail-fast", "APICHECK_FAIL_FAST") {
		c.FailFast = config.BoolPtr(failFastFlag)
	}
	if flagSet(cmd, "strict-all", "APICHECK_STRICT_ALL") {
		c.StrictAll = config.BoolPtr(strictAllFlag)
	}
	if flagSet(cmd, "no-color", "APICHECK_NO_COLOR") || quietFlag {
		c.NoColor = config.BoolPtr(noColorFlag || quietFlag)
	}
	if verboseFlag > 0 {
		c.Verbose = config.BoolPtr(true)
	}
	if insecureFlag {
		c.ValidateSSL = config.BoolPtr(false)
	}
	c.EnvFiles = splitList(envFileFlag)

	if len(varFlags) > 0 {
		c.Variables = make(map[string]string, len(varFlags))
		for _, kv := range varFlags {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("invalid --var %q (expected key=value)", kv)
			}
			c.Variables[strings.TrimSpace(key)] = value
		}
	}
	return c, nil
}

// resolveConfig loads the config file and applies flag overrides.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}
	flags, err := flagConfig(cmd)
	if err != nil {
		return nil, withCode(ExitUsageError, err)
	}
	cfg := fileConfig.Merge(flags)
	if err := cfg.Validate(); err != nil {
		return nil, withCode(ExitConfigError, err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *http.Client {
	opts := []http.ClientOption{
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, http.WithUserAgent(cfg.UserAgent))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.Headers))
	}
	return http.NewClient(opts...)
}

func newRunner(cfg *config.Config) *runner.Runner {
	rcfg := &runner.Config{
		Timeout:     cfg.TimeoutDuration(),
		Parallel:    cfg.GetParallel(),
		Concurrency: cfg.Concurrency,
		Rate:        cfg.Rate,
		FailFast:    cfg.GetFailFast(),
		Bail:        bailFlag,
		StrictAll:   cfg.GetStrictAll(),
		NameFilter:  nameFlag,
		TagsFilter:  splitList(tagsFlag),
	}
	opts := []runner.Option{runner.WithClient(newClient(cfg))}
	if verboseFlag > 1 {
		opts = append(opts, runner.WithLogger(log.New(os.Stderr, "apicheck: ", log.Ltime|log.Lmicroseconds)))
	}
	return runner.NewRunner(rcfg, opts...)
}

// formatterFor opens the configured output and returns the formatter and
// a function that closes the output file, if any.
func formatterFor(cmd *cobra.Command, cfg *config.Config) (output.Formatter, func() error, error) {
	var w io.Writer = cmd.OutOrStdout()
	closeFn := func() error { return nil }

	format := strings.ToLower(cfg.Output)
	if format == "xlsx" && cfg.OutputFile == "" {
		return nil, nil, withCode(ExitUsageError, fmt.Errorf("xlsx output needs --output-file"))
	}
	if quietFlag && cfg.OutputFile == "" && (format == "" || format == "console") {
		w = io.Discard
	}
	if cfg.OutputFile != "" {
		if dir := filepath.Dir(cfg.OutputFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, withCode(ExitConfigError, fmt.Errorf("failed to create directory: %w", err))
			}
		}
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return nil, nil, withCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		w = f
		closeFn = f.Close
	}

	formatter, err := output.New(format, w, cfg.GetVerbose(), cfg.GetNoColor())
	if err != nil {
		_ = closeFn()
		return nil, nil, withCode(ExitUsageError, err)
	}
	return formatter, closeFn, nil
}

func loadVariables(cfg *config.Config) (map[string]any, error) {
	vars, err := env.LoadVariables(cfg.EnvFiles, cfg.Variables)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}
	return vars, nil
}

// collectSuites loads suite files and catalog targets. Files are loaded
// again on every call so watch mode picks up edits.
func collectSuites(args []string, cfg *config.Config) ([]*suite.Suite, error) {
	vars, err := loadVariables(cfg)
	if err != nil {
		return nil, err
	}

	files, err := collectFiles(args)
	if err != nil {
		return nil, withCode(ExitUsageError, err)
	}
	if len(args) > 0 && len(files) == 0 {
		return nil, withCode(ExitUsageError, fmt.Errorf("no .yaml or .yml suite files found"))
	}

	suites, err := loadSuites(files, vars)
	if err != nil {
		return nil, err
	}
	if names := splitList(targetFlag); len(names) > 0 {
		catalog, err := targetSuites(names, cfg)
		if err != nil {
			return nil, err
		}
		suites = append(suites, catalog...)
	}
	return suites, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && targetFlag == "" {
		return withCode(ExitUsageError, fmt.Errorf("give suite files or --target (available targets: %s, all)", strings.Join(targets.Names(), ", ")))
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	var store *history.Store
	if cfg.History != "" {
		store, err = history.Open(cfg.History)
		if err != nil {
			return withCode(ExitConfigError, err)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOnce := func() error {
		suites, err := collectSuites(args, cfg)
		if err != nil {
			return err
		}
		if dryRunFlag {
			return dryRun(cmd, cfg, suites)
		}
		return runSuites(ctx, cmd, cfg, suites, store)
	}

	err = runOnce()
	if !watchFlag {
		return err
	}
	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	return watch(ctx, cmd, args, runOnce)
}

// runSuites runs every suite, reports and records it, and returns an
// ExitError describing the worst outcome.
func runSuites(ctx context.Context, cmd *cobra.Command, cfg *config.Config, suites []*suite.Suite, store *history.Store) error {
	formatter, closeOutput, err := formatterFor(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	formatter.FormatHeader(version)
	r := newRunner(cfg)

	var (
		reports   []*runner.SuiteReport
		invalid   bool
		startTime = time.Now()
	)
	for _, s := range suites {
		report, err := r.Run(ctx, s)
		if err != nil {
			formatter.FormatError(err)
			invalid = true
			continue
		}
		formatter.FormatResult(report)
		reports = append(reports, report)

		if store != nil {
			if _, err := store.Record(ctx, report); err != nil {
				warnf("failed to record run of %s: %v", report.Name, err)
			}
		}
	}

	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(time.Since(startTime)); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if invalid {
		return &ExitError{Code: ExitParseError}
	}
	return outcome(reports)
}

// outcome maps reports to an exit status: network when every failure is a
// transport failure, test failure otherwise.
func outcome(reports []*runner.SuiteReport) error {
	failed, transport := 0, 0
	for _, report := range reports {
		failed += report.Failed
		transport += report.ByReason()[runner.ReasonTransportFailure]
	}
	switch {
	case failed == 0:
		return nil
	case failed == transport:
		return &ExitError{Code: ExitNetworkError}
	default:
		return &ExitError{Code: ExitTestFailure}
	}
}

func dryRun(cmd *cobra.Command, cfg *config.Config, suites []*suite.Suite) error {
	out := cmd.OutOrStdout()
	r := newRunner(cfg)
	invalid := false
	for _, s := range suites {
		label := s.Name
		if s.Source != "" {
			label += " (" + s.Source + ")"
		}
		if err := s.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			invalid = true
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", label)
		selected := r.Selected(s)
		for _, c := range selected {
			t := s.Templates[c.Template]
			method := c.Method
			if method == "" {
				method = t.Method
			}
			line := fmt.Sprintf("  - %s  %s %s -> %d", c.ID, method, t.URL, c.ExpectStatus)
			if c.Skip != "" {
				line += "  (skip: " + c.Skip + ")"
			}
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "  %d of %d cases selected\n", len(selected), len(s.Cases))
	}
	if invalid {
		return &ExitError{Code: ExitParseError}
	}
	return nil
}

// watch re-runs on writes to suite files and their JSON schema documents
// until ctx is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args []string, runOnce func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	files, err := collectFiles(args)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				warnf("failed to watch %s: %v", dir, err)
			}
			watchedDirs[dir] = true
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	if len(watchedDirs) == 0 {
		return withCode(ExitUsageError, fmt.Errorf("--watch needs suite files or directories"))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	changed := make(chan string, 1)
	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isSuiteFile(event.Name) && filepath.Ext(event.Name) != ".json" {
				continue
			}
			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case changed <- name:
				default:
				}
			})

		case name := <-changed:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", name)
			if err := runOnce(); err != nil {
				var exitErr *ExitError
				if !errors.As(err, &exitErr) || exitErr.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			warnf("watcher error: %v", err)
		}
	}
}
