package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"svcscan/internal/client"
	"svcscan/internal/config"
	"svcscan/internal/db"
	"svcscan/internal/engine"
	"svcscan/internal/httpapi"
	"svcscan/internal/metrics"
	"svcscan/internal/scan"
)

type flags struct {
	verbose     bool
	ssl         bool
	jsonOut     bool
	ports       string
	timeoutMS   int
	threads     int
	outPath     string
	curl        string
	configPath  string
	logLevel    string
	metricsAddr string
	dbURL       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "svcscan [flags] TARGET [PORTS]",
		Short: "Concurrent TCP/HTTP(S) service scanner",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, args, &f)
		},
	}

	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose output")
	cmd.Flags().BoolVarP(&f.ssl, "ssl", "s", false, "use the SSL/TLS scanner")
	cmd.Flags().BoolVarP(&f.jsonOut, "json", "j", false, "emit the scan report as JSON")
	cmd.Flags().StringVarP(&f.ports, "port", "p", "", "target ports (comma-separated, N-M ranges)")
	cmd.Flags().IntVarP(&f.timeoutMS, "timeout", "t", 3500, "connect timeout in milliseconds")
	cmd.Flags().IntVarP(&f.threads, "threads", "T", 0, "worker pool size [1,32]")
	cmd.Flags().StringVarP(&f.outPath, "output", "o", "", "write the scan report to a file")
	cmd.Flags().StringVarP(&f.curl, "curl", "c", "", "use GET for the HTTP probe, optionally at URI")
	cmd.Flags().Lookup("curl").NoOptDefVal = "/"
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML defaults file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "expose /metrics and /healthz on this address while scanning")
	cmd.Flags().StringVar(&f.dbURL, "db-url", envOr("DATABASE_URL", ""), "persist scan results to this Postgres URL")

	return cmd
}

func run(cmd *cobra.Command, argv []string, f *flags) error {
	var fileDefaults config.File
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return err
		}
		fileDefaults = *loaded
		applyDefaults(cmd, f, &fileDefaults)
	}

	logger := httpapi.NewLogger(f.logLevel)
	if f.verbose && !cmd.Flags().Changed("log-level") {
		logger = httpapi.NewLogger("debug")
	}

	portsArg := f.ports
	if len(argv) > 1 && portsArg == "" {
		portsArg = argv[1]
	}
	ports, err := parsePorts(portsArg)
	if err != nil {
		return err
	}

	curl := cmd.Flags().Changed("curl")
	exePath, _ := os.Executable()

	args := &scan.Args{
		Target:  strings.TrimSpace(argv[0]),
		Ports:   ports,
		Verbose: f.verbose,
		TLS:     f.ssl,
		JSON:    f.jsonOut,
		Curl:    curl,
		URI:     f.curl,
		Threads: f.threads,
		Timeout: time.Duration(f.timeoutMS) * time.Millisecond,
		OutPath: f.outPath,
		ExePath: exePath,
		Argv:    os.Args[1:],
	}

	sharedMetrics := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.metricsAddr != "" {
		h := httpapi.NewHandler(logger, sharedMetrics)
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           h.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", f.metricsAddr).Msg("observability listener up")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn().Err(err).Msg("observability listener error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	timeouts := client.DefaultTimeouts()
	if fileDefaults.RecvTimeout.Std() > 0 {
		timeouts.Recv = fileDefaults.RecvTimeout.Std()
	}
	if fileDefaults.SendTimeout.Std() > 0 {
		timeouts.Send = fileDefaults.SendTimeout.Std()
	}

	eng, err := engine.New(logger, args, sharedMetrics, engine.Options{
		Timeouts: timeouts,
		Out:      os.Stdout,
		Colorize: isatty.IsTerminal(os.Stdout.Fd()),
	})
	if err != nil {
		return err
	}

	stopProgress := watchKeystrokes(eng)
	defer stopProgress()

	services, err := eng.Scan(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("scan failed")
		return err
	}

	if f.dbURL != "" {
		pool, err := db.Open(ctx, f.dbURL)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to results database")
		} else {
			defer pool.Close()
			if err := pool.SaveScan(ctx, eng.TargetAddr(), services); err != nil {
				logger.Warn().Err(err).Msg("failed to persist scan results")
			}
		}
	}
	return nil
}

// applyDefaults backfills unset flags from the YAML defaults file.
func applyDefaults(cmd *cobra.Command, f *flags, d *config.File) {
	if d.Threads > 0 && !cmd.Flags().Changed("threads") {
		f.threads = d.Threads
	}
	if d.Timeout.Std() > 0 && !cmd.Flags().Changed("timeout") {
		f.timeoutMS = int(d.Timeout.Std().Milliseconds())
	}
	if d.LogLevel != "" && !cmd.Flags().Changed("log-level") {
		f.logLevel = d.LogLevel
	}
	if d.MetricsAddr != "" && !cmd.Flags().Changed("metrics-addr") {
		f.metricsAddr = d.MetricsAddr
	}
	if d.DatabaseURL != "" && !cmd.Flags().Changed("db-url") {
		f.dbURL = d.DatabaseURL
	}
	if d.URI != "" && !cmd.Flags().Changed("curl") {
		f.curl = d.URI
	}
}

// watchKeystrokes prints a progress line whenever input arrives on
// stdin during a scan. Non-terminal stdin disables the watcher.
func watchKeystrokes(eng *engine.Engine) func() {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 64)
		for {
			select {
			case <-done:
				return
			default:
			}
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				fmt.Println(eng.Progress())
			}
		}
	}()
	return func() { close(done) }
}

// parsePorts expands a comma-separated port expression, honoring N-M
// ranges, dropping duplicates and sorting ascending.
func parsePorts(raw string) ([]uint16, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no ports specified")
	}

	seen := map[uint16]struct{}{}
	var out []uint16

	add := func(p int) error {
		if !scan.ValidPort(p) {
			return fmt.Errorf("invalid port %d", p)
		}
		port := uint16(p)
		if _, ok := seen[port]; !ok {
			seen[port] = struct{}{}
			out = append(out, port)
		}
		return nil
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			if end < start {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			for p := start; p <= end; p++ {
				if err := add(p); err != nil {
					return nil, err
				}
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		if err := add(p); err != nil {
			return nil, err
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no ports specified")
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
