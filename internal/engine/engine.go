// Package engine owns one scan run: the fixed-size worker pool, the
// per-port probe tasks, the shared service list and status registry,
// and the hand-off to the report assembler.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"svcscan/internal/client"
	"svcscan/internal/metrics"
	"svcscan/internal/registry"
	"svcscan/internal/report"
	"svcscan/internal/resolver"
	"svcscan/internal/scan"
)

const (
	minThreads = 1
	maxThreads = 32
	poolCap    = 16

	resolveRetries = 2
	startupPorts   = 7
)

// Options configures an Engine beyond the parsed arguments.
type Options struct {
	Timeouts client.Timeouts
	Out      io.Writer
	Colorize bool
}

// Engine runs one scan against a single target.
type Engine struct {
	log      zerolog.Logger
	args     *scan.Args
	registry *registry.Registry
	resolver *resolver.Resolver
	metrics  *metrics.Metrics
	timeouts client.Timeouts
	out      io.Writer
	colorize bool

	poolSize int
	timer    scan.Timer

	// target hostname as given, and its resolved IPv4 address.
	targetName string
	targetAddr string

	servicesMu sync.Mutex
	services   []*scan.ServiceInfo

	statusMu sync.Mutex
	statuses map[uint16]scan.TaskStatus

	wg sync.WaitGroup
}

// New validates the arguments, loads the embedded port registry and
// sizes the worker pool. Argument and registry failures are fatal here;
// nothing network-related happens yet.
func New(log zerolog.Logger, args *scan.Args, m *metrics.Metrics, opts Options) (*Engine, error) {
	if args == nil {
		return nil, fmt.Errorf("invalid argument: nil args")
	}
	if strings.TrimSpace(args.Target) == "" {
		return nil, fmt.Errorf("invalid argument: empty target")
	}
	if len(args.Ports) == 0 {
		return nil, fmt.Errorf("invalid argument: empty port list")
	}
	for _, p := range args.Ports {
		if !scan.ValidPort(int(p)) {
			return nil, fmt.Errorf("invalid argument: port %d out of range", p)
		}
	}

	reg, err := registry.Load()
	if err != nil {
		return nil, fmt.Errorf("port registry unavailable: %w", err)
	}

	threads := args.Threads
	if threads < minThreads {
		threads = minThreads
	}
	if threads > maxThreads {
		threads = maxThreads
	}
	poolSize := min(runtime.NumCPU(), poolCap)
	if threads > poolSize {
		poolSize = threads
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	timeouts := opts.Timeouts
	if args.Timeout > 0 {
		timeouts.Connect = args.Timeout
	}

	e := &Engine{
		log:        log,
		args:       args,
		registry:   reg,
		resolver:   resolver.New(),
		metrics:    m,
		timeouts:   timeouts,
		out:        out,
		colorize:   opts.Colorize,
		poolSize:   poolSize,
		targetName: args.Target,
		statuses:   make(map[uint16]scan.TaskStatus, len(args.Ports)),
	}
	for _, p := range args.Ports {
		e.statuses[p] = scan.StatusNotStarted
	}
	return e, nil
}

// Scan performs the complete run: target resolution, task dispatch,
// pool drain and report assembly. Per-port failures never surface
// here; only an unresolvable target aborts the scan.
func (e *Engine) Scan(ctx context.Context) ([]*scan.ServiceInfo, error) {
	eps, err := e.resolver.Resolve(ctx, scan.Endpoint{Addr: e.targetName, Port: e.args.Ports[0]}, resolveRetries)
	if err != nil {
		return nil, fmt.Errorf("target unresolvable: %w", err)
	}
	e.targetAddr = eps[0].Addr

	e.printStartup()

	e.timer.Start()

	jobs := make(chan uint16)
	for i := 0; i < e.poolSize; i++ {
		e.wg.Add(1)
		go e.worker(ctx, jobs)
	}

dispatch:
	for _, port := range e.args.Ports {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- port:
		}
	}
	close(jobs)

	e.Wait()
	e.timer.Stop()

	if e.metrics != nil {
		e.metrics.ObserveScanDuration(e.timer.Elapsed())
	}

	services := e.Services()
	in := report.Input{
		Target:   e.targetAddr,
		Services: services,
		Timer:    &e.timer,
		Args:     e.args,
	}

	if err := report.Write(e.out, in, e.colorize); err != nil {
		return services, err
	}
	if e.args.OutPath != "" {
		if err := report.Save(e.args.OutPath, in); err != nil {
			return services, err
		}
	}
	return services, nil
}

// Wait blocks until every outstanding probe task has completed.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// TargetAddr reports the resolved target address, available once Scan
// has begun.
func (e *Engine) TargetAddr() string {
	return e.targetAddr
}

func (e *Engine) worker(ctx context.Context, jobs <-chan uint16) {
	defer e.wg.Done()
	for port := range jobs {
		e.probePort(ctx, port)
	}
}

// Services returns the accumulated records sorted ascending by port.
func (e *Engine) Services() []*scan.ServiceInfo {
	e.servicesMu.Lock()
	defer e.servicesMu.Unlock()

	out := make([]*scan.ServiceInfo, len(e.services))
	copy(out, e.services)
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

func (e *Engine) addService(info *scan.ServiceInfo) {
	e.servicesMu.Lock()
	defer e.servicesMu.Unlock()
	e.services = append(e.services, info)
}

func (e *Engine) updateStatus(port uint16, status scan.TaskStatus) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	// Statuses only move forward.
	if e.statuses[port] < status {
		e.statuses[port] = status
	}
}

func (e *Engine) completedTasks() int {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	completed := 0
	for _, status := range e.statuses {
		if status == scan.StatusComplete {
			completed++
		}
	}
	return completed
}

// Progress renders the status line shown between task completions.
func (e *Engine) Progress() string {
	completed := e.completedTasks()
	total := len(e.args.Ports)

	percent := 0.0
	if total > 0 {
		percent = 100 * float64(completed) / float64(total)
	}
	remaining := total - completed

	noun := "ports"
	if remaining == 1 {
		noun = "port"
	}
	return fmt.Sprintf("Approximately %.1f%% complete (%d %s remaining)", percent, remaining, noun)
}

// printStartup writes the scan banner: application, timestamp, target
// and an abbreviated port list.
func (e *Engine) printStartup() {
	ports := e.args.Ports
	shown := ports
	if len(shown) > startupPorts {
		shown = shown[:startupPorts]
	}
	parts := make([]string, len(shown))
	for i, p := range shown {
		parts[i] = strconv.Itoa(int(p))
	}
	portsStr := strings.Join(parts, ", ")
	if len(shown) < len(ports) {
		portsStr += fmt.Sprintf(" ... (%d not shown)", len(ports)-len(shown))
	}

	fmt.Fprintf(e.out, "Beginning %s (%s)\n", report.AppName, report.AppRepo)
	fmt.Fprintf(e.out, "Time: %s\n", scan.Timestamp(time.Now()))
	fmt.Fprintf(e.out, "Target: %s\n", e.targetName)
	fmt.Fprintf(e.out, "Ports: %s\n", portsStr)
	if e.args.Verbose {
		fmt.Fprintln(e.out)
	}
}
