package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/geotrack/core"
	"github.com/signalsfoundry/geotrack/internal/config"
	"github.com/signalsfoundry/geotrack/internal/feed"
	"github.com/signalsfoundry/geotrack/internal/logging"
	"github.com/signalsfoundry/geotrack/internal/observability"
	"github.com/signalsfoundry/geotrack/kb"
	"github.com/signalsfoundry/geotrack/timectrl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "geotrack: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	snapshotPath string
	registryPath string
	start        string
	duration     time.Duration
	once         bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("geotrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to geotrack.yaml (environment only when empty)")
	fs.StringVar(&opts.snapshotPath, "snapshot", "", "path to a JSON entity snapshot, re-read on every frame")
	fs.StringVar(&opts.registryPath, "registry", "", "path to the destination registry YAML; overrides registry.path")
	fs.StringVar(&opts.start, "start", "", "RFC3339 time of the first frame (default now)")
	fs.DurationVar(&opts.duration, "duration", 0, "how long to run; 0 runs until interrupted")
	fs.BoolVar(&opts.once, "once", false, "compute a single frame and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.snapshotPath == "" {
		return options{}, errors.New("-snapshot is required")
	}
	return opts, nil
}

// run wires the host together and blocks until the refresh loop ends. Frames
// are written to stdout as JSON lines.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.registryPath != "" {
		cfg.Registry.Path = opts.registryPath
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = stderr
	log := logging.New(logCfg)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ObservabilityTracing(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewTrackCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if metricsSrv := serveMetrics(cfg.Metrics.Addr, collector, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	registry, err := loadRegistry(ctx, cfg.Registry.Path, log)
	if err != nil {
		return err
	}

	engineCfg, err := cfg.CoreEngineConfig()
	if err != nil {
		return err
	}
	engine, err := core.NewEngine(registry, engineCfg,
		core.WithLogger(log),
		core.WithRecorder(collector),
	)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	if opts.start != "" {
		start, err = time.Parse(time.RFC3339, opts.start)
		if err != nil {
			return fmt.Errorf("-start: %w", err)
		}
	}

	enc := json.NewEncoder(stdout)
	if opts.once {
		return renderFrame(ctx, engine, opts.snapshotPath, start, enc, log)
	}

	mode, err := cfg.RefreshMode()
	if err != nil {
		return err
	}
	tc := timectrl.NewTimeController(start, cfg.Refresh.Interval, mode)
	tc.AddListener(func(ctx context.Context, at time.Time) error {
		return renderFrame(ctx, engine, opts.snapshotPath, at, enc, log)
	})

	log.Info(ctx, "starting refresh loop",
		logging.String("mode", mode.String()),
		logging.Duration("interval", cfg.Refresh.Interval),
		logging.Duration("duration", opts.duration),
		logging.Int("route_points", engineCfg.RoutePoints),
		logging.Int("ground_track_resolution", engineCfg.GroundTrackResolution),
	)
	if err := tc.Run(ctx, opts.duration); err != nil {
		return err
	}
	log.Info(context.Background(), "refresh loop stopped")
	return nil
}

// renderFrame re-reads the snapshot, computes one frame, and writes it as a
// single JSON line. A snapshot that cannot be read skips the frame.
func renderFrame(ctx context.Context, engine *core.Engine, snapshotPath string, at time.Time, enc *json.Encoder, log logging.Logger) error {
	ctx, _ = logging.EnsureTickID(ctx)

	res, err := feed.LoadFile(snapshotPath, at)
	if err != nil {
		log.Warn(ctx, "skipping frame: snapshot unavailable", logging.String("path", snapshotPath), logging.Err(err))
		return nil
	}
	for _, skipped := range res.Skipped {
		log.Warn(ctx, "skipping entity", logging.Err(skipped))
	}

	frame, err := engine.Tick(ctx, at, res.Snapshot)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}

	failed := 0
	for _, ef := range frame.Entities {
		if ef.Err != nil {
			failed++
		}
	}
	log.Debug(ctx, "frame computed",
		logging.Int("entities", len(frame.Entities)),
		logging.Int("failed", failed),
	)
	return enc.Encode(frame)
}

func loadRegistry(ctx context.Context, path string, log logging.Logger) (*kb.Registry, error) {
	if path == "" {
		log.Warn(ctx, "no destination registry configured; routes will be empty")
		return kb.NewRegistry()
	}
	reg, err := kb.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "loaded destination registry",
		logging.String("path", path),
		logging.Int("count", reg.Len()),
	)
	return reg, nil
}

func serveMetrics(addr string, collector *observability.TrackCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
