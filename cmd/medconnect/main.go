// Command medconnect runs a search or match listing against a configured
// medconnect store and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"medconnect/internal/blob"
	"medconnect/internal/config"
	"medconnect/internal/core"
	"medconnect/internal/logging"
	"medconnect/internal/matching"
	"medconnect/internal/notify"
	"medconnect/internal/search"
	"medconnect/internal/seed"
)

var exitFunc = os.Exit

func main() {
	code := cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type options struct {
	configPath string
	seed       bool
	kind       string
	query      string
	filters    string
	matches    bool
	trace      bool
	metrics    bool
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("medconnect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "path to YAML configuration")
	fs.BoolVar(&opts.seed, "seed", true, "load the demo catalogue when the store is empty")
	fs.StringVar(&opts.kind, "kind", string(search.KindTrials), "search kind: trials, communities or patients")
	fs.StringVar(&opts.query, "query", "", "free-text query")
	fs.StringVar(&opts.filters, "filters", "", `JSON filter object, e.g. {"phase":"Phase II"}`)
	fs.BoolVar(&opts.matches, "matches", false, "print patient match records instead of searching")
	fs.BoolVar(&opts.trace, "trace", false, "write operation spans to stderr as JSON lines")
	fs.BoolVar(&opts.metrics, "metrics", false, "write Prometheus operation metrics to stderr on exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := run(ctx, opts, stdout, stderr); err != nil {
		_, _ = fmt.Fprintf(stderr, "medconnect: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) (err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	kind, err := search.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	filters, err := parseFilters(opts.filters)
	if err != nil {
		return err
	}

	store, closeStore, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	notifier, closeNotifier, err := openNotifier(ctx, cfg.Notify)
	if err != nil {
		return err
	}
	defer func() { _ = closeNotifier() }()

	svcOpts := []core.Option{
		core.WithLogger(logger),
		core.WithBlobStore(blobs),
		core.WithNotifier(notifier),
		core.WithMaxDocumentBytes(cfg.Documents.MaxBytes),
		core.WithMatcher(matching.NewEngine(cfg.Matching.Threshold)),
	}
	if opts.trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(stderr)))
	}
	if opts.metrics || cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		recorder, recErr := core.NewPrometheusMetricsRecorder(reg)
		if recErr != nil {
			return recErr
		}
		svcOpts = append(svcOpts, core.WithMetricsRecorder(recorder))
		defer func() {
			if dumpErr := writeMetrics(stderr, reg); dumpErr != nil && err == nil {
				err = dumpErr
			}
		}()
	}
	svc := core.NewService(store, svcOpts...)

	if opts.seed && len(store.ListTrials()) == 0 && len(store.ListCommunities()) == 0 {
		if err := seed.Apply(ctx, store); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
		logger.Info("seeded demo catalogue", zap.String("storage", cfg.Storage.Driver))
	}

	var out any
	if opts.matches {
		out, err = svc.ListPatientMatches(ctx)
	} else {
		out, err = svc.Search(ctx, kind, opts.query, filters)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func parseFilters(raw string) (search.Filters, error) {
	if strings.TrimSpace(raw) == "" {
		return search.Filters{}, nil
	}
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return search.Filters{}, fmt.Errorf("parse filters: %w", err)
	}
	return search.ParseFilters(loose)
}

func openNotifier(ctx context.Context, cfg config.Notify) (notify.Notifier, func() error, error) {
	switch cfg.Driver {
	case "redis":
		r, err := notify.NewRedis(ctx, notify.RedisOptions{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			ChannelPrefix: cfg.ChannelPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case "none":
		return notify.Nop{}, func() error { return nil }, nil
	default:
		return notify.NewRecorder(), func() error { return nil }, nil
	}
}
