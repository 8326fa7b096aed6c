package capacitycalc

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armadaproject/queuecapacity/internal/capacity/report"
	"github.com/armadaproject/queuecapacity/internal/capacity/updater"
	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
	"github.com/armadaproject/queuecapacity/internal/common/logging"
	"github.com/armadaproject/queuecapacity/internal/common/serve"
)

// Watch computes every queue tree matched by opts.ConfigPattern and recomputes a tree whenever its
// configuration file changes, until ctx is cancelled. Unless metrics are disabled, /metrics and the
// published results (/report) are served on the configured metrics port.
func Watch(ctx *calccontext.Context, opts Options) error {
	filePaths, err := ConfigFilesFromPattern(opts.ConfigPattern)
	if err != nil {
		return err
	}
	first, err := LoadConfigurationFile(filePaths[0])
	if err != nil {
		return err
	}
	if opts.ConfigureLogging {
		if err := logging.ConfigureLogging(first.Logging); err != nil {
			return err
		}
	}

	var metrics *updater.Metrics
	registry := prometheus.NewRegistry()
	if !first.Metrics.Disabled {
		metrics = updater.NewMetrics()
		if err := registry.Register(metrics); err != nil {
			return err
		}
	}

	watchers := make([]*Watcher, len(filePaths))
	for i, filePath := range filePaths {
		if watchers[i], err = NewWatcher(filePath, metrics); err != nil {
			return err
		}
	}

	var outMu sync.Mutex
	onPass := func(r *report.Report) {
		outMu.Lock()
		defer outMu.Unlock()
		if err := report.Write(opts.Out, opts.OutputFormat, r); err != nil {
			logging.WithStacktrace(ctx.Log, err).Error("failed to write report")
		}
	}

	g, ctx := calccontext.ErrGroup(ctx)
	if !first.Metrics.Disabled {
		server := NewHttpServer(first.Metrics.Port, prometheus.Gatherers{registry, prometheus.DefaultGatherer}, watchers)
		ctx.Log.Infof("serving metrics on %s", server.Addr)
		g.Go(func() error {
			return serve.ListenAndServe(ctx, server)
		})
	}
	for _, w := range watchers {
		w := w
		g.Go(func() error {
			return w.Run(calccontext.WithLogField(ctx, "config", w.FilePath()), onPass)
		})
	}
	return g.Wait()
}

// NewHttpServer returns a server exposing gatherer on /metrics
// and the results currently published by watchers, as yaml, on /report.
func NewHttpServer(port uint16, gatherer prometheus.Gatherer, watchers []*Watcher) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/report", reportHandler(watchers))
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
}

func reportHandler(watchers []*Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports := make([]*report.Report, 0, len(watchers))
		for _, watcher := range watchers {
			published, err := watcher.Published()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if published != nil {
				reports = append(reports, published)
			}
		}
		w.Header().Set("Content-Type", "application/yaml")
		if err := report.Write(w, report.FormatYaml, reports...); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
