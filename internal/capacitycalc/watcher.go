package capacitycalc

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/armadaproject/queuecapacity/internal/capacity/configuration"
	"github.com/armadaproject/queuecapacity/internal/capacity/report"
	"github.com/armadaproject/queuecapacity/internal/capacity/snapshot"
	"github.com/armadaproject/queuecapacity/internal/capacity/updater"
	"github.com/armadaproject/queuecapacity/internal/capacity/vector"
	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
	"github.com/armadaproject/queuecapacity/internal/common/config"
	"github.com/armadaproject/queuecapacity/internal/common/logging"
)

// Watcher recomputes the queue tree of a configuration file every time the file changes
// and publishes the results of each pass to a snapshot.Store.
//
// A configuration that fails to load or fails its pass is logged and the previously published results are kept.
type Watcher struct {
	filePath string
	// Only delivers change events. fsnotify re-reads the file into it from its own goroutine,
	// so passes never read configuration from it.
	viper   *viper.Viper
	store   *snapshot.Store
	metrics *updater.Metrics
	// Serializes passes, each of which rebuilds the tree from the current configuration.
	mu sync.Mutex
	// Kept between passes while the resource types do not change, so its cache survives reloads.
	parser       *vector.Parser
	parserConfig configuration.Configuration
}

func NewWatcher(filePath string, metrics *updater.Metrics) (*Watcher, error) {
	v, err := config.NewFileViper(filePath)
	if err != nil {
		return nil, err
	}
	store, err := snapshot.NewStore()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		filePath: filePath,
		viper:    v,
		store:    store,
		metrics:  metrics,
	}, nil
}

func (w *Watcher) FilePath() string {
	return w.filePath
}

func (w *Watcher) Store() *snapshot.Store {
	return w.store
}

// Recompute reads the configuration file, rebuilds the tree from it, runs a pass over it
// and publishes the results.
func (w *Watcher) Recompute(ctx *calccontext.Context) (*report.Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tree, err := w.loadTree()
	if err != nil {
		w.metrics.ReportFailure()
		return nil, err
	}
	result, err := tree.Compute(calccontext.WithLogField(ctx, "config", w.filePath))
	if err != nil {
		return nil, err
	}
	if err := w.store.Publish(result); err != nil {
		return nil, err
	}
	return report.Build(w.filePath, tree.Hierarchy, result), nil
}

func (w *Watcher) loadTree() (*Tree, error) {
	c, err := LoadConfigurationFile(w.filePath)
	if err != nil {
		return nil, err
	}
	if w.parser == nil || !sameResourceTypes(w.parserConfig, c) {
		parser, err := NewParser(c)
		if err != nil {
			return nil, err
		}
		w.parser = parser
		w.parserConfig = c
	}
	return NewTreeWithParser(w.filePath, c, w.parser, w.metrics)
}

// Published returns a report of the results currently published, or nil if no pass has succeeded yet.
func (w *Watcher) Published() (*report.Report, error) {
	txn := w.store.ReadTxn()
	pass, err := w.store.CurrentPass(txn)
	if err != nil || pass == nil {
		return nil, err
	}
	rows, err := w.store.GetAll(txn)
	if err != nil {
		return nil, err
	}
	return report.FromSnapshot(w.filePath, pass, rows), nil
}

// Run computes the tree once and then again on every change to the configuration file, until ctx is cancelled.
// onPass is called with the report of every successful pass. Only the first pass failing is fatal.
func (w *Watcher) Run(ctx *calccontext.Context, onPass func(*report.Report)) error {
	r, err := w.Recompute(ctx)
	if err != nil {
		return err
	}
	onPass(r)

	changes := make(chan fsnotify.Event, 1)
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		select {
		case changes <- e:
		default:
			// A recompute is already pending and will read the latest configuration.
		}
	})
	w.viper.WatchConfig()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-changes:
			ctx.Log.WithField("op", e.Op.String()).Infof("configuration %s changed", e.Name)
			r, err := w.Recompute(ctx)
			if err != nil {
				logging.WithStacktrace(ctx.Log, err).Error("failed to recompute capacities, keeping previous results")
				continue
			}
			onPass(r)
		}
	}
}
