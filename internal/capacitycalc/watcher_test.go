package capacitycalc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/armadaproject/queuecapacity/internal/capacity/report"
	"github.com/armadaproject/queuecapacity/internal/capacity/updater"
	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
)

// replaceConfig atomically replaces the contents of path, as editors and config map mounts do.
func replaceConfig(t *testing.T, path, contents string) {
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(contents), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher_Recompute(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", testConfig)
	metrics := updater.NewMetrics()
	w, err := NewWatcher(path, metrics)
	require.NoError(t, err)

	published, err := w.Published()
	require.NoError(t, err)
	assert.Nil(t, published)

	r, err := w.Recompute(testContext())
	require.NoError(t, err)
	assert.Equal(t, path, r.Name)

	published, err = w.Published()
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, r.PassId, published.PassId)
	assert.Len(t, published.Queues, 6)

	txn := w.Store().ReadTxn()
	row, err := w.Store().Get(txn, "root.b", "gpu")
	require.NoError(t, err)
	assert.Equal(t, r.PassId, row.PassId)
}

func TestWatcher_KeepsPreviousResultsOnFailure(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", testConfig)
	metrics := updater.NewMetrics()
	w, err := NewWatcher(path, metrics)
	require.NoError(t, err)
	r, err := w.Recompute(testContext())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(testConfig, `capacity: "50"`, `capacity: "-5"`, 1)), 0o600))
	_, err = w.Recompute(testContext())
	assert.Error(t, err)

	published, err := w.Published()
	require.NoError(t, err)
	assert.Equal(t, r.PassId, published.PassId)
	assert.Equal(t, 1.0, failedPasses(t, metrics))
}

func failedPasses(t *testing.T, metrics *updater.Metrics) float64 {
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(metrics))
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "queuecapacity_updater_failed_passes_total" {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatal("failed passes counter not found")
	return 0
}

func TestWatcher_ConcurrentRecompute(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", testConfig)
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	var g errgroup.Group
	passIds := make([]string, 8)
	for i := range passIds {
		i := i
		g.Go(func() error {
			r, err := w.Recompute(testContext())
			if err != nil {
				return err
			}
			passIds[i] = r.PassId
			return nil
		})
	}
	require.NoError(t, g.Wait())

	published, err := w.Published()
	require.NoError(t, err)
	assert.Contains(t, passIds, published.PassId)
}

func TestWatcher_Run(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", testConfig)
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	reports := make(chan *report.Report, 16)
	ctx, cancel := calccontext.WithCancel(testContext())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(r *report.Report) { reports <- r })
	}()

	first := <-reports
	changed := strings.Replace(testConfig, `capacity: "50"`, `capacity: "20"`, 1)
	var second *report.Report
	// The watch may not be established yet when the first report arrives, so keep replacing the file.
	require.Eventually(t, func() bool {
		replaceConfig(t, path, changed)
		select {
		case second = <-reports:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 10*time.Millisecond)

	assert.NotEqual(t, first.PassId, second.PassId)
	assert.Equal(t, "root.a", second.Queues[2].Queue)
	assert.InDelta(t, 0.2, second.Queues[2].AbsoluteCapacity, 1e-9)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_RunWhileConfigurationChanges(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", testConfig)
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	var passes int32
	ctx, cancel := calccontext.WithCancel(testContext())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(*report.Report) { atomic.AddInt32(&passes, 1) })
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&passes) > 0 }, 5*time.Second, time.Millisecond)

	// Every rewrite is re-read by the file watch while passes are running.
	capacities := []string{`capacity: "20"`, `capacity: "30"`}
	deadline := time.Now().Add(300 * time.Millisecond)
	for i := 0; time.Now().Before(deadline); i++ {
		replaceConfig(t, path, strings.Replace(testConfig, `capacity: "50"`, capacities[i%2], 1))
		_, err := w.Published()
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	published, err := w.Published()
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Len(t, published.Queues, 6)
}

func TestWatcher_ReusesParser(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", testConfig)
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	_, err = w.Recompute(testContext())
	require.NoError(t, err)
	parser := w.parser
	require.NotNil(t, parser)
	assert.Greater(t, parser.CachedLen(), 0)

	replaceConfig(t, path, strings.Replace(testConfig, `capacity: "50"`, `capacity: "20"`, 1))
	r, err := w.Recompute(testContext())
	require.NoError(t, err)
	assert.Same(t, parser, w.parser)
	assert.InDelta(t, 0.2, r.Queues[2].AbsoluteCapacity, 1e-9)

	replaceConfig(t, path, testConfig+"parserCacheSize: 16\n")
	_, err = w.Recompute(testContext())
	require.NoError(t, err)
	assert.NotSame(t, parser, w.parser)

	replaceConfig(t, path, strings.Replace(testConfig, "    format: BinarySI\n", "    format: BinarySI\n    resolution: 1Mi\n", 1)+"parserCacheSize: 16\n")
	parser = w.parser
	_, err = w.Recompute(testContext())
	require.NoError(t, err)
	assert.NotSame(t, parser, w.parser)
	assert.NotSame(t, parser.Factory(), w.parser.Factory())
}

func TestNewHttpServer(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", testConfig)
	metrics := updater.NewMetrics()
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(metrics))
	w, err := NewWatcher(path, metrics)
	require.NoError(t, err)
	r, err := w.Recompute(testContext())
	require.NoError(t, err)

	server := httptest.NewServer(NewHttpServer(0, registry, []*Watcher{w}).Handler)
	defer server.Close()

	body := get(t, server.URL+"/report")
	assert.Contains(t, body, "passId: "+r.PassId)
	assert.Contains(t, body, "queue: root.b")

	body = get(t, server.URL+"/metrics")
	assert.Contains(t, body, "queuecapacity_updater_queues 3")
}

func get(t *testing.T, url string) string {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// syncBuffer is a bytes.Buffer safe for use by the watch loop and the test at the same time.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "first.yaml", testConfig+"metrics:\n  disabled: true\n")
	writeConfig(t, dir, "second.yaml", testConfig)

	out := &syncBuffer{}
	ctx, cancel := calccontext.WithCancel(testContext())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, Options{
			ConfigPattern: filepath.Join(dir, "*.yaml"),
			OutputFormat:  report.FormatTable,
			Out:           out,
		})
	}()

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, filepath.Join(dir, "first.yaml")) && strings.Contains(s, filepath.Join(dir, "second.yaml"))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_NoMatch(t *testing.T) {
	err := Watch(testContext(), Options{ConfigPattern: filepath.Join(t.TempDir(), "*.yaml"), Out: io.Discard})
	assert.Error(t, err)
}

func TestWatch_InvalidInitialConfiguration(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", strings.Replace(testConfig, `capacity: "50"`, `capacity: "50x"`, 1)+"metrics:\n  disabled: true\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Watch(calccontext.New(ctx, testContext().Log), Options{ConfigPattern: path, Out: io.Discard})
	assert.Error(t, err)
}
