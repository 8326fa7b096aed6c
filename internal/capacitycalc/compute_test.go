package capacitycalc

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/armadaproject/queuecapacity/internal/capacity/report"
)

func TestCompute(t *testing.T) {
	dir := t.TempDir()
	first := writeConfig(t, dir, "first.yaml", testConfig)
	second := writeConfig(t, dir, "second.yaml", strings.Replace(testConfig, `capacity: "50"`, `capacity: "60"`, 1))

	var out bytes.Buffer
	err := Compute(testContext(), Options{
		ConfigPattern: filepath.Join(dir, "*.yaml"),
		OutputFormat:  report.FormatYaml,
		Out:           &out,
	})
	require.NoError(t, err)

	var reports []report.Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, first, reports[0].Name)
	assert.Equal(t, second, reports[1].Name)
	assert.NotEqual(t, reports[0].PassId, reports[1].PassId)

	// root and two children, in both partitions
	require.Len(t, reports[1].Queues, 6)
	a := reports[1].Queues[2]
	assert.Equal(t, "root.a", a.Queue)
	assert.Equal(t, "", a.Label)
	assert.InDelta(t, 0.6, a.AbsoluteCapacity, 1e-9)
	// b asks for 50% of memory but only 40% is left
	require.Len(t, reports[1].Warnings, 1)
	assert.Equal(t, "CAPACITY_OVER_100", reports[1].Warnings[0].Kind)
	assert.Empty(t, reports[0].Warnings)
}

func TestCompute_Table(t *testing.T) {
	var out bytes.Buffer
	err := Compute(testContext(), Options{
		ConfigPattern: writeConfig(t, t.TempDir(), "config.yaml", testConfig),
		OutputFormat:  report.FormatTable,
		Out:           &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "QUEUE")
	assert.Contains(t, out.String(), "root.b")
	assert.Contains(t, out.String(), "gpu")
}

func TestCompute_InvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "good.yaml", testConfig)
	writeConfig(t, dir, "bad.yaml", strings.Replace(testConfig, `capacity: "50"`, `capacity: "50x"`, 1))

	var out bytes.Buffer
	err := Compute(testContext(), Options{
		ConfigPattern: filepath.Join(dir, "*.yaml"),
		OutputFormat:  report.FormatTable,
		Out:           &out,
	})
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestCompute_ExampleConfigurations(t *testing.T) {
	var out bytes.Buffer
	err := Compute(testContext(), Options{
		ConfigPattern: filepath.Join("..", "..", "config", "capacitycalc", "*.yaml"),
		OutputFormat:  report.FormatYaml,
		Out:           &out,
	})
	require.NoError(t, err)

	var reports []report.Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Empty(t, reports[0].Warnings)

	kinds := make(map[string]bool)
	for _, w := range reports[1].Warnings {
		kinds[w.Kind] = true
	}
	assert.Equal(t, map[string]bool{
		"CAPACITY_OVER_100": true,
		"EXCEEDS_PARENT":    true,
		"MAX_LESS_THAN_MIN": true,
	}, kinds)
}
