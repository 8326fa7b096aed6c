package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/queuecapacity/internal/capacity/configuration"
	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
)

func TestNew(t *testing.T) {
	factory := resources.MustMakeFactory("memory", "vcores")
	tests := map[string]struct {
		config        configuration.CalculatorConfig
		expected      ResourceCalculator
		expectSuccess bool
	}{
		"empty type": {
			config:        configuration.CalculatorConfig{},
			expected:      &DominantResourceCalculator{},
			expectSuccess: true,
		},
		"dominant resource": {
			config:        configuration.CalculatorConfig{Type: configuration.DominantResourceCalculator},
			expected:      &DominantResourceCalculator{},
			expectSuccess: true,
		},
		"default": {
			config:        configuration.CalculatorConfig{Type: configuration.DefaultResourceCalculator, Dimension: "vcores"},
			expected:      &DefaultResourceCalculator{index: 1},
			expectSuccess: true,
		},
		"default with unknown dimension": {
			config: configuration.CalculatorConfig{Type: configuration.DefaultResourceCalculator, Dimension: "gpu"},
		},
		"weighted": {
			config: configuration.CalculatorConfig{Type: configuration.WeightedResourceCalculator, Weights: map[string]float64{"memory": 2}},
			expected: &WeightedResourceCalculator{
				weights: factory.MakeFractions(2, 0),
			},
			expectSuccess: true,
		},
		"weighted without weights": {
			config: configuration.CalculatorConfig{Type: configuration.WeightedResourceCalculator},
		},
		"weighted with negative weight": {
			config: configuration.CalculatorConfig{Type: configuration.WeightedResourceCalculator, Weights: map[string]float64{"memory": -1}},
		},
		"unknown": {
			config: configuration.CalculatorConfig{Type: "fifo"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			calc, err := New(tc.config, factory)
			if !tc.expectSuccess {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, calc)
		})
	}
}

func TestDominantResourceCalculator(t *testing.T) {
	factory := resources.MustMakeFactory("memory", "vcores")
	cluster := factory.Make(100, 10)
	calc := &DominantResourceCalculator{}

	tests := map[string]struct {
		numerator   resources.ResourceList
		denominator resources.ResourceList
		expected    float64
	}{
		"same share in every dimension": {
			numerator:   factory.Make(25, 2.5),
			denominator: cluster,
			expected:    0.25,
		},
		"dominant dimension wins": {
			numerator:   factory.Make(10, 5),
			denominator: cluster,
			expected:    0.5,
		},
		"relative to a parent": {
			numerator:   factory.Make(25, 2.5),
			denominator: factory.Make(50, 5),
			expected:    0.5,
		},
		"zero denominator": {
			numerator:   factory.Make(25, 2.5),
			denominator: factory.MakeAllZero(),
			expected:    0,
		},
		"empty numerator": {
			numerator:   resources.ResourceList{},
			denominator: cluster,
			expected:    0,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, calc.Divide(cluster, tc.numerator, tc.denominator), 1e-12)
		})
	}
}

func TestDominantResourceCalculator_IgnoresDimensionsMissingFromCluster(t *testing.T) {
	factory := resources.MustMakeFactory("memory", "gpu")
	cluster := factory.Make(100, 0)
	calc := &DominantResourceCalculator{}

	assert.InDelta(t, 0.5, calc.Divide(cluster, factory.Make(50, 3), cluster), 1e-12)
	assert.True(t, calc.IsInvalidDivisor(cluster, factory.Make(0, 3)))
	assert.False(t, calc.IsInvalidDivisor(cluster, factory.Make(1, 0)))
}

func TestDominantResourceCalculator_Compare(t *testing.T) {
	factory := resources.MustMakeFactory("memory", "vcores")
	cluster := factory.Make(100, 10)
	calc := &DominantResourceCalculator{}

	assert.Equal(t, 1, calc.Compare(cluster, factory.Make(10, 5), factory.Make(40, 1)))
	assert.Equal(t, -1, calc.Compare(cluster, factory.Make(40, 1), factory.Make(10, 5)))
	assert.Equal(t, 0, calc.Compare(cluster, factory.Make(50, 1), factory.Make(50, 1)))
	// Equal dominant shares fall back to the sum of all shares.
	assert.Equal(t, 1, calc.Compare(cluster, factory.Make(50, 4), factory.Make(50, 1)))
}

func TestDefaultResourceCalculator(t *testing.T) {
	factory := resources.MustMakeFactory("memory", "vcores")
	cluster := factory.Make(100, 10)
	calc := &DefaultResourceCalculator{index: 0}

	assert.InDelta(t, 0.1, calc.Divide(cluster, factory.Make(10, 5), cluster), 1e-12)
	assert.Equal(t, 0.0, calc.Divide(cluster, factory.Make(10, 5), factory.Make(0, 5)))
	assert.True(t, calc.IsInvalidDivisor(cluster, factory.Make(0, 5)))
	assert.Equal(t, -1, calc.Compare(cluster, factory.Make(10, 5), factory.Make(20, 1)))
}

func TestWeightedResourceCalculator(t *testing.T) {
	factory := resources.MustMakeFactory("memory", "vcores")
	cluster := factory.Make(100, 10)
	calc, err := NewWeightedResourceCalculator(factory, map[string]float64{"memory": 1, "vcores": 3})
	require.NoError(t, err)

	// (0.5 * 1 + 0.1 * 3) / (1 * 1 + 1 * 3)
	assert.InDelta(t, 0.2, calc.Divide(cluster, factory.Make(50, 1), cluster), 1e-12)
	assert.Equal(t, 1, calc.Compare(cluster, factory.Make(0, 2), factory.Make(50, 0)))
	assert.True(t, calc.IsInvalidDivisor(cluster, factory.MakeAllZero()))
}
