// Package calculator collapses multi-dimensional resource amounts into the single values used for queue
// capacities and for ordering queues.
package calculator

import (
	"github.com/pkg/errors"

	"github.com/armadaproject/queuecapacity/internal/capacity/configuration"
	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
)

// ResourceCalculator compares resource lists relative to the total resource of a cluster partition.
type ResourceCalculator interface {
	// Divide returns numerator / denominator as a single value, or 0 if denominator is an invalid divisor.
	Divide(cluster, numerator, denominator resources.ResourceList) float64
	// Compare returns -1, 0 or 1 as lhs is smaller than, equal to or larger than rhs.
	Compare(cluster, lhs, rhs resources.ResourceList) int
	// IsInvalidDivisor returns true if Divide cannot divide by divisor.
	IsInvalidDivisor(cluster, divisor resources.ResourceList) bool
}

// New returns the calculator selected by config.
func New(config configuration.CalculatorConfig, factory *resources.Factory) (ResourceCalculator, error) {
	switch config.Type {
	case configuration.DominantResourceCalculator, "":
		return &DominantResourceCalculator{}, nil
	case configuration.DefaultResourceCalculator:
		index, ok := factory.Index(config.Dimension)
		if !ok {
			return nil, errors.Errorf("unknown resource %q for calculator %s", config.Dimension, config.Type)
		}
		return &DefaultResourceCalculator{index: index}, nil
	case configuration.WeightedResourceCalculator:
		return NewWeightedResourceCalculator(factory, config.Weights)
	default:
		return nil, errors.Errorf("unknown resource calculator %q", config.Type)
	}
}

// DominantResourceCalculator considers, for every list, the largest share of the cluster across all dimensions.
// Dimensions the cluster has none of are ignored.
type DominantResourceCalculator struct{}

func (c *DominantResourceCalculator) Divide(cluster, numerator, denominator resources.ResourceList) float64 {
	return divide(dominantShare(cluster, numerator), dominantShare(cluster, denominator))
}

func (c *DominantResourceCalculator) Compare(cluster, lhs, rhs resources.ResourceList) int {
	if result := compare(dominantShare(cluster, lhs), dominantShare(cluster, rhs)); result != 0 {
		return result
	}
	return compare(totalShare(cluster, lhs), totalShare(cluster, rhs))
}

func (c *DominantResourceCalculator) IsInvalidDivisor(cluster, divisor resources.ResourceList) bool {
	return dominantShare(cluster, divisor) == 0
}

func dominantShare(cluster, rl resources.ResourceList) float64 {
	if cluster.IsEmpty() {
		return 0
	}
	return cluster.Factory().MakeAllZero().Add(rl).DivideZeroOnError(cluster).Max()
}

func totalShare(cluster, rl resources.ResourceList) float64 {
	if cluster.IsEmpty() {
		return 0
	}
	shares := cluster.Factory().MakeAllZero().Add(rl).DivideZeroOnError(cluster)
	var total float64
	for i := 0; i < cluster.Factory().Len(); i++ {
		total += shares.At(i)
	}
	return total
}

// DefaultResourceCalculator only considers a single dimension, usually memory.
type DefaultResourceCalculator struct {
	index int
}

func (c *DefaultResourceCalculator) Divide(_, numerator, denominator resources.ResourceList) float64 {
	return divide(numerator.At(c.index), denominator.At(c.index))
}

func (c *DefaultResourceCalculator) Compare(_, lhs, rhs resources.ResourceList) int {
	return compare(lhs.At(c.index), rhs.At(c.index))
}

func (c *DefaultResourceCalculator) IsInvalidDivisor(_, divisor resources.ResourceList) bool {
	return divisor.At(c.index) == 0
}

// WeightedResourceCalculator sums the shares of the cluster of every dimension, multiplied by a per dimension weight.
type WeightedResourceCalculator struct {
	weights resources.FractionList
}

func NewWeightedResourceCalculator(factory *resources.Factory, weights map[string]float64) (*WeightedResourceCalculator, error) {
	if len(weights) == 0 {
		return nil, errors.New("weights is empty")
	}
	values := make([]float64, factory.Len())
	for name, weight := range weights {
		index, ok := factory.Index(name)
		if !ok {
			return nil, errors.Errorf("unknown resource %q in calculator weights", name)
		}
		if weight < 0 {
			return nil, errors.Errorf("weight of resource %q is negative", name)
		}
		values[index] = weight
	}
	return &WeightedResourceCalculator{weights: factory.MakeFractions(values...)}, nil
}

func (c *WeightedResourceCalculator) Divide(cluster, numerator, denominator resources.ResourceList) float64 {
	return divide(c.weightedShare(cluster, numerator), c.weightedShare(cluster, denominator))
}

func (c *WeightedResourceCalculator) Compare(cluster, lhs, rhs resources.ResourceList) int {
	return compare(c.weightedShare(cluster, lhs), c.weightedShare(cluster, rhs))
}

func (c *WeightedResourceCalculator) IsInvalidDivisor(cluster, divisor resources.ResourceList) bool {
	return c.weightedShare(cluster, divisor) == 0
}

func (c *WeightedResourceCalculator) weightedShare(cluster, rl resources.ResourceList) float64 {
	if cluster.IsEmpty() {
		return 0
	}
	shares := cluster.Factory().MakeAllZero().Add(rl).DivideZeroOnError(cluster).Multiply(c.weights)
	var total float64
	for i := 0; i < cluster.Factory().Len(); i++ {
		total += shares.At(i)
	}
	return total
}

func divide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func compare(a, b float64) int {
	switch {
	case resources.ApproxEqual(a, b):
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}
