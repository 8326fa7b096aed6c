package updater

import (
	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
)

// BranchContext accumulates, for the children of one parent in one label, what is needed to share out the
// parent's resource. It only lives for a single pass.
type BranchContext struct {
	parentPath string
	label      string
	// The parent's effective minimum resource, shared among the children.
	available resources.ResourceList
	// Per dimension, indexed as the resource factory.
	sumOfWeights                    []float64
	sumOfMaximumWeights             []float64
	consumedByAbsoluteAndPercentage []float64
	// Per dimension, whether a warning has already been reported for this branch.
	overSubscribed   []bool
	noWeights        []bool
	noMaximumWeights []bool
}

// NewBranchContext returns an empty accumulator sharing out available.
func NewBranchContext(parentPath, label string, available resources.ResourceList) *BranchContext {
	n := available.Factory().Len()
	return &BranchContext{
		parentPath:                      parentPath,
		label:                           label,
		available:                       available,
		sumOfWeights:                    make([]float64, n),
		sumOfMaximumWeights:             make([]float64, n),
		consumedByAbsoluteAndPercentage: make([]float64, n),
		overSubscribed:                  make([]bool, n),
		noWeights:                       make([]bool, n),
		noMaximumWeights:                make([]bool, n),
	}
}

func (b *BranchContext) ParentPath() string {
	return b.parentPath
}

func (b *BranchContext) Label() string {
	return b.label
}

// Available returns the parent's resource the children share.
func (b *BranchContext) Available() resources.ResourceList {
	return b.available
}

// SumOfWeights returns the sum of the minimum weights declared by the children for dimension index.
func (b *BranchContext) SumOfWeights(index int) float64 {
	return b.sumOfWeights[index]
}

// SumOfMaximumWeights returns the sum of the maximum weights declared by the children for dimension index.
func (b *BranchContext) SumOfMaximumWeights(index int) float64 {
	return b.sumOfMaximumWeights[index]
}

// ConsumedByAbsoluteAndPercentage returns what absolute and percentage children have been granted so far.
func (b *BranchContext) ConsumedByAbsoluteAndPercentage() resources.ResourceList {
	return b.available.Factory().Make(b.consumedByAbsoluteAndPercentage...)
}

// RemainingResource returns what is left of the parent's resource for children declared by weight.
func (b *BranchContext) RemainingResource() resources.ResourceList {
	return b.available.Subtract(b.ConsumedByAbsoluteAndPercentage()).FloorAtZero()
}

func (b *BranchContext) remaining(index int) float64 {
	remaining := b.available.At(index) - b.consumedByAbsoluteAndPercentage[index]
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (b *BranchContext) addWeight(index int, weight float64) {
	b.sumOfWeights[index] += weight
}

func (b *BranchContext) addMaximumWeight(index int, weight float64) {
	b.sumOfMaximumWeights[index] += weight
}

// consume grants as much of amount as is left in dimension index and returns the granted amount,
// and whether it had to be clamped.
func (b *BranchContext) consume(index int, amount float64) (float64, bool) {
	remaining := b.remaining(index)
	clamped := false
	if resources.Greater(amount, remaining) {
		amount = remaining
		clamped = true
	}
	b.consumedByAbsoluteAndPercentage[index] += amount
	return amount, clamped
}
