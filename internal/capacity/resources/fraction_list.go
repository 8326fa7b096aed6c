package resources

import (
	"fmt"
	"math"
)

// FractionList holds one fraction per resource dimension, e.g. a queue's share of its parent.
type FractionList struct {
	fractions []float64 // immutable, do not change this, return a new struct instead!
	factory   *Factory  // immutable, do not change this!
}

func (factory *Factory) MakeFractions(values ...float64) FractionList {
	result := make([]float64, len(factory.indexToName))
	copy(result, values)
	return FractionList{fractions: result, factory: factory}
}

func (rfl FractionList) IsEmpty() bool {
	return rfl.factory == nil
}

func (rfl FractionList) At(index int) float64 {
	if rfl.IsEmpty() {
		return 0
	}
	return rfl.fractions[index]
}

func (rfl FractionList) Multiply(other FractionList) FractionList {
	assertSameFactory(rfl.factory, other.factory)
	if rfl.IsEmpty() || other.IsEmpty() {
		return FractionList{}
	}
	result := make([]float64, len(rfl.fractions))
	for i, r := range rfl.fractions {
		result[i] = r * other.fractions[i]
	}
	return FractionList{factory: rfl.factory, fractions: result}
}

// Max returns 0 for an empty list.
func (rfl FractionList) Max() float64 {
	if rfl.IsEmpty() {
		return 0
	}
	result := math.Inf(-1)
	for _, val := range rfl.fractions {
		if val > result {
			result = val
		}
	}
	return result
}

// Min returns 0 for an empty list.
func (rfl FractionList) Min() float64 {
	if rfl.IsEmpty() {
		return 0
	}
	result := math.Inf(1)
	for _, val := range rfl.fractions {
		if val < result {
			result = val
		}
	}
	return result
}

func (rfl FractionList) GetByName(name string) (float64, error) {
	if rfl.IsEmpty() {
		return 0, fmt.Errorf("resource type %s not found as resource fraction list is empty", name)
	}
	index, ok := rfl.factory.nameToIndex[name]
	if !ok {
		return 0, fmt.Errorf("resource type %s not found", name)
	}
	return rfl.fractions[index], nil
}
