package resources

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	k8sResource "k8s.io/apimachinery/pkg/api/resource"

	"github.com/armadaproject/queuecapacity/internal/common/resource"
)

// Tolerance is the relative difference below which two amounts are considered equal.
const Tolerance = 1e-9

// ResourceList holds one amount per resource dimension of its factory.
// The zero value is an empty list, which behaves as all zero in arithmetic.
type ResourceList struct {
	resources []float64 // immutable, do not change this, return a new struct instead!
	factory   *Factory  // immutable, do not change this!
}

func (rl ResourceList) IsEmpty() bool {
	return rl.factory == nil
}

func (rl ResourceList) Factory() *Factory {
	return rl.factory
}

func (rl ResourceList) Equal(other ResourceList) bool {
	assertSameFactory(rl.factory, other.factory)
	if rl.IsEmpty() && other.IsEmpty() {
		return true
	}
	if rl.IsEmpty() || other.IsEmpty() {
		return false
	}
	return slices.Equal(rl.resources, other.resources)
}

// ApproxEqual compares dimension-wise within Tolerance.
func (rl ResourceList) ApproxEqual(other ResourceList) bool {
	assertSameFactory(rl.factory, other.factory)
	factory := rl.factory
	if factory == nil {
		factory = other.factory
	}
	if factory == nil {
		return true
	}
	for i := range factory.indexToName {
		if !ApproxEqual(rl.At(i), other.At(i)) {
			return false
		}
	}
	return true
}

func (rl ResourceList) String() string {
	if rl.IsEmpty() {
		return "empty"
	}
	result := ""
	for i, name := range rl.factory.indexToName {
		if i > 0 {
			result += " "
		}
		q := rl.Quantity(i)
		result += fmt.Sprintf("%s=%s", name, q.String())
	}
	return result
}

// At returns the amount at index, zero for an empty list.
func (rl ResourceList) At(index int) float64 {
	if rl.IsEmpty() {
		return 0
	}
	return rl.resources[index]
}

func (rl ResourceList) GetByName(name string) (float64, error) {
	if rl.IsEmpty() {
		return 0, fmt.Errorf("resource type %s not found as resource list is empty", name)
	}
	index, ok := rl.factory.nameToIndex[name]
	if !ok {
		return 0, errors.Errorf("resource type %s not found", name)
	}
	return rl.resources[index], nil
}

func (rl ResourceList) GetByNameZeroIfMissing(name string) float64 {
	v, err := rl.GetByName(name)
	if err != nil {
		return 0
	}
	return v
}

// With returns a copy of rl with the amount at index replaced.
func (rl ResourceList) With(index int, value float64) ResourceList {
	if rl.IsEmpty() {
		panic("cannot set a value on an empty resource list")
	}
	result := slices.Clone(rl.resources)
	result[index] = value
	return ResourceList{factory: rl.factory, resources: result}
}

// Quantity renders the amount at index in the resolution and format configured for it.
func (rl ResourceList) Quantity(index int) k8sResource.Quantity {
	if rl.IsEmpty() {
		return k8sResource.Quantity{}
	}
	return resource.Float64AsQuantity(roundToScale(rl.resources[index], rl.factory.scales[index]), rl.factory.formats[index])
}

func (rl ResourceList) ToMap() map[string]float64 {
	if rl.IsEmpty() {
		return map[string]float64{}
	}
	result := make(map[string]float64, len(rl.resources))
	for i, name := range rl.factory.indexToName {
		result[name] = rl.resources[i]
	}
	return result
}

func (rl ResourceList) ToQuantities() map[string]k8sResource.Quantity {
	if rl.IsEmpty() {
		return map[string]k8sResource.Quantity{}
	}
	result := make(map[string]k8sResource.Quantity, len(rl.resources))
	for i, name := range rl.factory.indexToName {
		result[name] = rl.Quantity(i)
	}
	return result
}

func (rl ResourceList) AllZero() bool {
	if rl.IsEmpty() {
		return true
	}
	for _, r := range rl.resources {
		if r != 0 {
			return false
		}
	}
	return true
}

func (rl ResourceList) HasNegativeValues() bool {
	if rl.IsEmpty() {
		return false
	}
	for _, r := range rl.resources {
		if r < 0 {
			return true
		}
	}
	return false
}

func (rl ResourceList) FloorAtZero() ResourceList {
	if rl.IsEmpty() {
		return rl
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = math.Max(r, 0)
	}
	return ResourceList{factory: rl.factory, resources: result}
}

// Exceeds returns true if any dimension of rl is above other by more than Tolerance.
func (rl ResourceList) Exceeds(other ResourceList) bool {
	assertSameFactory(rl.factory, other.factory)
	if rl.IsEmpty() {
		return false
	}
	for i, r := range rl.resources {
		if Greater(r, other.At(i)) {
			return true
		}
	}
	return false
}

func (rl ResourceList) Cap(cap ResourceList) ResourceList {
	assertSameFactory(rl.factory, cap.factory)
	if rl.IsEmpty() {
		return ResourceList{}
	}
	if cap.IsEmpty() {
		return rl
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = math.Min(r, cap.resources[i])
	}
	return ResourceList{factory: rl.factory, resources: result}
}

// Max returns the dimension-wise maximum.
func (rl ResourceList) Max(other ResourceList) ResourceList {
	assertSameFactory(rl.factory, other.factory)
	if rl.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return rl
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = math.Max(r, other.resources[i])
	}
	return ResourceList{factory: rl.factory, resources: result}
}

func (rl ResourceList) Add(other ResourceList) ResourceList {
	assertSameFactory(rl.factory, other.factory)
	if rl.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return rl
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = r + other.resources[i]
	}
	return ResourceList{factory: rl.factory, resources: result}
}

func (rl ResourceList) Subtract(other ResourceList) ResourceList {
	assertSameFactory(rl.factory, other.factory)
	if other.IsEmpty() {
		return rl
	}
	if rl.IsEmpty() {
		return other.Negate()
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = r - other.resources[i]
	}
	return ResourceList{factory: rl.factory, resources: result}
}

func (rl ResourceList) Scale(factor float64) ResourceList {
	if rl.IsEmpty() {
		return rl
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = r * factor
	}
	return ResourceList{factory: rl.factory, resources: result}
}

func (rl ResourceList) Multiply(multipliers FractionList) ResourceList {
	assertSameFactory(rl.factory, multipliers.factory)
	if rl.IsEmpty() || multipliers.IsEmpty() {
		return ResourceList{}
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = r * multipliers.fractions[i]
	}
	return ResourceList{factory: rl.factory, resources: result}
}

// Divide, return 0 on attempt to divide by 0
func (rl ResourceList) DivideZeroOnError(other ResourceList) FractionList {
	assertSameFactory(rl.factory, other.factory)
	if rl.IsEmpty() || other.IsEmpty() {
		return FractionList{}
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		denom := other.resources[i]
		if denom != 0 {
			result[i] = r / denom
		}
	}
	return FractionList{factory: rl.factory, fractions: result}
}

func (rl ResourceList) Negate() ResourceList {
	if rl.IsEmpty() {
		return rl
	}
	result := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		result[i] = -r
	}
	return ResourceList{factory: rl.factory, resources: result}
}

// ApproxEqual compares two amounts within Tolerance relative to the larger of them.
func ApproxEqual(a, b float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return diff <= Tolerance*scale
}

// Greater returns true if a is above b by more than Tolerance.
func Greater(a, b float64) bool {
	return a > b && !ApproxEqual(a, b)
}

func roundToScale(v float64, scale k8sResource.Scale) float64 {
	if scale < 0 {
		p := math.Pow10(-int(scale))
		return math.Round(v*p) / p
	}
	p := math.Pow10(int(scale))
	return math.Round(v/p) * p
}

func assertSameFactory(a, b *Factory) {
	if a != nil && b != nil && a != b {
		panic("mismatched resources.Factory")
	}
}
