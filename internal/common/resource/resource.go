package resource

import (
	"math"
	"math/big"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// QuantityAsFloat64 returns a float64 representation of a quantity.
// We need our own function because q.AsApproximateFloat64 sometimes returns surprising results.
// For example, resource.MustParse("5188205838208Ki").AsApproximateFloat64() returns 0.004291583283300088,
// whereas this function returns 5.312722778324993e+15.
func QuantityAsFloat64(q resource.Quantity) float64 {
	dec := q.AsDec()
	unscaled := dec.UnscaledBig()
	scale := dec.Scale()
	unscaledFloat, _ := new(big.Float).SetInt(unscaled).Float64()
	return unscaledFloat * math.Pow10(-int(scale))
}

// Float64AsQuantity converts v back into a quantity with milli precision in the given format.
func Float64AsQuantity(v float64, format resource.Format) resource.Quantity {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return resource.Quantity{}
	}
	if v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
		return *resource.NewQuantity(int64(v), format)
	}
	return *resource.NewMilliQuantity(int64(math.Round(v*1000)), format)
}

// ComputeResources maps a resource name to its amount.
type ComputeResources map[string]resource.Quantity

// String renders the resources sorted by name, e.g. "memory: 10Gi, vcores: 8".
func (a ComputeResources) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := a[k]
		parts = append(parts, k+": "+v.String())
	}
	return strings.Join(parts, ", ")
}

// AsFloat converts every quantity with QuantityAsFloat64.
func (a ComputeResources) AsFloat() map[string]float64 {
	result := make(map[string]float64, len(a))
	for key, value := range a {
		result[key] = QuantityAsFloat64(value)
	}
	return result
}

// IsValid returns true if no quantity is negative.
func (a ComputeResources) IsValid() bool {
	for _, value := range a {
		if value.Sign() < 0 {
			return false
		}
	}
	return true
}
