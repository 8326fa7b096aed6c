package resources

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	k8sResource "k8s.io/apimachinery/pkg/api/resource"

	"github.com/armadaproject/queuecapacity/internal/capacity/configuration"
	"github.com/armadaproject/queuecapacity/internal/common/capacityerrors"
	"github.com/armadaproject/queuecapacity/internal/common/resource"
)

// Factory maps resource names to indices so that resource lists can be stored as slices.
// All lists combined in one computation must come from the same Factory.
type Factory struct {
	nameToIndex map[string]int
	indexToName []string
	scales      []k8sResource.Scale
	formats     []k8sResource.Format
}

func MakeFactory(resourceTypes []configuration.ResourceType) (*Factory, error) {
	if len(resourceTypes) == 0 {
		return nil, errors.New("no resource types configured")
	}
	indexToName := make([]string, len(resourceTypes))
	nameToIndex := make(map[string]int, len(resourceTypes))
	scales := make([]k8sResource.Scale, len(resourceTypes))
	formats := make([]k8sResource.Format, len(resourceTypes))
	for i, t := range resourceTypes {
		if _, exists := nameToIndex[t.Name]; exists {
			return nil, fmt.Errorf("duplicate resource type name %q", t.Name)
		}
		nameToIndex[t.Name] = i
		indexToName[i] = t.Name
		scales[i] = resolutionToScale(t.Resolution)
		formats[i] = k8sResource.DecimalSI
		if t.Format != "" {
			formats[i] = k8sResource.Format(t.Format)
		}
	}
	return &Factory{
		indexToName: indexToName,
		nameToIndex: nameToIndex,
		scales:      scales,
		formats:     formats,
	}, nil
}

// MustMakeFactory is MakeFactory for resource names known to be valid, e.g. in tests.
func MustMakeFactory(names ...string) *Factory {
	resourceTypes := make([]configuration.ResourceType, len(names))
	for i, name := range names {
		resourceTypes[i] = configuration.ResourceType{Name: name}
	}
	factory, err := MakeFactory(resourceTypes)
	if err != nil {
		panic(err)
	}
	return factory
}

// Convert resolution to a k8sResource.Scale
// e.g.
// 1     ->  0
// 0.001 -> -3
// 1000  ->  3
func resolutionToScale(resolution k8sResource.Quantity) k8sResource.Scale {
	if resolution.Sign() < 1 {
		return k8sResource.Milli
	}
	return k8sResource.Scale(math.Floor(math.Log10(resolution.AsApproximateFloat64())))
}

// Names returns the resource names in index order.
func (factory *Factory) Names() []string {
	result := make([]string, len(factory.indexToName))
	copy(result, factory.indexToName)
	return result
}

func (factory *Factory) Len() int {
	return len(factory.indexToName)
}

// Index returns the index of the named resource, or false if the factory does not know it.
func (factory *Factory) Index(name string) (int, bool) {
	index, ok := factory.nameToIndex[name]
	return index, ok
}

func (factory *Factory) MakeAllZero() ResourceList {
	return ResourceList{resources: make([]float64, len(factory.indexToName)), factory: factory}
}

// Make builds a list from values given in index order. Missing values are zero.
func (factory *Factory) Make(values ...float64) ResourceList {
	result := make([]float64, len(factory.indexToName))
	copy(result, values)
	return ResourceList{resources: result, factory: factory}
}

// FromMap fails on unknown resources. Resources missing from m are zero.
func (factory *Factory) FromMap(m map[string]float64) (ResourceList, error) {
	result := make([]float64, len(factory.indexToName))
	for k, v := range m {
		index, ok := factory.nameToIndex[k]
		if !ok {
			return ResourceList{}, errors.WithStack(&capacityerrors.ErrInvalidArgument{
				Name:    "resourceName",
				Value:   k,
				Message: "resource type is not configured",
			})
		}
		result[index] = v
	}
	return ResourceList{resources: result, factory: factory}, nil
}

// FromQuantities fails on unknown resources. Resources missing from m are zero.
func (factory *Factory) FromQuantities(m map[string]k8sResource.Quantity) (ResourceList, error) {
	return factory.FromMap(resource.ComputeResources(m).AsFloat())
}

// Format returns the quantity format reports use for the resource at index.
func (factory *Factory) Format(index int) k8sResource.Format {
	return factory.formats[index]
}

// SummaryString describes the configured resources, e.g. for startup logs.
func (factory *Factory) SummaryString() string {
	result := ""
	for i, name := range factory.indexToName {
		if i > 0 {
			result += " "
		}
		resolution := k8sResource.NewScaledQuantity(1, factory.scales[i])
		result += fmt.Sprintf("%s (resolution %v, format %s)", name, resolution, factory.formats[i])
	}
	return result
}
