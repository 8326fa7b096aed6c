package configuration

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/armadaproject/queuecapacity/internal/common/logging"
)

const (
	DominantResourceCalculator = "dominantResource"
	DefaultResourceCalculator  = "default"
	WeightedResourceCalculator = "weighted"
)

type Configuration struct {
	Logging logging.Config
	// Configuration controlling metrics
	Metrics MetricsConfig
	// Resource dimensions capacities are computed for, in display order.
	ResourceTypes []ResourceType `validate:"required,min=1,dive"`
	// How per-dimension shares are collapsed into a single capacity value.
	ResourceCalculator CalculatorConfig
	// Maximum number of parsed capacity vectors kept in memory.
	// Zero disables the cache.
	ParserCacheSize int `validate:"gte=0"`
	// Total cluster resource of each node label partition.
	// The unlabeled partition has an empty label.
	Partitions []PartitionConfig `validate:"dive"`
	// The root of the queue tree.
	Queues QueueConfig
}

type MetricsConfig struct {
	// If true, no metrics are collected or served.
	Disabled bool
	// Port /metrics is served on in watch mode.
	Port uint16
}

type ResourceType struct {
	// e.g. "memory", "vcores" or "nvidia.com/gpu"
	Name string `validate:"required"`
	// Smallest amount of this resource displayed in reports.
	Resolution resource.Quantity
	// Quantity format used in reports, BinarySI or DecimalSI.
	Format string `validate:"omitempty,oneof=BinarySI DecimalSI"`
}

type CalculatorConfig struct {
	Type string `validate:"omitempty,oneof=dominantResource default weighted"`
	// Resource considered by the default calculator.
	Dimension string
	// Per resource multipliers applied by the weighted calculator.
	Weights map[string]float64
}

type PartitionConfig struct {
	Label     string
	Resources map[string]resource.Quantity `validate:"required"`
}

type QueueConfig struct {
	Name string `validate:"required"`
	// Guaranteed share of the unlabeled partition, e.g. "50", "3w" or "[memory=50%, vcores=2w]".
	Capacity string
	// Upper bound in the unlabeled partition, in the same forms as Capacity.
	MaximumCapacity string
	// Declarations for named node label partitions.
	Labels []LabelCapacityConfig `validate:"dive"`
	Queues []QueueConfig         `validate:"dive"`
}

type LabelCapacityConfig struct {
	Label           string `validate:"required"`
	Capacity        string
	MaximumCapacity string
}

func (c Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(ConfigurationValidation, Configuration{})
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// Default returns the configuration used for every key missing from a configuration file.
func Default() Configuration {
	return Configuration{
		Logging: logging.Config{
			Level:  "info",
			Format: logging.FormatText,
		},
		Metrics: MetricsConfig{
			Port: 9000,
		},
		ResourceCalculator: CalculatorConfig{
			Type: DominantResourceCalculator,
		},
		ParserCacheSize: 1024,
	}
}

// ConfigurationValidation checks constraints spanning more than one field.
func ConfigurationValidation(sl validator.StructLevel) {
	c := sl.Current().Interface().(Configuration)

	resourceNames := make(map[string]bool, len(c.ResourceTypes))
	for i, t := range c.ResourceTypes {
		if resourceNames[t.Name] {
			sl.ReportError(t.Name, fmt.Sprintf("ResourceTypes[%d].Name", i), "Name", "unique", "")
		}
		resourceNames[t.Name] = true
	}

	labels := make(map[string]bool, len(c.Partitions))
	for i, p := range c.Partitions {
		if labels[p.Label] {
			sl.ReportError(p.Label, fmt.Sprintf("Partitions[%d].Label", i), "Label", "unique", "")
		}
		labels[p.Label] = true
		for name := range p.Resources {
			if !resourceNames[name] {
				sl.ReportError(name, fmt.Sprintf("Partitions[%d].Resources", i), "Resources", "resourcetype", name)
			}
		}
	}

	switch c.ResourceCalculator.Type {
	case DefaultResourceCalculator:
		if !resourceNames[c.ResourceCalculator.Dimension] {
			sl.ReportError(c.ResourceCalculator.Dimension, "ResourceCalculator.Dimension", "Dimension", "resourcetype", "")
		}
	case WeightedResourceCalculator:
		for name, weight := range c.ResourceCalculator.Weights {
			if !resourceNames[name] {
				sl.ReportError(name, "ResourceCalculator.Weights", "Weights", "resourcetype", name)
			}
			if weight < 0 {
				sl.ReportError(weight, "ResourceCalculator.Weights", "Weights", "gte", "0")
			}
		}
	}
}
