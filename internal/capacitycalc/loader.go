package capacitycalc

import (
	"github.com/mattn/go-zglob"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/queuecapacity/internal/capacity/calculator"
	"github.com/armadaproject/queuecapacity/internal/capacity/configuration"
	"github.com/armadaproject/queuecapacity/internal/capacity/queue"
	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
	"github.com/armadaproject/queuecapacity/internal/capacity/updater"
	"github.com/armadaproject/queuecapacity/internal/capacity/vector"
	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
	"github.com/armadaproject/queuecapacity/internal/common/config"
)

// ConfigFilesFromPattern returns the files matching pattern, sorted.
// Patterns may start with "~" and may contain "**" to match any number of directories.
func ConfigFilesFromPattern(pattern string) ([]string, error) {
	pattern, err := homedir.Expand(pattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	filePaths, err := zglob.Glob(pattern)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid pattern %q", pattern)
	}
	if len(filePaths) == 0 {
		return nil, errors.Errorf("no configuration files match %q", pattern)
	}
	slices.Sort(filePaths)
	return filePaths, nil
}

// LoadConfiguration decodes the current contents of v on top of configuration.Default and validates the result.
func LoadConfiguration(v *viper.Viper) (configuration.Configuration, error) {
	c := configuration.Default()
	if err := config.Unmarshal(v, &c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, errors.WithMessagef(config.ValidationError(err), "invalid configuration %s", v.ConfigFileUsed())
	}
	return c, nil
}

// LoadConfigurationFile is LoadConfiguration for a single file.
func LoadConfigurationFile(filePath string) (configuration.Configuration, error) {
	v, err := config.NewFileViper(filePath)
	if err != nil {
		return configuration.Configuration{}, err
	}
	return LoadConfiguration(v)
}

// Tree is a queue tree built from one configuration file, together with everything needed to run passes over it.
type Tree struct {
	Name                    string
	Config                  configuration.Configuration
	Factory                 *resources.Factory
	Hierarchy               *queue.Hierarchy
	ClusterResourcePerLabel map[string]resources.ResourceList
	updater                 *updater.Updater
}

// NewTree builds the queue tree and cluster partitions described by c. Passes report to metrics, which may be nil.
// The parser, and the cache of parsed declarations it holds, lives as long as the tree.
func NewTree(name string, c configuration.Configuration, metrics *updater.Metrics) (*Tree, error) {
	parser, err := NewParser(c)
	if err != nil {
		return nil, err
	}
	return NewTreeWithParser(name, c, parser, metrics)
}

// NewParser returns a parser for the resource types of c, caching up to c.ParserCacheSize declarations.
func NewParser(c configuration.Configuration) (*vector.Parser, error) {
	factory, err := resources.MakeFactory(c.ResourceTypes)
	if err != nil {
		return nil, err
	}
	return vector.NewParser(factory, c.ParserCacheSize)
}

// NewTreeWithParser is NewTree parsing declarations with parser, which must have been built for the
// resource types of c. Sharing a parser between trees of the same file lets its cache outlive a single load.
func NewTreeWithParser(name string, c configuration.Configuration, parser *vector.Parser, metrics *updater.Metrics) (*Tree, error) {
	factory := parser.Factory()
	calc, err := calculator.New(c.ResourceCalculator, factory)
	if err != nil {
		return nil, err
	}
	hierarchy, err := queue.FromConfig(c.Queues, parser)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid queues in %s", name)
	}
	clusterResourcePerLabel := make(map[string]resources.ResourceList, len(c.Partitions))
	for _, partition := range c.Partitions {
		rl, err := factory.FromQuantities(partition.Resources)
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid resources of partition %q", partition.Label)
		}
		clusterResourcePerLabel[partition.Label] = rl
	}
	return &Tree{
		Name:                    name,
		Config:                  c,
		Factory:                 factory,
		Hierarchy:               hierarchy,
		ClusterResourcePerLabel: clusterResourcePerLabel,
		updater:                 updater.New(factory, calc, updater.WithMetrics(metrics)),
	}, nil
}

// sameResourceTypes reports whether a parser built for a can parse declarations for b.
func sameResourceTypes(a, b configuration.Configuration) bool {
	return a.ParserCacheSize == b.ParserCacheSize &&
		slices.EqualFunc(a.ResourceTypes, b.ResourceTypes, func(x, y configuration.ResourceType) bool {
			return x.Name == y.Name && x.Format == y.Format && x.Resolution.Cmp(y.Resolution) == 0
		})
}

// Compute runs a single pass over the tree.
func (t *Tree) Compute(ctx *calccontext.Context) (*updater.Result, error) {
	return t.updater.Update(ctx, t.ClusterResourcePerLabel, t.Hierarchy.Root())
}
