package updater

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/queuecapacity/internal/capacity/queue"
	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
)

// LabelResourceRegistry maps a node label to the total resource of the nodes carrying it.
type LabelResourceRegistry interface {
	// ResourceByLabel returns the resource of label, or fallback if the registry does not know the label.
	ResourceByLabel(label string, fallback resources.ResourceList) resources.ResourceList
}

// StaticLabelResources is a LabelResourceRegistry backed by a fixed map.
type StaticLabelResources map[string]resources.ResourceList

func (s StaticLabelResources) ResourceByLabel(label string, fallback resources.ResourceList) resources.ResourceList {
	if rl, ok := s[label]; ok {
		return rl
	}
	return fallback
}

type branchKey struct {
	parentPath string
	label      string
}

// stagedQueue holds the results of one queue until the pass commits them.
type stagedQueue struct {
	queue      *queue.Queue
	quotas     map[string]queue.ResourceQuotas
	capacities map[string]queue.Capacities
}

// UpdateContext is the state of a single pass. It must not be reused or shared between passes.
type UpdateContext struct {
	passId  string
	factory *resources.Factory
	// Resource names in factory order.
	names []string
	// Sorted, queue.NoLabel first.
	labels          []string
	clusterResource map[string]resources.ResourceList
	branches        map[branchKey]*BranchContext
	warnings        []Warning
	// Results by queue path, in the order queues were resolved.
	staged      map[string]*stagedQueue
	stagedOrder []string
	log         *logrus.Entry
}

func newUpdateContext(
	passId string,
	factory *resources.Factory,
	labels []string,
	clusterResource map[string]resources.ResourceList,
	log *logrus.Entry,
) *UpdateContext {
	return &UpdateContext{
		passId:          passId,
		factory:         factory,
		names:           factory.Names(),
		labels:          labels,
		clusterResource: clusterResource,
		branches:        map[branchKey]*BranchContext{},
		staged:          map[string]*stagedQueue{},
		log:             log,
	}
}

func (c *UpdateContext) PassId() string {
	return c.passId
}

// Labels returns every label the pass computes, sorted with queue.NoLabel first.
func (c *UpdateContext) Labels() []string {
	return slices.Clone(c.labels)
}

// ClusterResource returns the total resource of label.
func (c *UpdateContext) ClusterResource(label string) resources.ResourceList {
	if rl, ok := c.clusterResource[label]; ok {
		return rl
	}
	return c.factory.MakeAllZero()
}

// BranchContext returns the accumulator of the children of parentPath in label, if it has been created.
func (c *UpdateContext) BranchContext(parentPath, label string) (*BranchContext, bool) {
	b, ok := c.branches[branchKey{parentPath: parentPath, label: label}]
	return b, ok
}

// GetOrCreateBranchContext returns the accumulator of the children of parentPath in label,
// calling newBranch to create it on first access.
func (c *UpdateContext) GetOrCreateBranchContext(parentPath, label string, newBranch func() *BranchContext) *BranchContext {
	key := branchKey{parentPath: parentPath, label: label}
	if b, ok := c.branches[key]; ok {
		return b
	}
	b := newBranch()
	c.branches[key] = b
	return b
}

// Warnings returns a copy of the warnings reported so far, in the order they were reported.
func (c *UpdateContext) Warnings() []Warning {
	return slices.Clone(c.warnings)
}

func (c *UpdateContext) addWarning(w Warning) {
	c.warnings = append(c.warnings, w)
	c.log.WithFields(logrus.Fields{
		"queue": w.QueuePath,
		"label": w.Label,
		"kind":  string(w.Kind),
	}).Warn(w.Message)
}

func (c *UpdateContext) stage(q *queue.Queue, label string, quotas queue.ResourceQuotas, capacities queue.Capacities) {
	s, ok := c.staged[q.Path()]
	if !ok {
		s = &stagedQueue{
			queue:      q,
			quotas:     map[string]queue.ResourceQuotas{},
			capacities: map[string]queue.Capacities{},
		}
		c.staged[q.Path()] = s
		c.stagedOrder = append(c.stagedOrder, q.Path())
	}
	s.quotas[label] = quotas
	s.capacities[label] = capacities
}

// stagedQuotas returns the quotas resolved for path in label during this pass.
func (c *UpdateContext) stagedQuotas(path, label string) (queue.ResourceQuotas, queue.Capacities) {
	s := c.staged[path]
	return s.quotas[label], s.capacities[label]
}

// commit writes every staged result into its queue.
func (c *UpdateContext) commit() {
	for _, path := range c.stagedOrder {
		s := c.staged[path]
		s.queue.Commit(s.quotas, s.capacities)
	}
}
