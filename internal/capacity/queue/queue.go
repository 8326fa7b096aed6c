package queue

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
	"github.com/armadaproject/queuecapacity/internal/capacity/vector"
	"github.com/armadaproject/queuecapacity/internal/common/capacityerrors"
)

// NoLabel identifies the partition of nodes without a node label.
const NoLabel = ""

// PathSeparator joins queue names into paths, e.g. "root.a.a1".
const PathSeparator = "."

// ResourceQuotas are the resolved resource bounds of a queue in one partition.
type ResourceQuotas struct {
	// Resource the queue is guaranteed.
	EffectiveMin resources.ResourceList
	// Resource the queue may use at most.
	EffectiveMax resources.ResourceList
}

// Capacities are the resolved resource bounds of a queue in one partition expressed as single fractions.
type Capacities struct {
	// Share of the parent's guaranteed resource.
	Capacity float64
	// Share of the partition's total resource.
	AbsoluteCapacity float64
	// Maximum resource as a share of the parent's maximum resource.
	MaximumCapacity float64
	// Maximum resource as a share of the partition's total resource.
	AbsoluteMaximumCapacity float64
}

// Queue is a node of the queue tree.
//
// Capacity declarations are set when the tree is built. Quotas and capacities are only written by Commit,
// which callers must serialise with any readers.
type Queue struct {
	name     string
	path     string
	parent   *Queue
	children []*Queue

	// Declared guaranteed and maximum capacity per label.
	capacityVectors        map[string]vector.CapacityVector
	maximumCapacityVectors map[string]vector.CapacityVector

	// Results of the last committed computation per label.
	quotas     map[string]ResourceQuotas
	capacities map[string]Capacities
}

// NewRoot returns a queue without a parent.
func NewRoot(name string) (*Queue, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return newQueue(name, name, nil), nil
}

func newQueue(name, path string, parent *Queue) *Queue {
	return &Queue{
		name:                   name,
		path:                   path,
		parent:                 parent,
		capacityVectors:        map[string]vector.CapacityVector{},
		maximumCapacityVectors: map[string]vector.CapacityVector{},
		quotas:                 map[string]ResourceQuotas{},
		capacities:             map[string]Capacities{},
	}
}

// AddChild appends a new child queue. Children keep the order they were added in.
func (q *Queue) AddChild(name string) (*Queue, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	for _, child := range q.children {
		if child.name == name {
			return nil, errors.WithStack(&capacityerrors.ErrAlreadyExists{
				Type:  "queue",
				Value: child.path,
			})
		}
	}
	child := newQueue(name, q.path+PathSeparator+name, q)
	q.children = append(q.children, child)
	return child, nil
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, PathSeparator) {
		return errors.WithStack(&capacityerrors.ErrInvalidArgument{
			Name:    "queueName",
			Value:   name,
			Message: fmt.Sprintf("queue names must be non-empty and must not contain %q", PathSeparator),
		})
	}
	return nil
}

func (q *Queue) Name() string {
	return q.name
}

// Path is the dot separated list of names from the root down to q.
func (q *Queue) Path() string {
	return q.path
}

// Parent returns nil for the root.
func (q *Queue) Parent() *Queue {
	return q.parent
}

// Children returns the children in declaration order.
func (q *Queue) Children() []*Queue {
	return slices.Clone(q.children)
}

func (q *Queue) IsLeaf() bool {
	return len(q.children) == 0
}

func (q *Queue) SetCapacityVector(label string, v vector.CapacityVector) {
	q.capacityVectors[label] = v
}

func (q *Queue) SetMaximumCapacityVector(label string, v vector.CapacityVector) {
	q.maximumCapacityVectors[label] = v
}

// CapacityVector returns the guaranteed capacity declared for label, empty if there is none.
func (q *Queue) CapacityVector(label string) vector.CapacityVector {
	return q.capacityVectors[label]
}

// MaximumCapacityVector returns the maximum capacity declared for label, empty if there is none.
func (q *Queue) MaximumCapacityVector(label string) vector.CapacityVector {
	return q.maximumCapacityVectors[label]
}

// ConfiguredLabels returns, sorted, every label q declares a capacity for.
func (q *Queue) ConfiguredLabels() []string {
	labels := map[string]bool{}
	for label := range q.capacityVectors {
		labels[label] = true
	}
	for label := range q.maximumCapacityVectors {
		labels[label] = true
	}
	result := maps.Keys(labels)
	slices.Sort(result)
	return result
}

// Quotas returns the committed quotas of label.
func (q *Queue) Quotas(label string) (ResourceQuotas, bool) {
	quotas, ok := q.quotas[label]
	return quotas, ok
}

// Capacities returns the committed capacities of label.
func (q *Queue) Capacities(label string) (Capacities, bool) {
	capacities, ok := q.capacities[label]
	return capacities, ok
}

// Labels returns, sorted, every label results were committed for.
func (q *Queue) Labels() []string {
	result := maps.Keys(q.quotas)
	slices.Sort(result)
	return result
}

// Commit replaces the results of every label. Labels missing from quotas are dropped.
func (q *Queue) Commit(quotas map[string]ResourceQuotas, capacities map[string]Capacities) {
	q.quotas = maps.Clone(quotas)
	q.capacities = maps.Clone(capacities)
}

func (q *Queue) String() string {
	return q.path
}
