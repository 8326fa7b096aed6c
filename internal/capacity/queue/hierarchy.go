package queue

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/armadaproject/queuecapacity/internal/capacity/configuration"
	"github.com/armadaproject/queuecapacity/internal/capacity/vector"
	"github.com/armadaproject/queuecapacity/internal/common/capacityerrors"
)

// Hierarchy indexes a queue tree by path.
type Hierarchy struct {
	root   *Queue
	byPath map[string]*Queue
	// Paths in pre-order, children in declaration order.
	paths []string
}

// NewHierarchy indexes every queue below root, which must not change shape afterwards.
func NewHierarchy(root *Queue) *Hierarchy {
	h := &Hierarchy{root: root, byPath: map[string]*Queue{}}
	var index func(q *Queue)
	index = func(q *Queue) {
		h.byPath[q.path] = q
		h.paths = append(h.paths, q.path)
		for _, child := range q.children {
			index(child)
		}
	}
	index(root)
	return h
}

func (h *Hierarchy) Root() *Queue {
	return h.root
}

func (h *Hierarchy) Len() int {
	return len(h.paths)
}

// Get returns the queue at path or an *capacityerrors.ErrNotFound.
func (h *Hierarchy) Get(path string) (*Queue, error) {
	q, ok := h.byPath[path]
	if !ok {
		return nil, errors.WithStack(&capacityerrors.ErrNotFound{
			Type:  "queue",
			Value: path,
		})
	}
	return q, nil
}

// Walk calls fn for every queue, parents before children, stopping at the first error.
func (h *Hierarchy) Walk(fn func(q *Queue) error) error {
	for _, path := range h.paths {
		if err := fn(h.byPath[path]); err != nil {
			return err
		}
	}
	return nil
}

// FromConfig builds the tree declared by config. Every invalid queue is reported in the returned error.
func FromConfig(config configuration.QueueConfig, parser *vector.Parser) (*Hierarchy, error) {
	root, err := NewRoot(config.Name)
	if err != nil {
		return nil, err
	}
	var result *multierror.Error
	result = multierror.Append(result, declare(root, config, parser))
	var build func(parent *Queue, configs []configuration.QueueConfig)
	build = func(parent *Queue, configs []configuration.QueueConfig) {
		for _, c := range configs {
			child, err := parent.AddChild(c.Name)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			result = multierror.Append(result, declare(child, c, parser))
			build(child, c.Queues)
		}
	}
	build(root, config.Queues)
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return NewHierarchy(root), nil
}

func declare(q *Queue, config configuration.QueueConfig, parser *vector.Parser) error {
	var result *multierror.Error
	set := func(label, capacity, maximumCapacity string) {
		if v, err := parser.Parse(capacity); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "queue %s", q.path))
		} else if !v.IsEmpty() {
			q.SetCapacityVector(label, v)
		}
		if v, err := parser.Parse(maximumCapacity); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "queue %s maximum", q.path))
		} else if !v.IsEmpty() {
			q.SetMaximumCapacityVector(label, v)
		}
	}
	set(NoLabel, config.Capacity, config.MaximumCapacity)
	for _, l := range config.Labels {
		set(l.Label, l.Capacity, l.MaximumCapacity)
	}
	return result.ErrorOrNil()
}
