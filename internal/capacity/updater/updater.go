// Package updater recomputes the effective resources and capacities of every queue of a queue tree,
// for every node label of a cluster.
package updater

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"k8s.io/utils/clock"

	"github.com/armadaproject/queuecapacity/internal/capacity/calculator"
	"github.com/armadaproject/queuecapacity/internal/capacity/queue"
	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
	"github.com/armadaproject/queuecapacity/internal/capacity/vector"
	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
	"github.com/armadaproject/queuecapacity/internal/common/capacityerrors"
)

// Result of a single pass.
type Result struct {
	PassId string
	// Every label resolved, sorted with queue.NoLabel first.
	Labels []string
	// Quotas and capacities by queue path and label, as committed into the queues.
	Quotas     map[string]map[string]queue.ResourceQuotas
	Capacities map[string]map[string]queue.Capacities
	// Warnings in the order they were reported.
	Warnings []Warning
	// The context of the pass, for inspecting branch accumulators.
	Context *UpdateContext
}

type Option func(u *Updater)

// WithLabelRegistry makes passes look up the resource of each label in registry,
// using the resource passed to Update as the fallback.
func WithLabelRegistry(registry LabelResourceRegistry) Option {
	return func(u *Updater) {
		u.registry = registry
	}
}

// WithClock makes passes time themselves with c.
func WithClock(c clock.PassiveClock) Option {
	return func(u *Updater) {
		u.clock = c
	}
}

// WithMetrics reports every pass to metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(u *Updater) {
		u.metrics = metrics
	}
}

// Updater recomputes queue capacities.
//
// Update is synchronous and does no locking: callers must hold exclusive access to the queue tree
// for the duration of a pass and must not run passes over the same tree concurrently.
type Updater struct {
	factory  *resources.Factory
	calc     calculator.ResourceCalculator
	registry LabelResourceRegistry
	metrics  *Metrics
	clock    clock.PassiveClock
}

func New(factory *resources.Factory, calc calculator.ResourceCalculator, opts ...Option) *Updater {
	u := &Updater{
		factory: factory,
		calc:    calc,
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update resolves the effective resources and capacities of every queue below root, for every label of
// clusterResourcePerLabel plus queue.NoLabel, and commits them into the queues.
//
// Inconsistent declarations never fail a pass; they are reported as warnings in the result.
// Invalid input, such as a nil root or a negative cluster resource, fails the pass before any queue is changed.
func (u *Updater) Update(
	ctx *calccontext.Context,
	clusterResourcePerLabel map[string]resources.ResourceList,
	root *queue.Queue,
) (*Result, error) {
	start := u.clock.Now()
	labels, clusterResource, err := u.validate(clusterResourcePerLabel, root)
	if err != nil {
		u.metrics.ReportFailure()
		return nil, err
	}

	passId := uuid.NewString()
	log := ctx.Log.WithField("passId", passId)
	log.WithField("labels", labels).Debug("starting capacity pass")

	updateContext := newUpdateContext(passId, u.factory, labels, clusterResource, log)
	for _, label := range labels {
		u.resolveRoot(updateContext, root, label)
		u.resolveChildren(updateContext, root, label)
	}
	updateContext.commit()

	result := &Result{
		PassId:     passId,
		Labels:     slices.Clone(labels),
		Quotas:     make(map[string]map[string]queue.ResourceQuotas, len(updateContext.staged)),
		Capacities: make(map[string]map[string]queue.Capacities, len(updateContext.staged)),
		Warnings:   updateContext.Warnings(),
		Context:    updateContext,
	}
	for path, s := range updateContext.staged {
		result.Quotas[path] = maps.Clone(s.quotas)
		result.Capacities[path] = maps.Clone(s.capacities)
	}

	duration := u.clock.Since(start)
	u.metrics.ReportPass(duration, len(updateContext.staged), len(labels), result.Warnings)
	log.WithFields(logrus.Fields{
		"queues":   len(updateContext.staged),
		"labels":   len(labels),
		"warnings": len(result.Warnings),
		"duration": duration,
	}).Info("capacity pass complete")
	return result, nil
}

// validate checks the preconditions of a pass and returns the sorted labels and their cluster resource.
func (u *Updater) validate(
	clusterResourcePerLabel map[string]resources.ResourceList,
	root *queue.Queue,
) ([]string, map[string]resources.ResourceList, error) {
	if root == nil {
		return nil, nil, errors.WithStack(&capacityerrors.ErrInvalidArgument{
			Name:    "root",
			Value:   nil,
			Message: "root queue must not be nil",
		})
	}

	labelSet := map[string]bool{queue.NoLabel: true}
	for label := range clusterResourcePerLabel {
		labelSet[label] = true
	}
	labels := maps.Keys(labelSet)
	slices.Sort(labels)

	clusterResource := make(map[string]resources.ResourceList, len(labels))
	for _, label := range labels {
		rl := clusterResourcePerLabel[label]
		if u.registry != nil {
			rl = u.registry.ResourceByLabel(label, rl)
		}
		if rl.IsEmpty() {
			rl = u.factory.MakeAllZero()
		}
		if rl.Factory() != u.factory {
			return nil, nil, errors.WithStack(&capacityerrors.ErrInvalidArgument{
				Name:    "clusterResource",
				Value:   rl,
				Message: fmt.Sprintf("resource of label %q was built for other resource types", label),
			})
		}
		if rl.HasNegativeValues() {
			return nil, nil, errors.WithStack(&capacityerrors.ErrInvalidArgument{
				Name:    "clusterResource",
				Value:   rl,
				Message: fmt.Sprintf("resource of label %q must not be negative", label),
			})
		}
		clusterResource[label] = rl
	}

	if err := u.validateDeclarations(root); err != nil {
		return nil, nil, err
	}
	return labels, clusterResource, nil
}

// validateDeclarations checks that every queue only declares capacities of known resources,
// with values in range for their unit.
func (u *Updater) validateDeclarations(q *queue.Queue) error {
	for _, label := range q.ConfiguredLabels() {
		for _, v := range []vector.CapacityVector{q.CapacityVector(label), q.MaximumCapacityVector(label)} {
			for _, name := range v.Names() {
				if _, ok := u.factory.Index(name); !ok {
					return errors.WithStack(&capacityerrors.ErrInvalidArgument{
						Name:    "resourceName",
						Value:   name,
						Message: fmt.Sprintf("queue %s declares a capacity for a resource type that is not configured", q.Path()),
					})
				}
				entry, _ := v.Get(name)
				if reason := invalidValue(entry); reason != "" {
					return errors.WithStack(&capacityerrors.ErrInvalidArgument{
						Name:    "capacity",
						Value:   entry.String(),
						Message: fmt.Sprintf("queue %s declares %s %s in label %q: %s", q.Path(), name, entry, label, reason),
					})
				}
			}
		}
	}
	for _, child := range q.Children() {
		if err := u.validateDeclarations(child); err != nil {
			return err
		}
	}
	return nil
}

// invalidValue returns why the value of e cannot be resolved, or "" if it can.
// A zero weight is valid; a branch whose weights sum to zero is reported as NO_WEIGHT_SIBLINGS.
func invalidValue(e vector.Entry) string {
	switch {
	case math.IsNaN(e.Value) || math.IsInf(e.Value, 0):
		return "value must be finite"
	case e.Value < 0:
		return "value must not be negative"
	case e.Unit == vector.Percentage && e.Value > 100:
		return "percentage must not exceed 100"
	}
	return ""
}

// resolveRoot gives the root the whole resource of label.
func (u *Updater) resolveRoot(ctx *UpdateContext, root *queue.Queue, label string) {
	cluster := ctx.ClusterResource(label)
	ctx.stage(
		root,
		label,
		queue.ResourceQuotas{EffectiveMin: cluster, EffectiveMax: cluster},
		queue.Capacities{Capacity: 1, AbsoluteCapacity: 1, MaximumCapacity: 1, AbsoluteMaximumCapacity: 1},
	)
}

// resolveChildren resolves every child of parent in label before descending into any of them,
// so that each child is complete before it is used as a parent.
func (u *Updater) resolveChildren(ctx *UpdateContext, parent *queue.Queue, label string) {
	children := parent.Children()
	if len(children) == 0 {
		return
	}
	parentQuotas, parentCapacities := ctx.stagedQuotas(parent.Path(), label)
	branch := ctx.GetOrCreateBranchContext(parent.Path(), label, func() *BranchContext {
		return NewBranchContext(parent.Path(), label, parentQuotas.EffectiveMin)
	})

	for _, child := range children {
		for i, name := range ctx.names {
			if e := declaredEntry(minimumQuota, child, label, name); e.Unit == vector.Weight {
				branch.addWeight(i, e.Value)
			}
			if e := declaredEntry(maximumQuota, child, label, name); e.Unit == vector.Weight {
				branch.addMaximumWeight(i, e.Value)
			}
		}
	}

	// Absolute and percentage children take their share first; weights share out what is left.
	minimums := make([][]float64, len(children))
	for c := range children {
		minimums[c] = make([]float64, len(ctx.names))
	}
	for _, weights := range []bool{false, true} {
		for c, child := range children {
			for i, name := range ctx.names {
				e := declaredEntry(minimumQuota, child, label, name)
				if (e.Unit == vector.Weight) != weights {
					continue
				}
				minimums[c][i] = resolve(ctx, minimumQuota, child, i, e, parentQuotas.EffectiveMin.At(i), branch)
			}
		}
	}

	for c, child := range children {
		maximums := make([]float64, len(ctx.names))
		for i, name := range ctx.names {
			e := declaredEntry(maximumQuota, child, label, name)
			maximums[i] = resolve(ctx, maximumQuota, child, i, e, parentQuotas.EffectiveMax.At(i), branch)
			if resources.Greater(minimums[c][i], maximums[i]) {
				ctx.addWarning(Warning{
					QueuePath: child.Path(),
					Label:     label,
					Kind:      MaxLessThanMin,
					Message: fmt.Sprintf(
						"maximum %s of %v is less than the minimum of %v; raised to the minimum",
						name, maximums[i], minimums[c][i],
					),
				})
				maximums[i] = minimums[c][i]
			}
		}
		quotas := queue.ResourceQuotas{
			EffectiveMin: u.factory.Make(minimums[c]...),
			EffectiveMax: u.factory.Make(maximums...),
		}
		ctx.stage(child, label, quotas, u.capacities(ctx, child, label, quotas, parentQuotas, parentCapacities, branch))
	}

	for _, child := range children {
		u.resolveChildren(ctx, child, label)
	}
}

// capacities collapses the quotas of q into fractions of its parent and of the cluster.
// If there is nothing to divide by, e.g. in a label without nodes, the declared fractions are used instead.
func (u *Updater) capacities(
	ctx *UpdateContext,
	q *queue.Queue,
	label string,
	quotas queue.ResourceQuotas,
	parentQuotas queue.ResourceQuotas,
	parentCapacities queue.Capacities,
	branch *BranchContext,
) queue.Capacities {
	cluster := ctx.ClusterResource(label)
	clusterIsInvalid := u.calc.IsInvalidDivisor(cluster, cluster)
	var result queue.Capacities

	if u.calc.IsInvalidDivisor(cluster, parentQuotas.EffectiveMin) {
		result.Capacity = u.declaredFraction(ctx, minimumQuota, q, label, branch)
	} else {
		result.Capacity = u.calc.Divide(cluster, quotas.EffectiveMin, parentQuotas.EffectiveMin)
	}
	if clusterIsInvalid {
		result.AbsoluteCapacity = parentCapacities.AbsoluteCapacity * result.Capacity
	} else {
		result.AbsoluteCapacity = u.calc.Divide(cluster, quotas.EffectiveMin, cluster)
	}

	if u.calc.IsInvalidDivisor(cluster, parentQuotas.EffectiveMax) {
		result.MaximumCapacity = u.declaredFraction(ctx, maximumQuota, q, label, branch)
	} else {
		result.MaximumCapacity = u.calc.Divide(cluster, quotas.EffectiveMax, parentQuotas.EffectiveMax)
	}
	if clusterIsInvalid {
		result.AbsoluteMaximumCapacity = parentCapacities.AbsoluteMaximumCapacity * result.MaximumCapacity
	} else {
		result.AbsoluteMaximumCapacity = u.calc.Divide(cluster, quotas.EffectiveMax, cluster)
	}
	return result
}

// declaredFraction returns the largest share of its parent q declares in any dimension.
func (u *Updater) declaredFraction(ctx *UpdateContext, kind quotaKind, q *queue.Queue, label string, branch *BranchContext) float64 {
	var result float64
	for i, name := range ctx.names {
		if f := declaredFraction(kind, declaredEntry(kind, q, label, name), i, branch); f > result {
			result = f
		}
	}
	return result
}
