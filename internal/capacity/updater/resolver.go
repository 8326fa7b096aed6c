package updater

import (
	"fmt"
	"math"

	"github.com/armadaproject/queuecapacity/internal/capacity/queue"
	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
	"github.com/armadaproject/queuecapacity/internal/capacity/vector"
)

// quotaKind selects which of a queue's declarations is resolved.
type quotaKind int

const (
	minimumQuota quotaKind = iota
	maximumQuota
)

func (k quotaKind) String() string {
	if k == maximumQuota {
		return "maximum"
	}
	return "minimum"
}

// declaredEntry returns how q declares dimension name in label.
// An undeclared minimum is 0% and an undeclared maximum is 100% of the parent.
func declaredEntry(kind quotaKind, q *queue.Queue, label, name string) vector.Entry {
	if kind == maximumQuota {
		if e, ok := q.MaximumCapacityVector(label).Get(name); ok {
			return e
		}
		return vector.Percent(100)
	}
	if e, ok := q.CapacityVector(label).Get(name); ok {
		return e
	}
	return vector.Percent(0)
}

// resolve returns the effective resource of q in dimension index of the branch's label, given the
// parent's effective resource of that dimension.
//
// Minimum absolute and percentage declarations are granted from the branch in the order they are resolved,
// so callers must resolve all of them before any minimum weight declaration of the same branch.
// Maximum declarations never compete with their siblings.
func resolve(
	ctx *UpdateContext,
	kind quotaKind,
	q *queue.Queue,
	index int,
	entry vector.Entry,
	parentResource float64,
	branch *BranchContext,
) float64 {
	name := ctx.names[index]
	switch entry.Unit {
	case vector.Absolute:
		amount := math.Max(entry.Value, 0)
		if resources.Greater(amount, parentResource) {
			ctx.addWarning(Warning{
				QueuePath: q.Path(),
				Label:     branch.Label(),
				Kind:      ExceedsParent,
				Message: fmt.Sprintf(
					"%s %s of %v exceeds the parent's %v; clamped to the parent",
					kind, name, entry.Value, parentResource,
				),
			})
			amount = parentResource
		}
		if kind == minimumQuota {
			return consume(ctx, branch, index, amount)
		}
		return amount
	case vector.Percentage:
		amount := parentResource * entry.Value / 100
		if kind == minimumQuota {
			return consume(ctx, branch, index, amount)
		}
		return amount
	case vector.Weight:
		if kind == minimumQuota {
			sum := branch.SumOfWeights(index)
			if sum == 0 {
				reportNoWeights(ctx, branch, branch.noWeights, kind, index)
				return 0
			}
			return entry.Value / sum * branch.remaining(index)
		}
		sum := branch.SumOfMaximumWeights(index)
		if sum == 0 {
			reportNoWeights(ctx, branch, branch.noMaximumWeights, kind, index)
			return 0
		}
		return entry.Value / sum * parentResource
	default:
		panic(fmt.Sprintf("unknown capacity unit %v", entry.Unit))
	}
}

// consume grants amount from the branch, clamping it to what absolute and percentage siblings resolved
// earlier left over.
func consume(ctx *UpdateContext, branch *BranchContext, index int, amount float64) float64 {
	granted, clamped := branch.consume(index, amount)
	if clamped && !branch.overSubscribed[index] {
		branch.overSubscribed[index] = true
		ctx.addWarning(Warning{
			QueuePath: branch.ParentPath(),
			Label:     branch.Label(),
			Kind:      CapacityOver100,
			Message: fmt.Sprintf(
				"absolute and percentage capacities of the children exceed the %v %s available; later children received the remainder",
				branch.Available().At(index), ctx.names[index],
			),
		})
	}
	return granted
}

func reportNoWeights(ctx *UpdateContext, branch *BranchContext, reported []bool, kind quotaKind, index int) {
	if reported[index] {
		return
	}
	reported[index] = true
	ctx.addWarning(Warning{
		QueuePath: branch.ParentPath(),
		Label:     branch.Label(),
		Kind:      NoWeightSiblings,
		Message: fmt.Sprintf(
			"children declare %s %s by weight but their weights sum to zero; they receive nothing",
			kind, ctx.names[index],
		),
	})
}

// declaredFraction returns the share of its parent entry declares without looking at any resource amounts.
// It is used for capacities when the parent has no resource to divide by.
func declaredFraction(kind quotaKind, entry vector.Entry, index int, branch *BranchContext) float64 {
	switch entry.Unit {
	case vector.Absolute:
		return 0
	case vector.Percentage:
		return entry.Value / 100
	case vector.Weight:
		sum := branch.SumOfWeights(index)
		if kind == maximumQuota {
			sum = branch.SumOfMaximumWeights(index)
		}
		if sum == 0 {
			return 0
		}
		return entry.Value / sum
	default:
		panic(fmt.Sprintf("unknown capacity unit %v", entry.Unit))
	}
}
