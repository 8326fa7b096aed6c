package updater

import "fmt"

// WarningKind identifies an inconsistency found while computing capacities.
type WarningKind string

const (
	// An absolute declaration exceeds the parent's resource and was clamped to it.
	ExceedsParent WarningKind = "EXCEEDS_PARENT"
	// Absolute and percentage declarations of siblings sum to more than their parent's resource.
	// Siblings were served in declaration order until nothing was left.
	CapacityOver100 WarningKind = "CAPACITY_OVER_100"
	// Siblings are declared by weight but their weights sum to zero, so all of them received nothing.
	NoWeightSiblings WarningKind = "NO_WEIGHT_SIBLINGS"
	// The maximum resource resolved below the minimum resource and was raised to it.
	MaxLessThanMin WarningKind = "MAX_LESS_THAN_MIN"
)

// Warning records an inconsistency in the capacity configuration. Warnings never stop a pass.
type Warning struct {
	QueuePath string
	Label     string
	Kind      WarningKind
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s queue=%s label=%q: %s", w.Kind, w.QueuePath, w.Label, w.Message)
}
