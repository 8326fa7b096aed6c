package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Unit says how the value of a capacity vector entry is interpreted.
type Unit int

const (
	// Percentage of the parent's resource. The zero value, as plain numbers have always meant a percentage.
	Percentage Unit = iota
	// Absolute amount of the resource.
	Absolute
	// Weight relative to the weights of the siblings, shared out of whatever their parent has left.
	Weight
)

func (u Unit) String() string {
	switch u {
	case Percentage:
		return "PERCENTAGE"
	case Absolute:
		return "ABSOLUTE"
	case Weight:
		return "WEIGHT"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

func (u Unit) MarshalText() ([]byte, error) {
	switch u {
	case Percentage, Absolute, Weight:
		return []byte(u.String()), nil
	default:
		return nil, errors.Errorf("unknown capacity unit %d", int(u))
	}
}

func (u *Unit) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PERCENTAGE":
		*u = Percentage
	case "ABSOLUTE":
		*u = Absolute
	case "WEIGHT":
		*u = Weight
	default:
		return errors.Errorf("unknown capacity unit %q", string(text))
	}
	return nil
}

// Entry is the declaration of a single resource dimension.
type Entry struct {
	Unit  Unit
	Value float64
}

func Percent(value float64) Entry {
	return Entry{Unit: Percentage, Value: value}
}

func Abs(value float64) Entry {
	return Entry{Unit: Absolute, Value: value}
}

func Weighted(value float64) Entry {
	return Entry{Unit: Weight, Value: value}
}

func (e Entry) String() string {
	value := strconv.FormatFloat(e.Value, 'f', -1, 64)
	switch e.Unit {
	case Percentage:
		return value + "%"
	case Weight:
		return value + "w"
	default:
		return value
	}
}

// CapacityVector declares a queue's capacity per resource dimension.
// Dimensions keep the order they were declared in.
// A CapacityVector is immutable; With returns a modified copy.
type CapacityVector struct {
	names   []string
	entries map[string]Entry
}

// Uniform declares the same entry for every named dimension.
func Uniform(names []string, entry Entry) CapacityVector {
	v := CapacityVector{}
	for _, name := range names {
		v = v.With(name, entry)
	}
	return v
}

// With returns a copy of v with the named dimension declared as entry.
// Redeclaring a dimension keeps its original position.
func (v CapacityVector) With(name string, entry Entry) CapacityVector {
	names := slices.Clone(v.names)
	if _, exists := v.entries[name]; !exists {
		names = append(names, name)
	}
	entries := make(map[string]Entry, len(v.entries)+1)
	for k, e := range v.entries {
		entries[k] = e
	}
	entries[name] = entry
	return CapacityVector{names: names, entries: entries}
}

func (v CapacityVector) Get(name string) (Entry, bool) {
	e, ok := v.entries[name]
	return e, ok
}

// Names returns the declared dimensions in declaration order.
func (v CapacityVector) Names() []string {
	return slices.Clone(v.names)
}

func (v CapacityVector) Len() int {
	return len(v.names)
}

func (v CapacityVector) IsEmpty() bool {
	return len(v.names) == 0
}

// HasUnit returns true if any dimension is declared in unit u.
func (v CapacityVector) HasUnit(u Unit) bool {
	for _, e := range v.entries {
		if e.Unit == u {
			return true
		}
	}
	return false
}

func (v CapacityVector) Equal(other CapacityVector) bool {
	if !slices.Equal(v.names, other.names) {
		return false
	}
	for name, e := range v.entries {
		if other.entries[name] != e {
			return false
		}
	}
	return true
}

// String renders v in the bracketed form accepted by Parser, e.g. "[memory=50%, vcores=3w, gpu=2]".
func (v CapacityVector) String() string {
	parts := make([]string, len(v.names))
	for i, name := range v.names {
		parts[i] = name + "=" + v.entries[name].String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
