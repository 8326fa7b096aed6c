package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	k8sResource "k8s.io/apimachinery/pkg/api/resource"
	"sigs.k8s.io/yaml"

	"github.com/armadaproject/queuecapacity/internal/capacity/queue"
	"github.com/armadaproject/queuecapacity/internal/capacity/snapshot"
	"github.com/armadaproject/queuecapacity/internal/capacity/updater"
)

const (
	FormatTable = "table"
	FormatYaml  = "yaml"
)

// noLabelName is how the unlabeled partition is shown in tables.
const noLabelName = "<no label>"

// Report summarises the committed results of one queue tree.
type Report struct {
	// Usually the configuration file the tree was read from.
	Name     string    `json:"name,omitempty"`
	PassId   string    `json:"passId"`
	Queues   []Row     `json:"queues"`
	Warnings []Warning `json:"warnings,omitempty"`
}

type Row struct {
	Queue                   string                          `json:"queue"`
	Label                   string                          `json:"label"`
	Capacity                float64                         `json:"capacity"`
	AbsoluteCapacity        float64                         `json:"absoluteCapacity"`
	MaximumCapacity         float64                         `json:"maximumCapacity"`
	AbsoluteMaximumCapacity float64                         `json:"absoluteMaximumCapacity"`
	EffectiveMin            map[string]k8sResource.Quantity `json:"effectiveMin"`
	EffectiveMax            map[string]k8sResource.Quantity `json:"effectiveMax"`

	effectiveMinString string
	effectiveMaxString string
}

type Warning struct {
	Queue   string `json:"queue"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Build reads the results committed into the queues of h by the pass that produced result.
// Rows are ordered by queue, parents first, then by label.
func Build(name string, h *queue.Hierarchy, result *updater.Result) *Report {
	r := &Report{
		Name:   name,
		PassId: result.PassId,
		Queues: make([]Row, 0, h.Len()*len(result.Labels)),
	}
	_ = h.Walk(func(q *queue.Queue) error {
		for _, label := range result.Labels {
			quotas, ok := q.Quotas(label)
			if !ok {
				continue
			}
			capacities, _ := q.Capacities(label)
			r.Queues = append(r.Queues, newRow(q.Path(), label, quotas, capacities))
		}
		return nil
	})
	r.Warnings = toWarnings(result.Warnings)
	return r
}

// FromSnapshot builds a report from the rows of a published pass, as returned by snapshot.Store.GetAll.
func FromSnapshot(name string, pass *snapshot.Pass, rows []*snapshot.QueueQuotas) *Report {
	r := &Report{
		Name:     name,
		PassId:   pass.Id,
		Queues:   make([]Row, len(rows)),
		Warnings: toWarnings(pass.Warnings),
	}
	for i, row := range rows {
		r.Queues[i] = newRow(row.QueuePath, row.Label, row.Quotas, row.Capacities)
	}
	return r
}

func newRow(path, label string, quotas queue.ResourceQuotas, capacities queue.Capacities) Row {
	return Row{
		Queue:                   path,
		Label:                   label,
		Capacity:                capacities.Capacity,
		AbsoluteCapacity:        capacities.AbsoluteCapacity,
		MaximumCapacity:         capacities.MaximumCapacity,
		AbsoluteMaximumCapacity: capacities.AbsoluteMaximumCapacity,
		EffectiveMin:            quotas.EffectiveMin.ToQuantities(),
		EffectiveMax:            quotas.EffectiveMax.ToQuantities(),
		effectiveMinString:      quotas.EffectiveMin.String(),
		effectiveMaxString:      quotas.EffectiveMax.String(),
	}
}

func toWarnings(warnings []updater.Warning) []Warning {
	var result []Warning
	for _, w := range warnings {
		result = append(result, Warning{
			Queue:   w.QueuePath,
			Label:   w.Label,
			Kind:    string(w.Kind),
			Message: w.Message,
		})
	}
	return result
}

// Write writes reports to w in format.
func Write(w io.Writer, format string, reports ...*Report) error {
	switch format {
	case FormatTable, "":
		for i, r := range reports {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return errors.WithStack(err)
				}
			}
			if err := r.WriteTable(w); err != nil {
				return err
			}
		}
		return nil
	case FormatYaml:
		b, err := yaml.Marshal(reports)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = w.Write(b)
		return errors.WithStack(err)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

// WriteTable writes r as aligned columns followed by its warnings.
func (r *Report) WriteTable(out io.Writer) error {
	var sb strings.Builder
	if r.Name != "" {
		fmt.Fprintf(&sb, "%s (pass %s)\n", r.Name, r.PassId)
	}
	w := tabwriter.NewWriter(&sb, 1, 1, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUE\tLABEL\tCAPACITY\tABS CAPACITY\tMAX CAPACITY\tABS MAX CAPACITY\tEFFECTIVE MIN\tEFFECTIVE MAX")
	for _, row := range r.Queues {
		label := row.Label
		if label == queue.NoLabel {
			label = noLabelName
		}
		fmt.Fprintf(
			w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Queue, label,
			percentage(row.Capacity), percentage(row.AbsoluteCapacity),
			percentage(row.MaximumCapacity), percentage(row.AbsoluteMaximumCapacity),
			row.effectiveMinString, row.effectiveMaxString,
		)
	}
	if err := w.Flush(); err != nil {
		return errors.WithStack(err)
	}
	for _, warning := range r.Warnings {
		label := warning.Label
		if label == queue.NoLabel {
			label = noLabelName
		}
		fmt.Fprintf(&sb, "WARNING %s queue %s label %s: %s\n", warning.Kind, warning.Queue, label, warning.Message)
	}
	_, err := io.WriteString(out, sb.String())
	return errors.WithStack(err)
}

func percentage(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
