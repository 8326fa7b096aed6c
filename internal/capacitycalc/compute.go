package capacitycalc

import (
	"io"

	"github.com/armadaproject/queuecapacity/internal/capacity/report"
	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
	"github.com/armadaproject/queuecapacity/internal/common/logging"
)

type Options struct {
	// Glob pattern matching the configuration files to compute, e.g. "config/**/*.yaml".
	ConfigPattern string
	// report.FormatTable or report.FormatYaml.
	OutputFormat string
	Out          io.Writer
	// If true, the standard logger is configured from the first configuration file.
	// Logging and metrics settings are process wide, so those of the remaining files are ignored.
	ConfigureLogging bool
}

// Compute runs one pass over every queue tree matched by opts.ConfigPattern and writes a report per tree.
// Trees are independent and are computed in parallel.
func Compute(ctx *calccontext.Context, opts Options) error {
	filePaths, err := ConfigFilesFromPattern(opts.ConfigPattern)
	if err != nil {
		return err
	}
	trees := make([]*Tree, len(filePaths))
	for i, filePath := range filePaths {
		c, err := LoadConfigurationFile(filePath)
		if err != nil {
			return err
		}
		if i == 0 && opts.ConfigureLogging {
			if err := logging.ConfigureLogging(c.Logging); err != nil {
				return err
			}
		}
		if trees[i], err = NewTree(filePath, c, nil); err != nil {
			return err
		}
	}

	reports := make([]*report.Report, len(trees))
	g, ctx := calccontext.ErrGroup(ctx)
	for i, tree := range trees {
		i, tree := i, tree
		g.Go(func() error {
			result, err := tree.Compute(calccontext.WithLogField(ctx, "config", tree.Name))
			if err != nil {
				return err
			}
			reports[i] = report.Build(tree.Name, tree.Hierarchy, result)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return report.Write(opts.Out, opts.OutputFormat, reports...)
}
