package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/geocatalog/internal/loader"
	"github.com/geocatalog/pkg/catalog"
)

func newLoadCmd(opts *globalOptions) *cobra.Command {
	flags := &loadFlags{}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load a catalog data directory and print the load report",
		Long: `Load every record of a GeoServer data directory into an in-memory catalog.

Global styles, the bundled default styles, workspaces with their stores,
resources, layers, styles and layer groups, and global layer groups are loaded
in that order. Records that cannot be read, decoded or resolved are skipped
and listed in the report; the command only fails when the load itself is
aborted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, flags)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			s.logger.Info("Loading catalog from %s", s.cfg.Catalog.DataDir)
			c, report, err := s.loadCatalog(cmd.Context())
			if report != nil {
				printReport(cmd.OutOrStdout(), c, report)
			}
			return err
		},
	}
	flags.register(loadCmd)
	return loadCmd
}

// printReport writes a human readable summary of a load.
func printReport(out io.Writer, c *catalog.Catalog, report *loader.Report) {
	fmt.Fprintf(out, "Catalog loaded in %s with %d threads\n\n",
		report.Elapsed.Round(time.Millisecond), report.Parallelism)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tOBJECTS")
	for _, kind := range catalog.Kinds {
		fmt.Fprintf(tw, "%s\t%d\n", kind, c.Count(kind))
	}
	fmt.Fprintf(tw, "Total\t%d\n", c.Size())
	tw.Flush()

	if ws := c.DefaultWorkspace(); ws != nil {
		fmt.Fprintf(out, "\nDefault workspace: %s\n", ws.Name)
	}

	if len(report.Phases) > 0 {
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PHASE\tDURATION\tRECORDS")
		for _, t := range report.Phases {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Phase, t.Duration.Round(time.Microsecond), t.Records)
		}
		tw.Flush()
	}

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintf(out, "\nUnreadable records (%d):\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(out, "  - %s: %v\n", f.Path, f.Err)
		}
	}
	if len(report.Dropped) > 0 {
		fmt.Fprintf(out, "\nDropped objects (%d):\n", len(report.Dropped))
		for _, d := range report.Dropped {
			fmt.Fprintf(out, "  - %s [%s]: %v\n", d.Object, d.Phase, d.Err)
		}
	}
	if len(report.Patched) > 0 {
		fmt.Fprintf(out, "\nPatched objects (%d):\n", len(report.Patched))
		for _, p := range report.Patched {
			for _, m := range p.Messages {
				fmt.Fprintf(out, "  - %s\n", m)
			}
		}
	}
}
