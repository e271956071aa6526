package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"varman/internal/exchange"
)

func newImportCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import variables from a JSON document",
		Long: `Import reads a JSON document of variable definitions and reconciles it
against the catalog record by record. Records that fail validation are
reported and skipped without aborting the rest of the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			doc, err := exchange.ReadFile(args[0])
			if err != nil {
				return err
			}
			report, runErr := exchange.NewImporter(cc.catalog).ImportBatch(ctx, doc, overwrite)
			if report != nil {
				printImportReport(cmd, report)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace variables that already exist")
	return cmd
}

func printImportReport(cmd *cobra.Command, report *exchange.ImportReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Import %s\n", report.ID)
	fmt.Fprintf(out, "Created: %d\n", len(report.Created))
	for _, v := range report.Created {
		fmt.Fprintf(out, "  %s (%s)\n", v.Name, v.DataType)
	}
	if len(report.Overwritten) > 0 {
		fmt.Fprintf(out, "Overwritten: %d\n", len(report.Overwritten))
		for _, name := range report.Overwritten {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}
	if len(report.Errors) > 0 {
		fmt.Fprintf(out, "Rejected: %d\n", len(report.Errors))
		for _, re := range report.Errors {
			fmt.Fprintf(out, "  %s\n", re.Variable)
			for _, issue := range re.Errors {
				fmt.Fprintf(out, "    %s: %s\n", issue.Field, issue.Message)
			}
		}
	}
}

func newExportCmd() *cobra.Command {
	var (
		names   []string
		withIDs bool
	)
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export variables to a JSON document",
		Long: `Export writes variable definitions as a JSON document suitable for
re-import. Without --name every variable is exported in name order. A bare
file name (no directory part) lands in the configured export directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			path := args[0]
			if filepath.Base(path) == path {
				path = filepath.Join(cc.cfg.Export.Directory, path)
			}

			shape := exchange.ShapeExternal
			if withIDs {
				shape = exchange.ShapeInternal
			}
			doc, err := exchange.NewExporter(cc.catalog).ExportBatch(ctx, names, shape)
			if err != nil {
				return describeErr(err)
			}
			if err := exchange.WriteFile(path, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d variables to %s.\n", len(doc), path)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&names, "name", "n", nil, "variable to export (repeatable; default all)")
	cmd.Flags().BoolVar(&withIDs, "with-ids", false, "include database ids and entity tags")
	return cmd
}
