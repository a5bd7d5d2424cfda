package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/topicbench/offtopic/internal/qc"
)

var (
	qcExportDir  string
	qcSpanSetOut string
)

var qcCmd = &cobra.Command{
	Use:   "qc",
	Short: "Quality-control a partner team's annotation sheet",
}

var qcSpanCmd = &cobra.Command{
	Use:   "span <sheet.csv>",
	Short: "Add the broken_span column to a partner sheet",
	Long: `Insert the broken_span column directly after the distractor column
and write the result next to the input with an _annotated suffix. The
span column records which part of the bot turn each distractor broke;
running twice is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runQCSpan,
}

var qcSpanSetCmd = &cobra.Command{
	Use:   "set <sheet.csv> <row> <span-text>",
	Short: "Record the broken span for one sheet row",
	Long: `Write the broken span for one row, save the annotated CSV next to the
original, and export that row's JSON record. Pointing at the annotated
CSV itself updates it in place.`,
	Args: cobra.ExactArgs(3),
	RunE: runQCSpanSet,
}

var qcExportCmd = &cobra.Command{
	Use:   "export <sheet.csv>",
	Short: "Export each sheet row as a per-row JSON record",
	Args:  cobra.ExactArgs(1),
	RunE:  runQCExport,
}

func init() {
	qcSpanSetCmd.Flags().StringVar(&qcSpanSetOut, "export-dir", "qc_exports", "row export directory")
	qcSpanCmd.AddCommand(qcSpanSetCmd)
	qcExportCmd.Flags().StringVar(&qcExportDir, "out", "qc_exports", "output directory")
	qcCmd.AddCommand(qcSpanCmd)
	qcCmd.AddCommand(qcExportCmd)
	rootCmd.AddCommand(qcCmd)
}

func runQCSpan(cmd *cobra.Command, args []string) error {
	sheet, err := qc.LoadSheet(args[0])
	if err != nil {
		return err
	}

	cols := sheet.DiscoverColumns()
	sheet.EnsureSpanColumn(cols.Distractor)

	out := qc.AnnotatedPath(args[0])
	if err := sheet.Save(out); err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d rows, span column after %q)\n",
		out, len(sheet.Rows), sheet.Header[cols.Distractor])
	return nil
}

func runQCSpanSet(cmd *cobra.Command, args []string) error {
	row, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("row must be an integer: %q", args[1])
	}

	csvPath, exportPath, err := qc.SetRowSpan(args[0], row, args[2], qcSpanSetOut)
	if err != nil {
		return err
	}

	fmt.Printf("wrote span for row %d to %s, exported %s\n", row, csvPath, exportPath)
	return nil
}

func runQCExport(cmd *cobra.Command, args []string) error {
	sheet, err := qc.LoadSheet(args[0])
	if err != nil {
		return err
	}
	cols := sheet.DiscoverColumns()

	for i := range sheet.Rows {
		if _, err := sheet.ExportRow(qcExportDir, i, cols); err != nil {
			return fmt.Errorf("export row %d: %w", i, err)
		}
	}

	fmt.Printf("exported %d rows to %s\n", len(sheet.Rows), qcExportDir)
	return nil
}
