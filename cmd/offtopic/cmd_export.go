package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topicbench/offtopic/internal/config"
	"github.com/topicbench/offtopic/internal/export"
)

var (
	exportSavesDir string
	exportOut      string

	combineOut string

	remapMapping string
	remapOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Flatten saved annotation sessions into one CSV",
	Long: `Flatten every save file in the saves directory into a single CSV,
one row per annotation unit. Any malformed save aborts the run so bad
data never reaches the merged deliverable.`,
	RunE: runExport,
}

var combineCmd = &cobra.Command{
	Use:   "combine <csv-dir>",
	Short: "Concatenate a directory of flattened CSVs into one",
	Long: `Concatenate every CSV in a directory into one sheet. The output
header is the union of all input columns in first-seen order; rows
missing a column get an empty cell. Duplicate rows are preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: runCombine,
}

var remapCmd = &cobra.Command{
	Use:   "remap <input.csv>",
	Short: "Rename a CSV's columns to the partner team's schema",
	Long: `Apply a versioned YAML column mapping to a CSV, renaming columns to
the partner team's schema. Without --mapping the built-in default
mapping is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemap,
}

func init() {
	exportCmd.Flags().StringVar(&exportSavesDir, "saves", "", "saves directory (default: OFFTOPIC_SAVE_DIR)")
	exportCmd.Flags().StringVar(&exportOut, "out", "annotations.csv", "output CSV path")
	rootCmd.AddCommand(exportCmd)

	combineCmd.Flags().StringVar(&combineOut, "out", "combined.csv", "output CSV path")
	rootCmd.AddCommand(combineCmd)

	remapCmd.Flags().StringVar(&remapMapping, "mapping", "", "YAML mapping file (default: built-in)")
	remapCmd.Flags().StringVar(&remapOut, "out", "", "output CSV path (default: <input>_remapped.csv)")
	rootCmd.AddCommand(remapCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := exportSavesDir
	if dir == "" {
		dir = config.Load().SaveDir
	}

	rows, err := export.FlattenDir(dir)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(exportOut, export.FlattenHeader, rows); err != nil {
		return err
	}

	fmt.Printf("wrote %d annotation rows to %s\n", len(rows), exportOut)
	return nil
}

func runCombine(cmd *cobra.Command, args []string) error {
	header, rows, err := export.CombineDir(args[0])
	if err != nil {
		return err
	}
	if err := export.WriteCSV(combineOut, header, rows); err != nil {
		return err
	}

	fmt.Printf("combined %d rows (%d columns) into %s\n", len(rows), len(header), combineOut)
	return nil
}

func runRemap(cmd *cobra.Command, args []string) error {
	var mapping export.Mapping
	var err error
	if remapMapping != "" {
		mapping, err = export.LoadMapping(remapMapping)
	} else {
		mapping, err = export.DefaultMapping()
	}
	if err != nil {
		return err
	}

	header, rows, err := export.ReadCSV(args[0])
	if err != nil {
		return err
	}
	outHeader, outRows, err := mapping.Apply(header, rows)
	if err != nil {
		return err
	}

	out := remapOut
	if out == "" {
		out = trimCSVExt(args[0]) + "_remapped.csv"
	}
	if err := export.WriteCSV(out, outHeader, outRows); err != nil {
		return err
	}

	fmt.Printf("remapped %d rows to %s (mapping v%d)\n", len(outRows), out, mapping.Version)
	return nil
}

func trimCSVExt(path string) string {
	if len(path) > 4 && path[len(path)-4:] == ".csv" {
		return path[:len(path)-4]
	}
	return path
}
