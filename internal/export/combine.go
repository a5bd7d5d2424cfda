package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CombineDir concatenates every CSV in dir into one header+rows set. The
// combined header is the union of all input columns in first-seen order;
// cells absent from an input are filled with the empty string. Rows are
// concatenated as-is: no deduplication, no reordering, no rows dropped.
// A malformed CSV is a hard stop for the batch run.
func CombineDir(dir string) ([]string, [][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no CSV files found in %s", dir)
	}

	var combined []string
	colPos := make(map[string]int)
	type input struct {
		header []string
		rows   [][]string
	}
	var inputs []input

	for _, name := range names {
		header, rows, err := ReadCSV(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("combine %s: %w", name, err)
		}
		for _, col := range header {
			if _, ok := colPos[col]; !ok {
				colPos[col] = len(combined)
				combined = append(combined, col)
			}
		}
		inputs = append(inputs, input{header: header, rows: rows})
	}

	var outRows [][]string
	for _, in := range inputs {
		for _, row := range in.rows {
			out := make([]string, len(combined))
			for i, col := range in.header {
				out[colPos[col]] = row[i]
			}
			outRows = append(outRows, out)
		}
	}
	return combined, outRows, nil
}
