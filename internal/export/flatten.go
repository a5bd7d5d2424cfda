package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/topicbench/offtopic/internal/store"
)

// FlattenHeader is the column order of the flattened export: one CSV row
// per annotation unit, carrying its full conversation context.
var FlattenHeader = []string{
	"split",
	"domain",
	"scenario",
	"row_index",
	"bot_turn_index",
	"bot_response",
	"distractor",
	"rule_indices",
	"target_system_instruction",
	"system_instruction",
	"saved_at",
}

// outOfRangeMarker flags a rule index that is not covered by the save
// file's own rule list. Downstream QC filters on this.
func outOfRangeMarker(idx int) string {
	return fmt.Sprintf("[RULE_INDEX_%d_OUT_OF_RANGE]", idx)
}

// resolveRules maps rule indices to their texts from the save file's rule
// list, joined by newlines. Rules always resolve against the file they
// were saved with, never against a re-fetched instruction.
func resolveRules(indices []int, ruleTexts []string) string {
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(ruleTexts) {
			out = append(out, ruleTexts[idx])
		} else {
			out = append(out, outOfRangeMarker(idx))
		}
	}
	return strings.Join(out, "\n")
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, " ")
}

// FlattenFile turns every annotation unit of a save file into one CSV row
// in FlattenHeader order.
func FlattenFile(file store.SaveFile) [][]string {
	rows := make([][]string, 0, len(file.Annotations))
	for _, unit := range file.Annotations {
		savedAt := ""
		if !file.SavedAt.IsZero() {
			savedAt = file.SavedAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			file.Split,
			file.Domain,
			file.Scenario,
			strconv.Itoa(file.RowIndex),
			strconv.Itoa(unit.BotTurnIndex),
			unit.BotResponse,
			unit.Distractor,
			joinIndices(unit.RuleIndices),
			resolveRules(unit.RuleIndices, file.SystemRules),
			file.SystemInstruction,
			savedAt,
		})
	}
	return rows
}

// FlattenDir reads every save file in dir and flattens all annotation
// units into rows. A malformed save file is a hard stop for the batch run;
// there is no skip-and-continue.
func FlattenDir(dir string) ([][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read annotations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no JSON save files found in %s", dir)
	}

	var rows [][]string
	for _, name := range names {
		file, err := store.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("flatten %s: %w", name, err)
		}
		rows = append(rows, FlattenFile(file)...)
	}
	return rows, nil
}

// WriteCSV writes header+rows to path, creating parent directories.
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

// ReadCSV reads a CSV file into its header and rows.
func ReadCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // validated against the header below
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty csv: %s", path)
	}

	header = records[0]
	for i, row := range records[1:] {
		if len(row) != len(header) {
			return nil, nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(row), len(header))
		}
	}
	return header, records[1:], nil
}
