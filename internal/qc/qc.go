// Package qc implements the cross-team quality-control pass: tagging the
// "broken span" of a system prompt for each distractor row of a partner
// CSV, and exporting per-row JSON records for review.
package qc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/topicbench/offtopic/internal/export"
)

// SpanColumn is the annotation column inserted next to the distractor
// column of the partner CSV.
const SpanColumn = "broken_span"

// annotatedSuffix is appended to the stem of the source CSV when saving.
const annotatedSuffix = "_annotated"

// Sheet is a partner CSV loaded for span annotation.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// LoadSheet reads a partner CSV.
func LoadSheet(path string) (*Sheet, error) {
	header, rows, err := export.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	return &Sheet{Header: header, Rows: rows}, nil
}

// Save writes the sheet to path.
func (s *Sheet) Save(path string) error {
	return export.WriteCSV(path, s.Header, s.Rows)
}

// AnnotatedPath returns the sibling path the annotated copy is written to,
// e.g. "samples.csv" -> "samples_annotated.csv". A path that already
// carries the suffix maps to itself, so repeated annotation runs keep
// updating the same file.
func AnnotatedPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".csv"
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if strings.HasSuffix(stem, annotatedSuffix) {
		return stem + ext
	}
	return stem + annotatedSuffix + ext
}

// ColumnIndex returns the position of a column, or -1.
func (s *Sheet) ColumnIndex(name string) int {
	for i, col := range s.Header {
		if col == name {
			return i
		}
	}
	return -1
}

// Columns are the discovered positions of the partner CSV's semantic
// columns.
type Columns struct {
	Scenario   int
	System     int
	Distractor int
}

var (
	scenarioCandidates   = []string{"scenario", "scenarios", "title", "name"}
	systemCandidates     = []string{"system_instruction", "system prompt", "system_prompt", "system rules", "system_rules"}
	distractorCandidates = []string{"distractors", "distractor", "last column", "last_column", "annotation", "annotations"}
)

// DiscoverColumns guesses the scenario, system-prompt, and distractor
// columns by case-insensitive name matching. The distractor column falls
// back to the last column, mirroring how partner sheets are laid out.
// A column that cannot be guessed is -1.
func (s *Sheet) DiscoverColumns() Columns {
	lower := make([]string, len(s.Header))
	for i, col := range s.Header {
		lower[i] = strings.ToLower(col)
	}

	find := func(candidates []string) int {
		for _, cand := range candidates {
			for i, col := range lower {
				if col == cand {
					return i
				}
			}
		}
		return -1
	}

	cols := Columns{
		Scenario:   find(scenarioCandidates),
		System:     find(systemCandidates),
		Distractor: find(distractorCandidates),
	}
	if cols.Distractor < 0 && len(s.Header) > 0 {
		cols.Distractor = len(s.Header) - 1
	}
	return cols
}

// EnsureSpanColumn inserts the broken_span column directly after the
// distractor column if it is not already present, and returns its index.
func (s *Sheet) EnsureSpanColumn(distractorIdx int) int {
	if idx := s.ColumnIndex(SpanColumn); idx >= 0 {
		return idx
	}

	at := len(s.Header)
	if distractorIdx >= 0 && distractorIdx < len(s.Header) {
		at = distractorIdx + 1
	}

	s.Header = append(s.Header, "")
	copy(s.Header[at+1:], s.Header[at:])
	s.Header[at] = SpanColumn

	for r, row := range s.Rows {
		row = append(row, "")
		copy(row[at+1:], row[at:])
		row[at] = ""
		s.Rows[r] = row
	}
	return at
}

// SetSpan writes span into a row's broken_span cell.
func (s *Sheet) SetSpan(rowIdx, spanIdx int, span string) error {
	if rowIdx < 0 || rowIdx >= len(s.Rows) {
		return fmt.Errorf("row %d out of range (%d rows)", rowIdx, len(s.Rows))
	}
	s.Rows[rowIdx][spanIdx] = span
	return nil
}

// Pair is one bot-turn/distractor set extracted from a distractor cell.
type Pair struct {
	BotTurn    string `json:"bot turn"`
	Distractor string `json:"distractor"`
}

var (
	botTurnKeyRe    = regexp.MustCompile(`(?i)bot\s*turn\s*:`)
	distractorKeyRe = regexp.MustCompile(`(?i)distractor\s*:`)
)

// ParsePairs extracts (bot turn, distractor) pairs from a distractor cell.
// Cells may hold a JSON array of objects, a single object, a loose
// "bot turn: ... distractor: ..." text, or bare distractor text.
func ParsePairs(cell string) []Pair {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		if pairs := parseJSONPairs(s); len(pairs) > 0 {
			return pairs
		}
	}

	if botTurnKeyRe.MatchString(s) && distractorKeyRe.MatchString(s) {
		if p, ok := parseLoosePair(s); ok {
			return []Pair{p}
		}
	}

	return []Pair{{Distractor: s}}
}

type rawPair struct {
	BotTurn     string `json:"bot turn"`
	BotTurnAlt  string `json:"bot_turn"`
	Bot         string `json:"bot"`
	Distractor  string `json:"distractor"`
	Distractors string `json:"distractors"`
}

func (rp rawPair) pair() (Pair, bool) {
	p := Pair{BotTurn: rp.BotTurn, Distractor: rp.Distractor}
	if p.BotTurn == "" {
		p.BotTurn = rp.BotTurnAlt
	}
	if p.BotTurn == "" {
		p.BotTurn = rp.Bot
	}
	if p.Distractor == "" {
		p.Distractor = rp.Distractors
	}
	return p, p.BotTurn != "" || p.Distractor != ""
}

func parseJSONPairs(s string) []Pair {
	var list []rawPair
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		var pairs []Pair
		for _, rp := range list {
			if p, ok := rp.pair(); ok {
				pairs = append(pairs, p)
			}
		}
		return pairs
	}

	var one rawPair
	if err := json.Unmarshal([]byte(s), &one); err == nil {
		if p, ok := one.pair(); ok {
			return []Pair{p}
		}
	}
	return nil
}

func parseLoosePair(s string) (Pair, bool) {
	botLoc := botTurnKeyRe.FindStringIndex(s)
	distLoc := distractorKeyRe.FindStringIndex(s)
	if botLoc == nil || distLoc == nil || botLoc[1] > distLoc[0] {
		return Pair{}, false
	}
	return Pair{
		BotTurn:    strings.TrimSpace(s[botLoc[1]:distLoc[0]]),
		Distractor: strings.TrimSpace(s[distLoc[1]:]),
	}, true
}

var slugRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
var slugRunsRe = regexp.MustCompile(`_+`)

// SafeSlug turns arbitrary text into a filename-safe slug, max 60 chars.
func SafeSlug(s string) string {
	base := slugRe.ReplaceAllString(strings.TrimSpace(s), "_")
	base = strings.Trim(slugRunsRe.ReplaceAllString(base, "_"), "_")
	if base == "" {
		return "row"
	}
	if len(base) > 60 {
		base = base[:60]
	}
	return base
}

// RowExport is the per-row JSON record written alongside the span. Pairs
// carries the parsed bot-turn/distractor sets so reviewers see what the
// span was judged against, not just the raw cell.
type RowExport struct {
	RowIndex          int               `json:"row_index"`
	Scenario          string            `json:"scenario"`
	SystemPrompt      string            `json:"system_prompt"`
	DistractorCellRaw string            `json:"distractor_cell_raw"`
	Pairs             []Pair            `json:"pairs"`
	BrokenSpan        string            `json:"broken_span"`
	AllRowValues      map[string]string `json:"all_row_values"`
}

// ExportRow writes one row's annotation record as JSON into dir, named
// {row:05d}_{slug}.json, and returns the path.
func (s *Sheet) ExportRow(dir string, rowIdx int, cols Columns) (string, error) {
	if rowIdx < 0 || rowIdx >= len(s.Rows) {
		return "", fmt.Errorf("row %d out of range (%d rows)", rowIdx, len(s.Rows))
	}
	row := s.Rows[rowIdx]

	cell := func(idx int) string {
		if idx >= 0 && idx < len(row) {
			return row[idx]
		}
		return ""
	}

	all := make(map[string]string, len(s.Header))
	for i, col := range s.Header {
		all[col] = row[i]
	}

	rec := RowExport{
		RowIndex:          rowIdx,
		Scenario:          cell(cols.Scenario),
		SystemPrompt:      cell(cols.System),
		DistractorCellRaw: cell(cols.Distractor),
		Pairs:             ParsePairs(cell(cols.Distractor)),
		BrokenSpan:        cell(s.ColumnIndex(SpanColumn)),
		AllRowValues:      all,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	slug := SafeSlug(rec.Scenario)
	if rec.Scenario == "" {
		slug = fmt.Sprintf("row_%d", rowIdx)
	}
	path := filepath.Join(dir, fmt.Sprintf("%05d_%s.json", rowIdx, slug))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal row export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write row export: %w", err)
	}
	return path, nil
}

// SetRowSpan records the broken span for one row of the sheet at path:
// it writes the span cell, saves the annotated copy next to the original,
// and exports the row's JSON record into exportDir. Returns the annotated
// CSV path and the row export path.
func SetRowSpan(path string, rowIdx int, span, exportDir string) (csvPath, exportPath string, err error) {
	sheet, err := LoadSheet(path)
	if err != nil {
		return "", "", err
	}

	cols := sheet.DiscoverColumns()
	spanIdx := sheet.EnsureSpanColumn(cols.Distractor)
	if err := sheet.SetSpan(rowIdx, spanIdx, span); err != nil {
		return "", "", err
	}

	csvPath = AnnotatedPath(path)
	if err := sheet.Save(csvPath); err != nil {
		return "", "", err
	}

	exportPath, err = sheet.ExportRow(exportDir, rowIdx, cols)
	if err != nil {
		return "", "", err
	}
	return csvPath, exportPath, nil
}
