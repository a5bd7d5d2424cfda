package qc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sampleSheet() *Sheet {
	return &Sheet{
		Header: []string{"Scenario", "System Prompt", "notes", "Distractors"},
		Rows: [][]string{
			{"loan_inquiry", "Only discuss loan products.", "n1", `[{"bot turn": "We offer loans.", "distractor": "Should I sue?"}]`},
			{"account_close", "Only discuss closure.", "n2", "just some text"},
		},
	}
}

func TestDiscoverColumns(t *testing.T) {
	s := sampleSheet()
	cols := s.DiscoverColumns()
	if cols.Scenario != 0 {
		t.Errorf("scenario col = %d, want 0", cols.Scenario)
	}
	if cols.System != 1 {
		t.Errorf("system col = %d, want 1", cols.System)
	}
	if cols.Distractor != 3 {
		t.Errorf("distractor col = %d, want 3", cols.Distractor)
	}
}

func TestDiscoverColumns_DistractorFallsBackToLast(t *testing.T) {
	s := &Sheet{Header: []string{"a", "b", "c"}, Rows: nil}
	cols := s.DiscoverColumns()
	if cols.Distractor != 2 {
		t.Errorf("distractor col = %d, want last column 2", cols.Distractor)
	}
	if cols.Scenario != -1 || cols.System != -1 {
		t.Errorf("unguessable columns should be -1, got %+v", cols)
	}
}

func TestEnsureSpanColumn_InsertsAfterDistractor(t *testing.T) {
	s := &Sheet{
		Header: []string{"scenario", "distractors", "extra"},
		Rows:   [][]string{{"x", "d", "e"}},
	}
	idx := s.EnsureSpanColumn(1)
	if idx != 2 {
		t.Errorf("span col = %d, want 2", idx)
	}
	want := []string{"scenario", "distractors", SpanColumn, "extra"}
	if !reflect.DeepEqual(s.Header, want) {
		t.Errorf("header = %v, want %v", s.Header, want)
	}
	if !reflect.DeepEqual(s.Rows[0], []string{"x", "d", "", "e"}) {
		t.Errorf("row = %v", s.Rows[0])
	}

	// Idempotent.
	if again := s.EnsureSpanColumn(1); again != idx {
		t.Errorf("second EnsureSpanColumn = %d, want %d", again, idx)
	}
	if len(s.Header) != 4 {
		t.Errorf("header grew on repeat: %v", s.Header)
	}
}

func TestSetSpan(t *testing.T) {
	s := sampleSheet()
	cols := s.DiscoverColumns()
	spanIdx := s.EnsureSpanColumn(cols.Distractor)

	if err := s.SetSpan(0, spanIdx, "Only discuss loan products."); err != nil {
		t.Fatalf("SetSpan: %v", err)
	}
	if s.Rows[0][spanIdx] != "Only discuss loan products." {
		t.Errorf("span cell = %q", s.Rows[0][spanIdx])
	}
	if err := s.SetSpan(5, spanIdx, "x"); err == nil {
		t.Error("expected error for out-of-range row")
	}
}

func TestParsePairs_JSONList(t *testing.T) {
	pairs := ParsePairs(`[{"bot turn": "We offer loans.", "distractor": "Should I sue?"}, {"bot_turn": "b2", "distractors": "d2"}]`)
	want := []Pair{
		{BotTurn: "We offer loans.", Distractor: "Should I sue?"},
		{BotTurn: "b2", Distractor: "d2"},
	}
	if !reflect.DeepEqual(pairs, want) {
		t.Errorf("pairs = %+v, want %+v", pairs, want)
	}
}

func TestParsePairs_JSONObject(t *testing.T) {
	pairs := ParsePairs(`{"bot": "hello", "distractor": "bye"}`)
	if len(pairs) != 1 || pairs[0].BotTurn != "hello" || pairs[0].Distractor != "bye" {
		t.Errorf("pairs = %+v", pairs)
	}
}

func TestParsePairs_LooseText(t *testing.T) {
	pairs := ParsePairs("Bot Turn: We offer loans.\nDistractor: Should I sue my landlord?")
	if len(pairs) != 1 {
		t.Fatalf("pairs = %+v", pairs)
	}
	if pairs[0].BotTurn != "We offer loans." {
		t.Errorf("bot turn = %q", pairs[0].BotTurn)
	}
	if pairs[0].Distractor != "Should I sue my landlord?" {
		t.Errorf("distractor = %q", pairs[0].Distractor)
	}
}

func TestParsePairs_Fallback(t *testing.T) {
	pairs := ParsePairs("just some text")
	if len(pairs) != 1 || pairs[0].BotTurn != "" || pairs[0].Distractor != "just some text" {
		t.Errorf("pairs = %+v", pairs)
	}
	if pairs := ParsePairs("   "); pairs != nil {
		t.Errorf("blank cell should yield no pairs, got %+v", pairs)
	}
}

func TestSafeSlug(t *testing.T) {
	cases := map[string]string{
		"loan_inquiry":         "loan_inquiry",
		"Group 10 / sample #1": "Group_10_sample_1",
		"  spaced  out  ":      "spaced_out",
		"":                     "row",
		"!!!":                  "row",
	}
	for in, want := range cases {
		if got := SafeSlug(in); got != want {
			t.Errorf("SafeSlug(%q) = %q, want %q", in, got, want)
		}
	}

	if long := SafeSlug(strings.Repeat("a", 100)); len(long) > 60 {
		t.Errorf("slug not truncated: %d chars", len(long))
	}
}

func TestExportRow(t *testing.T) {
	s := sampleSheet()
	cols := s.DiscoverColumns()
	spanIdx := s.EnsureSpanColumn(cols.Distractor)
	if err := s.SetSpan(0, spanIdx, "Only discuss loan products."); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path, err := s.ExportRow(dir, 0, cols)
	if err != nil {
		t.Fatalf("ExportRow: %v", err)
	}
	if filepath.Base(path) != "00000_loan_inquiry.json" {
		t.Errorf("export filename = %q", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec RowExport
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if rec.Scenario != "loan_inquiry" || rec.BrokenSpan != "Only discuss loan products." {
		t.Errorf("record = %+v", rec)
	}
	if rec.AllRowValues["notes"] != "n1" {
		t.Errorf("all_row_values missing notes: %+v", rec.AllRowValues)
	}
	if len(rec.Pairs) != 1 || rec.Pairs[0].BotTurn != "We offer loans." || rec.Pairs[0].Distractor != "Should I sue?" {
		t.Errorf("pairs = %+v, want the parsed distractor cell", rec.Pairs)
	}
}

func TestAnnotatedPath(t *testing.T) {
	if got := AnnotatedPath("samples.csv"); got != "samples_annotated.csv" {
		t.Errorf("AnnotatedPath = %q", got)
	}
	if got := AnnotatedPath("dir/samples"); got != "dir/samples_annotated.csv" {
		t.Errorf("AnnotatedPath without ext = %q", got)
	}
	if got := AnnotatedPath("samples_annotated.csv"); got != "samples_annotated.csv" {
		t.Errorf("AnnotatedPath on annotated copy = %q, want itself", got)
	}
}

func TestSetRowSpan(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "partner.csv")
	if err := sampleSheet().Save(src); err != nil {
		t.Fatalf("Save: %v", err)
	}
	exportDir := filepath.Join(dir, "exports")

	csvPath, exportPath, err := SetRowSpan(src, 0, "Only discuss loan products.", exportDir)
	if err != nil {
		t.Fatalf("SetRowSpan: %v", err)
	}
	if csvPath != filepath.Join(dir, "partner_annotated.csv") {
		t.Errorf("annotated path = %q", csvPath)
	}

	annotated, err := LoadSheet(csvPath)
	if err != nil {
		t.Fatalf("LoadSheet annotated: %v", err)
	}
	spanIdx := annotated.ColumnIndex(SpanColumn)
	if spanIdx != 4 {
		t.Errorf("span col = %d, want 4 (after distractors)", spanIdx)
	}
	if annotated.Rows[0][spanIdx] != "Only discuss loan products." {
		t.Errorf("span cell = %q", annotated.Rows[0][spanIdx])
	}
	if annotated.Rows[1][spanIdx] != "" {
		t.Errorf("untouched row gained a span: %q", annotated.Rows[1][spanIdx])
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var rec RowExport
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if rec.BrokenSpan != "Only discuss loan products." || len(rec.Pairs) != 1 {
		t.Errorf("export record = %+v", rec)
	}

	// A second span lands in the same annotated file, not a new copy.
	csvPath2, _, err := SetRowSpan(csvPath, 1, "Only discuss closure.", exportDir)
	if err != nil {
		t.Fatalf("SetRowSpan on annotated copy: %v", err)
	}
	if csvPath2 != csvPath {
		t.Errorf("second pass wrote %q, want %q", csvPath2, csvPath)
	}
	annotated, err = LoadSheet(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if annotated.Rows[0][spanIdx] != "Only discuss loan products." || annotated.Rows[1][spanIdx] != "Only discuss closure." {
		t.Errorf("accumulated spans = %q, %q", annotated.Rows[0][spanIdx], annotated.Rows[1][spanIdx])
	}

	if _, _, err := SetRowSpan(src, 9, "x", exportDir); err == nil {
		t.Error("expected error for out-of-range row")
	}
}

func TestSheetRoundTrip(t *testing.T) {
	s := sampleSheet()
	path := filepath.Join(t.TempDir(), "sheet.csv")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadSheet(path)
	if err != nil {
		t.Fatalf("LoadSheet: %v", err)
	}
	if !reflect.DeepEqual(loaded.Header, s.Header) {
		t.Errorf("header = %v", loaded.Header)
	}
	if !reflect.DeepEqual(loaded.Rows, s.Rows) {
		t.Errorf("rows = %v", loaded.Rows)
	}
}
