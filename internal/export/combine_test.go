package export

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeCSV(t *testing.T, dir, name string, header []string, rows [][]string) {
	t.Helper()
	if err := WriteCSV(filepath.Join(dir, name), header, rows); err != nil {
		t.Fatal(err)
	}
}

func TestCombineDir_Concatenates(t *testing.T) {
	dir := t.TempDir()
	header := []string{"domain", "scenario", "distractor"}
	writeCSV(t, dir, "a.csv", header, [][]string{
		{"banking", "loan_inquiry", "d1"},
		{"banking", "loan_inquiry", "d2"},
	})
	writeCSV(t, dir, "b.csv", header, [][]string{
		{"travel", "booking", "d3"},
	})

	outHeader, rows, err := CombineDir(dir)
	if err != nil {
		t.Fatalf("CombineDir: %v", err)
	}
	if !reflect.DeepEqual(outHeader, header) {
		t.Errorf("header = %v", outHeader)
	}
	if len(rows) != 3 {
		t.Errorf("combined row count = %d, want 3", len(rows))
	}
	if rows[2][0] != "travel" {
		t.Errorf("file order not preserved: %v", rows[2])
	}
}

func TestCombineDir_UnionColumns(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", []string{"domain", "distractor"}, [][]string{{"banking", "d1"}})
	writeCSV(t, dir, "b.csv", []string{"distractor", "broken_span"}, [][]string{{"d2", "span text"}})

	header, rows, err := CombineDir(dir)
	if err != nil {
		t.Fatalf("CombineDir: %v", err)
	}

	want := []string{"domain", "distractor", "broken_span"}
	if !reflect.DeepEqual(header, want) {
		t.Errorf("union header = %v, want %v (first-seen order)", header, want)
	}
	if !reflect.DeepEqual(rows[0], []string{"banking", "d1", ""}) {
		t.Errorf("row 0 = %v", rows[0])
	}
	if !reflect.DeepEqual(rows[1], []string{"", "d2", "span text"}) {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestCombineDir_DuplicateRowsPreserved(t *testing.T) {
	dir := t.TempDir()
	header := []string{"distractor"}
	writeCSV(t, dir, "a.csv", header, [][]string{{"same"}})
	writeCSV(t, dir, "b.csv", header, [][]string{{"same"}})

	_, rows, err := CombineDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("duplicates must be preserved, got %d rows", len(rows))
	}
}

func TestCombineDir_MalformedIsHardStop(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", []string{"c1", "c2"}, [][]string{{"x", "y"}})
	// Field count mismatch against its own header.
	if err := os.WriteFile(filepath.Join(dir, "b.csv"), []byte("c1,c2\nonly-one\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := CombineDir(dir); err == nil {
		t.Fatal("expected hard stop for malformed CSV")
	}
}

func TestCombineDir_Empty(t *testing.T) {
	if _, _, err := CombineDir(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without CSVs")
	}
}
