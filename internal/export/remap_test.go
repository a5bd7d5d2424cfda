package export

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultMapping(t *testing.T) {
	m, err := DefaultMapping()
	if err != nil {
		t.Fatalf("DefaultMapping: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("version = %d", m.Version)
	}
	if m.Passthrough {
		t.Error("default mapping should drop unmapped columns")
	}

	var targets []string
	for _, c := range m.Columns {
		targets = append(targets, c.To)
	}
	want := []string{"scenario", "system prompt", "bot turn", "distractor", "target system instruction"}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("targets = %v, want %v", targets, want)
	}
}

func TestMappingApply_RenamesAndDrops(t *testing.T) {
	m, err := DefaultMapping()
	if err != nil {
		t.Fatal(err)
	}

	rows := [][]string{{
		"train", "banking", "loan_inquiry", "0", "3",
		"We offer loans.", "Should I sue?", "1",
		"Do not give legal advice.", "Only discuss loan products. Do not give legal advice.", "2026-08-20T12:00:00Z",
	}}

	outHeader, outRows, err := m.Apply(FlattenHeader, rows)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	wantHeader := []string{"scenario", "system prompt", "bot turn", "distractor", "target system instruction"}
	if !reflect.DeepEqual(outHeader, wantHeader) {
		t.Errorf("header = %v, want %v", outHeader, wantHeader)
	}
	want := []string{
		"loan_inquiry",
		"Only discuss loan products. Do not give legal advice.",
		"We offer loans.",
		"Should I sue?",
		"Do not give legal advice.",
	}
	if !reflect.DeepEqual(outRows[0], want) {
		t.Errorf("row = %v, want %v", outRows[0], want)
	}
}

func TestMappingApply_Passthrough(t *testing.T) {
	m := Mapping{
		Version: 1,
		Columns: []ColumnMap{{From: "distractor", To: "distractor text"}},
	}
	m.Passthrough = true

	header, rows, err := m.Apply([]string{"domain", "distractor"}, [][]string{{"banking", "d1"}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(header, []string{"distractor text", "domain"}) {
		t.Errorf("header = %v", header)
	}
	if !reflect.DeepEqual(rows[0], []string{"d1", "banking"}) {
		t.Errorf("row = %v", rows[0])
	}
}

func TestMappingApply_MissingSourceColumn(t *testing.T) {
	m := Mapping{Version: 1, Columns: []ColumnMap{{From: "nope", To: "x"}}}
	if _, _, err := m.Apply([]string{"domain"}, nil); err == nil {
		t.Fatal("expected error for missing source column")
	}
}

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	doc := `version: 2
source_schema: a
target_schema: b
passthrough: true
columns:
  - from: distractor
    to: utterance
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if m.Version != 2 || !m.Passthrough || m.Columns[0].To != "utterance" {
		t.Errorf("mapping = %+v", m)
	}
}

func TestMappingValidate(t *testing.T) {
	bad := []Mapping{
		{},
		{Version: 1},
		{Version: 1, Columns: []ColumnMap{{From: "a"}}},
		{Version: 1, Columns: []ColumnMap{{From: "a", To: "x"}, {From: "a", To: "y"}}},
		{Version: 1, Columns: []ColumnMap{{From: "a", To: "x"}, {From: "b", To: "x"}}},
	}
	for i, m := range bad {
		if err := m.validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, m)
		}
	}
}
