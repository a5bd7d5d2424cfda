package dataset

import (
	"reflect"
	"testing"
)

func testRecords() []Record {
	return []Record{
		{Domain: "banking", Scenario: "loan_inquiry", SystemInstruction: "Only discuss loan products."},
		{Domain: "banking", Scenario: "loan_inquiry", SystemInstruction: "Only discuss loan products. Second row."},
		{Domain: "banking", Scenario: "account_close", SystemInstruction: "Only discuss account closure."},
		{Domain: "travel", Scenario: "booking", SystemInstruction: "Only discuss flight bookings."},
	}
}

func TestIndex_Domains(t *testing.T) {
	ix := NewIndex(testRecords())
	want := []string{"banking", "travel"}
	if got := ix.Domains(); !reflect.DeepEqual(got, want) {
		t.Errorf("Domains = %v, want %v", got, want)
	}
}

func TestIndex_Scenarios(t *testing.T) {
	ix := NewIndex(testRecords())
	want := []string{"account_close", "loan_inquiry"}
	if got := ix.Scenarios("banking"); !reflect.DeepEqual(got, want) {
		t.Errorf("Scenarios(banking) = %v, want %v", got, want)
	}
	if got := ix.Scenarios("nonexistent"); len(got) != 0 {
		t.Errorf("Scenarios(nonexistent) = %v, want empty", got)
	}
}

func TestIndex_MatchingPreservesOrder(t *testing.T) {
	ix := NewIndex(testRecords())
	matching := ix.Matching("banking", "loan_inquiry")
	if len(matching) != 2 {
		t.Fatalf("expected 2 matching rows, got %d", len(matching))
	}
	if matching[1].SystemInstruction != "Only discuss loan products. Second row." {
		t.Errorf("row order not preserved: %q", matching[1].SystemInstruction)
	}
}

func TestIndex_Row(t *testing.T) {
	ix := NewIndex(testRecords())

	rec, ok := ix.Row("banking", "loan_inquiry", 1)
	if !ok {
		t.Fatal("Row(1) should exist")
	}
	if rec.SystemInstruction != "Only discuss loan products. Second row." {
		t.Errorf("Row(1) = %q", rec.SystemInstruction)
	}

	if _, ok := ix.Row("banking", "loan_inquiry", 2); ok {
		t.Error("Row(2) should be out of range")
	}
	if _, ok := ix.Row("banking", "loan_inquiry", -1); ok {
		t.Error("Row(-1) should be out of range")
	}
}
