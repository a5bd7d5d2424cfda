package dataset

import "sort"

// Index answers domain/scenario lookups over a loaded split. Matching rows
// keep dataset order so a saved row_index always selects the same record.
type Index struct {
	records []Record
}

// NewIndex builds an index over the given records.
func NewIndex(records []Record) *Index {
	return &Index{records: records}
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Domains returns the unique domains, sorted.
func (ix *Index) Domains() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range ix.records {
		if r.Domain != "" && !seen[r.Domain] {
			seen[r.Domain] = true
			out = append(out, r.Domain)
		}
	}
	sort.Strings(out)
	return out
}

// Scenarios returns the unique scenarios for a domain, sorted.
func (ix *Index) Scenarios(domain string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range ix.records {
		if r.Domain == domain && r.Scenario != "" && !seen[r.Scenario] {
			seen[r.Scenario] = true
			out = append(out, r.Scenario)
		}
	}
	sort.Strings(out)
	return out
}

// Matching returns the records for a (domain, scenario) pair in dataset
// order. row_index selects among them.
func (ix *Index) Matching(domain, scenario string) []Record {
	var out []Record
	for _, r := range ix.records {
		if r.Domain == domain && r.Scenario == scenario {
			out = append(out, r)
		}
	}
	return out
}

// Row returns the rowIdx'th record matching (domain, scenario).
func (ix *Index) Row(domain, scenario string, rowIdx int) (Record, bool) {
	matching := ix.Matching(domain, scenario)
	if rowIdx < 0 || rowIdx >= len(matching) {
		return Record{}, false
	}
	return matching[rowIdx], true
}
