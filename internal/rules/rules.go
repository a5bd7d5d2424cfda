package rules

import (
	"strings"
)

// Rule is an addressable span of a system instruction. Indices are unique
// within a scenario and strictly increasing in creation order.
type Rule struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// List is an ordered, monotonically growing collection of rules. Indices
// are never reused or renumbered; clearing rules means building a new List.
type List struct {
	rules []Rule
	seen  map[string]bool
	next  int
}

// NewList creates an empty rule list.
func NewList() *List {
	return &List{seen: make(map[string]bool)}
}

// FromTexts rebuilds a list from previously saved rule texts, preserving
// their original order and indices.
func FromTexts(texts []string) *List {
	l := NewList()
	for _, t := range texts {
		l.Add(t)
	}
	return l
}

// Add appends text as a new rule with the next unused index and returns
// that index. Empty (after trimming) and exact-duplicate spans are ignored;
// Add returns -1 for them.
func (l *List) Add(text string) int {
	t := strings.TrimSpace(text)
	if t == "" || l.seen[t] {
		return -1
	}
	idx := l.next
	l.rules = append(l.rules, Rule{Index: idx, Text: t})
	l.seen[t] = true
	l.next++
	return idx
}

// AddSegments auto-segments instruction and appends every span, returning
// the indices actually added.
func (l *List) AddSegments(instruction string) []int {
	var added []int
	for _, span := range Segment(instruction) {
		if idx := l.Add(span); idx >= 0 {
			added = append(added, idx)
		}
	}
	return added
}

// AddLines appends each non-empty instruction line as one rule, without
// sentence splitting, returning the indices actually added.
func (l *List) AddLines(instruction string) []int {
	var added []int
	for _, line := range Lines(instruction) {
		if idx := l.Add(line); idx >= 0 {
			added = append(added, idx)
		}
	}
	return added
}

// Rules returns the rules in index order.
func (l *List) Rules() []Rule {
	out := make([]Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// Texts returns the rule texts in index order.
func (l *List) Texts() []string {
	out := make([]string, len(l.rules))
	for i, r := range l.rules {
		out[i] = r.Text
	}
	return out
}

// Len returns the number of rules.
func (l *List) Len() int {
	return len(l.rules)
}

// Resolve returns the text for a rule index.
func (l *List) Resolve(index int) (string, bool) {
	for _, r := range l.rules {
		if r.Index == index {
			return r.Text, true
		}
	}
	return "", false
}

// Segment splits a system instruction into ordered non-empty spans:
// paragraph/line boundaries first, then sentence boundaries within each
// line. "Only discuss loan products. Do not give legal advice." yields
// two spans.
func Segment(instruction string) []string {
	var spans []string
	for _, line := range strings.Split(instruction, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		spans = append(spans, splitSentences(line)...)
	}
	return spans
}

// Lines splits a system instruction into its non-empty trimmed lines,
// without sentence segmentation. This mirrors the quick-add flow where
// annotators pick whole instruction lines as rules.
func Lines(instruction string) []string {
	var lines []string
	for _, line := range strings.Split(instruction, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitSentences splits on ./!/? followed by whitespace. Terminators stay
// attached to their sentence. Abbreviation handling is deliberately not
// attempted; annotators fix odd splits with manual spans.
func splitSentences(line string) []string {
	var out []string
	start := 0
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Consume a run of terminators ("?!", "...").
		end := i
		for end+1 < len(runes) && (runes[end+1] == '.' || runes[end+1] == '!' || runes[end+1] == '?') {
			end++
		}
		if end+1 == len(runes) || runes[end+1] == ' ' || runes[end+1] == '\t' {
			s := strings.TrimSpace(string(runes[start : end+1]))
			if s != "" {
				out = append(out, s)
			}
			start = end + 1
		}
		i = end
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}
