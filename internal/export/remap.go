package export

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_mapping.yaml
var defaultMappingYAML []byte

// Mapping is a declared, versioned column-renaming document between two
// teams' CSV schemas. Unmapped columns are dropped unless passthrough is
// set, in which case they are carried through unchanged.
type Mapping struct {
	Version      int         `yaml:"version"`
	SourceSchema string      `yaml:"source_schema"`
	TargetSchema string      `yaml:"target_schema"`
	Passthrough  bool        `yaml:"passthrough"`
	Columns      []ColumnMap `yaml:"columns"`
}

// ColumnMap renames one source column.
type ColumnMap struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// DefaultMapping returns the embedded mapping to the partner team's
// guideline format.
func DefaultMapping() (Mapping, error) {
	return parseMapping(defaultMappingYAML)
}

// LoadMapping reads a mapping document from path.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mapping{}, fmt.Errorf("read mapping: %w", err)
	}
	return parseMapping(data)
}

func parseMapping(data []byte) (Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Mapping{}, fmt.Errorf("parse mapping: %w", err)
	}
	if err := m.validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

func (m Mapping) validate() error {
	if m.Version < 1 {
		return fmt.Errorf("mapping version is required")
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("mapping declares no columns")
	}
	fromSeen := make(map[string]bool)
	toSeen := make(map[string]bool)
	for _, c := range m.Columns {
		if c.From == "" || c.To == "" {
			return fmt.Errorf("mapping column needs both from and to: %+v", c)
		}
		if fromSeen[c.From] {
			return fmt.Errorf("duplicate source column in mapping: %q", c.From)
		}
		if toSeen[c.To] {
			return fmt.Errorf("duplicate target column in mapping: %q", c.To)
		}
		fromSeen[c.From] = true
		toSeen[c.To] = true
	}
	return nil
}

// Apply rewrites header+rows into the target schema. Mapped columns are
// renamed and ordered as declared; a declared column missing from the
// input is an error so schema drift surfaces instead of silently emitting
// blanks.
func (m Mapping) Apply(header []string, rows [][]string) ([]string, [][]string, error) {
	pos := make(map[string]int, len(header))
	for i, col := range header {
		pos[col] = i
	}

	var outHeader []string
	var srcIdx []int
	mapped := make(map[int]bool)

	for _, c := range m.Columns {
		i, ok := pos[c.From]
		if !ok {
			return nil, nil, fmt.Errorf("mapping source column %q not in input header", c.From)
		}
		outHeader = append(outHeader, c.To)
		srcIdx = append(srcIdx, i)
		mapped[i] = true
	}

	if m.Passthrough {
		for i, col := range header {
			if !mapped[i] {
				outHeader = append(outHeader, col)
				srcIdx = append(srcIdx, i)
			}
		}
	}

	outRows := make([][]string, len(rows))
	for r, row := range rows {
		out := make([]string, len(srcIdx))
		for j, i := range srcIdx {
			out[j] = row[i]
		}
		outRows[r] = out
	}
	return outHeader, outRows, nil
}
