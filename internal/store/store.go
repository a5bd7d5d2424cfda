package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/topicbench/offtopic/internal/session"
)

// SaveFile is the persisted form of one conversation's annotation work:
// the identifying key, the instruction it was annotated against, the
// extracted rule texts in index order, and the accumulated units.
type SaveFile struct {
	SavedAt           time.Time                `json:"saved_at"`
	Split             string                   `json:"split"`
	Domain            string                   `json:"domain"`
	Scenario          string                   `json:"scenario"`
	RowIndex          int                      `json:"row_index"`
	Dialog            string                   `json:"dialog"`
	SystemInstruction string                   `json:"system_instruction"`
	SystemRules       []string                 `json:"system_rules"`
	Annotations       []session.AnnotationUnit `json:"annotations"`
}

// Key returns the session key the file belongs to.
func (f SaveFile) Key() session.Key {
	return session.Key{Split: f.Split, Domain: f.Domain, Scenario: f.Scenario, RowIndex: f.RowIndex}
}

// Store reads and writes save files in a fixed directory. One file per
// (split, domain, scenario, row_index); saving is a whole-file overwrite,
// so the file is always the canonical state of that conversation's work.
type Store struct {
	dir string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the save directory.
func (s *Store) Dir() string {
	return s.dir
}

// Filename returns the deterministic save filename for a key. Slashes and
// spaces in the identifiers become underscores so the name stays a single
// path element.
func Filename(key session.Key) string {
	return fmt.Sprintf("%s_%s_%s_row%d.json",
		sanitize(key.Split), sanitize(key.Domain), sanitize(key.Scenario), key.RowIndex)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// Save snapshots a session to its save file, stamping saved_at.
func (s *Store) Save(sess *session.Session) (string, error) {
	key := sess.Key()
	file := SaveFile{
		SavedAt:           time.Now().UTC(),
		Split:             key.Split,
		Domain:            key.Domain,
		Scenario:          key.Scenario,
		RowIndex:          key.RowIndex,
		Dialog:            string(sess.Dialog()),
		SystemInstruction: sess.SystemInstruction(),
		SystemRules:       sess.RuleTexts(),
		Annotations:       sess.Annotations(),
	}
	return s.Write(file)
}

// Write persists a save file, creating the directory if needed.
func (s *Store) Write(file SaveFile) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal save: %w", err)
	}

	path := filepath.Join(s.dir, Filename(file.Key()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write save: %w", err)
	}
	return path, nil
}

// Load reads the save file for a key. A missing file returns os.ErrNotExist.
func (s *Store) Load(key session.Key) (SaveFile, error) {
	return ReadFile(filepath.Join(s.dir, Filename(key)))
}

// ReadFile parses a save file from an arbitrary path.
func ReadFile(path string) (SaveFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SaveFile{}, err
	}
	var file SaveFile
	if err := json.Unmarshal(data, &file); err != nil {
		return SaveFile{}, fmt.Errorf("parse save %s: %w", filepath.Base(path), err)
	}
	return file, nil
}

// List returns the save filenames in the store directory, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read save dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a save file by name. The name must be a bare filename
// from List, not a path.
func (s *Store) Delete(name string) error {
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".json") {
		return fmt.Errorf("invalid save name: %q", name)
	}
	return os.Remove(filepath.Join(s.dir, name))
}
