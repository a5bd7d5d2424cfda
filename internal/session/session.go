package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/topicbench/offtopic/internal/dataset"
	"github.com/topicbench/offtopic/internal/rules"
)

// Validation failures are user-visible form states, not fatal conditions.
var (
	ErrEmptyDistractor = errors.New("distractor text is required")
	ErrNoRules         = errors.New("at least one rule must be selected")
	ErrUnknownRule     = errors.New("rule index not extracted for this scenario")
	ErrNotBotTurn      = errors.New("turn index does not reference a bot turn")
)

// Key identifies the conversation a session annotates.
type Key struct {
	Split    string `json:"split"`
	Domain   string `json:"domain"`
	Scenario string `json:"scenario"`
	RowIndex int    `json:"row_index"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/row%d", k.Split, k.Domain, k.Scenario, k.RowIndex)
}

// AnnotationUnit is the atomic labeled record: a distractor attached to a
// specific bot turn, tagged with the rule indices it violates. Immutable
// once appended.
type AnnotationUnit struct {
	ID           uuid.UUID `json:"id"`
	BotTurnIndex int       `json:"bot_turn_index"`
	BotResponse  string    `json:"bot_response"`
	Distractor   string    `json:"distractor"`
	RuleIndices  []int     `json:"rule_indices"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the explicit context for annotating one conversation. It is
// rebuilt wholesale via New on every scenario/row/dialog change; nothing
// survives a switch, so stale cross-scenario state cannot exist.
type Session struct {
	key               Key
	dialog            dataset.DialogSource
	systemInstruction string
	turns             []dataset.Turn
	rules             *rules.List
	units             []AnnotationUnit
}

// New builds a fresh session for a conversation. turns is the decoded
// dialog the annotator is working against.
func New(key Key, dialog dataset.DialogSource, systemInstruction string, turns []dataset.Turn) *Session {
	return &Session{
		key:               key,
		dialog:            dialog,
		systemInstruction: systemInstruction,
		turns:             turns,
		rules:             rules.NewList(),
	}
}

// Restore rebuilds a session from previously saved rule texts and units,
// preserving rule indices.
func Restore(key Key, dialog dataset.DialogSource, systemInstruction string, turns []dataset.Turn, ruleTexts []string, units []AnnotationUnit) *Session {
	s := New(key, dialog, systemInstruction, turns)
	s.rules = rules.FromTexts(ruleTexts)
	s.units = append(s.units, units...)
	return s
}

func (s *Session) Key() Key                     { return s.key }
func (s *Session) Dialog() dataset.DialogSource { return s.dialog }
func (s *Session) SystemInstruction() string    { return s.systemInstruction }

// Turns returns the dialog turns of the session's conversation.
func (s *Session) Turns() []dataset.Turn {
	out := make([]dataset.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Rules returns the extracted rules in index order.
func (s *Session) Rules() []rules.Rule {
	return s.rules.Rules()
}

// RuleTexts returns the rule texts in index order.
func (s *Session) RuleTexts() []string {
	return s.rules.Texts()
}

// SegmentRules auto-segments the system instruction into rules, returning
// the indices added.
func (s *Session) SegmentRules() []int {
	return s.rules.AddSegments(s.systemInstruction)
}

// SegmentRuleLines adds each non-empty instruction line as one rule, for
// instructions whose lines are already rule-sized.
func (s *Session) SegmentRuleLines() []int {
	return s.rules.AddLines(s.systemInstruction)
}

// AddRule appends a manual span as a new rule. Empty and duplicate spans
// return -1.
func (s *Session) AddRule(text string) int {
	return s.rules.Add(text)
}

// AddAnnotation validates and appends a new annotation unit. On failure
// the session is unchanged and the error names the form state to surface.
func (s *Session) AddAnnotation(botTurnIndex int, distractor string, ruleIndices []int) (AnnotationUnit, error) {
	distractor = strings.TrimSpace(distractor)
	if distractor == "" {
		return AnnotationUnit{}, ErrEmptyDistractor
	}

	indices := dedupSorted(ruleIndices)
	if len(indices) == 0 {
		return AnnotationUnit{}, ErrNoRules
	}
	for _, idx := range indices {
		if _, ok := s.rules.Resolve(idx); !ok {
			return AnnotationUnit{}, fmt.Errorf("%w: %d", ErrUnknownRule, idx)
		}
	}

	if botTurnIndex < 0 || botTurnIndex >= len(s.turns) || !s.turns[botTurnIndex].IsBot() {
		return AnnotationUnit{}, fmt.Errorf("%w: %d", ErrNotBotTurn, botTurnIndex)
	}

	unit := AnnotationUnit{
		ID:           uuid.New(),
		BotTurnIndex: botTurnIndex,
		BotResponse:  s.turns[botTurnIndex].Text,
		Distractor:   distractor,
		RuleIndices:  indices,
		CreatedAt:    time.Now().UTC(),
	}
	s.units = append(s.units, unit)
	return unit, nil
}

// RemoveAnnotation deletes a unit by ID, reporting whether it existed.
func (s *Session) RemoveAnnotation(id uuid.UUID) bool {
	for i, u := range s.units {
		if u.ID == id {
			s.units = append(s.units[:i], s.units[i+1:]...)
			return true
		}
	}
	return false
}

// Annotations returns the accumulated units in creation order.
func (s *Session) Annotations() []AnnotationUnit {
	out := make([]AnnotationUnit, len(s.units))
	copy(out, s.units)
	return out
}

func dedupSorted(indices []int) []int {
	seen := make(map[int]bool, len(indices))
	var out []int
	for _, i := range indices {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
