package dataset

import (
	"encoding/json"
	"strings"
)

// rawTurn accepts the role/content key aliases seen across dataset dumps.
type rawTurn struct {
	Role    string `json:"role"`
	Speaker string `json:"speaker"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (rt rawTurn) role() string {
	for _, r := range []string{rt.Role, rt.Speaker, rt.Author} {
		if r != "" {
			return strings.ToLower(r)
		}
	}
	return ""
}

func (rt rawTurn) text() string {
	for _, t := range []string{rt.Content, rt.Text, rt.Message} {
		if t != "" {
			return t
		}
	}
	return ""
}

// rawDialog accepts dialogs wrapped in an object under a well-known key.
type rawDialog struct {
	Messages json.RawMessage `json:"messages"`
	Turns    json.RawMessage `json:"turns"`
	Dialog   json.RawMessage `json:"dialog"`
}

// DecodeTurns decodes a dialog cell into ordered turns. The cell may be a
// JSON array of role/content objects, an object wrapping such an array, a
// raw string list, a JSON-encoded string containing any of those, or plain
// text split into lines. Unrecognized shapes decode to nil rather than
// erroring; a missing dialog is a UI-visible condition, not a failure.
func DecodeTurns(cell json.RawMessage) []Turn {
	if len(cell) == 0 {
		return nil
	}

	// JSON-encoded string: unwrap, then retry as JSON or fall back to lines.
	var s string
	if err := json.Unmarshal(cell, &s); err == nil {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			if turns := DecodeTurns(json.RawMessage(trimmed)); turns != nil {
				return turns
			}
		}
		return linesAsTurns(s)
	}

	// Array of turn objects or raw strings.
	var items []json.RawMessage
	if err := json.Unmarshal(cell, &items); err == nil {
		return decodeItems(items)
	}

	// Object wrapping the array.
	var wrapped rawDialog
	if err := json.Unmarshal(cell, &wrapped); err == nil {
		for _, inner := range []json.RawMessage{wrapped.Messages, wrapped.Turns, wrapped.Dialog} {
			if len(inner) > 0 {
				return DecodeTurns(inner)
			}
		}
	}

	return nil
}

func decodeItems(items []json.RawMessage) []Turn {
	var turns []Turn
	for _, item := range items {
		var rt rawTurn
		if err := json.Unmarshal(item, &rt); err == nil {
			if role, text := rt.role(), rt.text(); role != "" && text != "" {
				turns = append(turns, Turn{Role: role, Text: text})
				continue
			}
		}
		// Raw string entry: keep it with an unknown role so indices still
		// line up with the source dialog.
		var s string
		if err := json.Unmarshal(item, &s); err == nil && strings.TrimSpace(s) != "" {
			turns = append(turns, Turn{Role: "unknown", Text: s})
		}
	}
	return turns
}

func linesAsTurns(text string) []Turn {
	var turns []Turn
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		turns = append(turns, Turn{Role: "unknown", Text: line})
	}
	return turns
}

// BotTurnIndices returns the positions of bot-authored turns.
func BotTurnIndices(turns []Turn) []int {
	var idx []int
	for i, t := range turns {
		if t.IsBot() {
			idx = append(idx, i)
		}
	}
	return idx
}
