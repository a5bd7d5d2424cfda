package dataset

import "encoding/json"

// Record is one row of the topic-control dataset: a scenario within a
// domain, its governing system instruction, and two dialog variants.
type Record struct {
	Split                       string          `json:"split"`
	Domain                      string          `json:"domain"`
	Scenario                    string          `json:"scenario"`
	SystemInstruction           string          `json:"system_instruction"`
	Conversation                json.RawMessage `json:"conversation"`
	ConversationWithDistractors json.RawMessage `json:"conversation_with_distractors"`
	Distractors                 json.RawMessage `json:"distractors"`
}

// DialogSource names which dialog variant of a record is being annotated.
type DialogSource string

const (
	DialogClean           DialogSource = "conversation"
	DialogWithDistractors DialogSource = "conversation_with_distractors"
)

// Turn is a single utterance in a dialog.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// IsBot reports whether the turn was authored by the assistant side.
func (t Turn) IsBot() bool {
	switch t.Role {
	case "assistant", "bot", "system_response":
		return true
	}
	return false
}

// Dialog returns the raw dialog cell for the requested source.
func (r Record) Dialog(src DialogSource) json.RawMessage {
	if src == DialogWithDistractors {
		return r.ConversationWithDistractors
	}
	return r.Conversation
}
