package models

import (
	"time"

	"github.com/adi-253/duochat/internal/apperr"
)

// Task is the structured form definition carried by a task message or a
// draft. Its screens and field editors are opaque to the server; only the
// title and the presence of a non-empty screen are checked.
type Task map[string]any

// Title returns the task title, or "" if it has none.
func (t Task) Title() string {
	title, _ := t["title"].(string)
	return title
}

// Validate checks the minimum shape a task needs before it can be sent.
func (t Task) Validate() error {
	if t == nil {
		return apperr.Validation("missing task payload")
	}
	if t.Title() == "" {
		return apperr.Validation("task missing title")
	}
	for _, screen := range asList(t["screens"]) {
		s, ok := screen.(map[string]any)
		if !ok {
			continue
		}
		if len(asList(s["fields"])) > 0 {
			return nil
		}
	}
	return apperr.Validation("task missing screens")
}

// asList accepts slices decoded from JSON as well as typed slices built in Go.
func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	default:
		return nil
	}
}

// TaskDraft is the one in-progress task a user is composing.
type TaskDraft struct {
	ID        string    `json:"_id,omitempty" bson:"_id,omitempty"`
	Owner     string    `json:"owner" bson:"owner"`
	Task      Task      `json:"task" bson:"task"`
	CreatedAt time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}
