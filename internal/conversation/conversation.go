// Package conversation derives the identifier shared by both sides of a
// direct conversation.
package conversation

import (
	"sort"
	"strings"

	"github.com/adi-253/duochat/internal/apperr"
)

// Delimiter joins the two participants of a conversation id. Usernames may
// not contain it, otherwise two different pairs could map to the same id.
const Delimiter = "::"

// ID returns the conversation id for a pair of participants. The result is
// the same regardless of argument order. ID(a, a) is the id of a user's
// personal notes.
func ID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + Delimiter + pair[1]
}

// Participants splits a conversation id back into its two participants.
func Participants(id string) (string, string, bool) {
	a, b, ok := strings.Cut(id, Delimiter)
	if !ok || a == "" || b == "" || strings.Contains(b, Delimiter) {
		return "", "", false
	}
	return a, b, true
}

// ValidateUsername rejects names that cannot take part in a conversation id.
func ValidateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("missing username")
	}
	if strings.Contains(name, Delimiter) {
		return apperr.Validationf("username %q must not contain %q", name, Delimiter)
	}
	return nil
}

// Resolve returns the conversation id a message between sender and recipient
// belongs to. An empty supplied id is derived; a non-empty one must route to
// the same pair.
func Resolve(sender, recipient, supplied string) (string, error) {
	derived := ID(sender, recipient)
	if supplied == "" || supplied == derived {
		return derived, nil
	}
	return "", apperr.Validationf("conversation %q does not belong to %s and %s", supplied, sender, recipient)
}
