package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/apperr"
)

func TestIDIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"Bob", "alice"},
		{"zed", "amy"},
		{"same", "same"},
		{"a", "ab"},
	}
	for _, p := range pairs {
		assert.Equal(t, ID(p[0], p[1]), ID(p[1], p[0]), "pair %v", p)
	}
	assert.Equal(t, "alice::bob", ID("bob", "alice"))
	assert.Equal(t, "notes::notes", ID("notes", "notes"))
}

func TestIDIsInjectiveOverUnorderedPairs(t *testing.T) {
	names := []string{"a", "b", "ab", "a:", ":b", "alice", "bob", "alice:"}
	seen := make(map[string][2]string)
	for i, x := range names {
		for _, y := range names[i:] {
			id := ID(x, y)
			if prev, ok := seen[id]; ok {
				t.Fatalf("collision: %v and %v both map to %q", prev, [2]string{x, y}, id)
			}
			seen[id] = [2]string{x, y}
		}
	}
}

func TestParticipants(t *testing.T) {
	a, b, ok := Participants(ID("bob", "alice"))
	require.True(t, ok)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	for _, bad := range []string{"", "alice", "::bob", "alice::", "a::b::c"} {
		_, _, ok := Participants(bad)
		assert.False(t, ok, bad)
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.ErrorIs(t, ValidateUsername(""), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateUsername("   "), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateUsername("al::ice"), apperr.ErrValidation)
}

func TestResolve(t *testing.T) {
	id, err := Resolve("bob", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "alice::bob", id)

	id, err = Resolve("alice", "bob", "alice::bob")
	require.NoError(t, err)
	assert.Equal(t, "alice::bob", id)

	_, err = Resolve("alice", "bob", "alice::carol")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
