package razorpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotesRoundTrip(t *testing.T) {
	n := Notes{UserID: 7, PlanType: "premium", TelegramID: 1001, Email: "a@b.co"}
	got, err := NotesFromMap(n.ToMap())
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestNotesFromMapRejectsIncomplete(t *testing.T) {
	_, err := NotesFromMap(nil)
	assert.ErrorIs(t, err, ErrBadNotes)

	_, err = NotesFromMap(map[string]string{"plan_type": "basic"})
	assert.ErrorIs(t, err, ErrBadNotes)

	_, err = NotesFromMap(map[string]string{"user_id": "7"})
	assert.ErrorIs(t, err, ErrBadNotes)

	// Garbage user_id parses to zero and fails validation rather than
	// attributing the payment to user 0.
	_, err = NotesFromMap(map[string]string{"user_id": "abc", "plan_type": "basic"})
	assert.ErrorIs(t, err, ErrBadNotes)
}
