package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTransitionTable(t *testing.T) {
	cases := []struct {
		from          Status
		action        Action
		to            Status
		alreadyStaged bool
		override      bool
	}{
		{StatusPending, ActionAccept, StatusPendingAccept, false, false},
		{StatusPending, ActionReject, StatusPendingReject, false, false},
		{StatusPendingAccept, ActionAccept, StatusPendingAccept, true, false},
		{StatusPendingAccept, ActionReject, StatusPendingReject, false, false},
		{StatusPendingReject, ActionAccept, StatusPendingAccept, false, false},
		{StatusPendingReject, ActionReject, StatusPendingReject, true, false},
		{StatusAccepted, ActionAccept, StatusPendingAccept, false, true},
		{StatusAccepted, ActionReject, StatusPendingReject, false, true},
		{StatusRejected, ActionAccept, StatusPendingAccept, false, true},
		{StatusRejected, ActionReject, StatusPendingReject, false, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_"+string(tc.action), func(t *testing.T) {
			got, err := Next(tc.from, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.from, got.From)
			assert.Equal(t, tc.to, got.To)
			assert.Equal(t, tc.alreadyStaged, got.AlreadyStaged)
			assert.Equal(t, tc.override, got.Override)
			if tc.override {
				assert.Contains(t, got.Note(), "reversal from terminal")
			} else {
				assert.Empty(t, got.Note())
			}
		})
	}
}

func TestNextRejectsUnknownInput(t *testing.T) {
	_, err := Next(StatusPending, ActionCommit)
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = Next(Status("ARCHIVED"), ActionAccept)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFinalize(t *testing.T) {
	got, ok := Finalize(StatusPendingAccept)
	assert.True(t, ok)
	assert.Equal(t, StatusAccepted, got)

	got, ok = Finalize(StatusPendingReject)
	assert.True(t, ok)
	assert.Equal(t, StatusRejected, got)

	_, ok = Finalize(StatusPending)
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" pending_terima ")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingAccept, got)

	_, err = ParseStatus("interview")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
