package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinStartsMutedAndPlain(t *testing.T) {
	s := NewSession("room")
	p := s.Add("alice", "", false)

	require.True(t, p.AudioMuted)
	require.Equal(t, RoleNone, p.Role)
	require.Equal(t, AdmissionRequested, p.Admission)
	require.False(t, p.Elevated())
}

func TestRemoveClearsSpeakerPointer(t *testing.T) {
	s := NewSession("room")
	s.Add("alice", "", false)
	s.Add("bob", "", false)
	s.CurrentSpeaker = "alice"

	removed := s.Remove("alice")

	require.NotNil(t, removed)
	require.Equal(t, AdmissionLeft, removed.Admission)
	require.Empty(t, s.CurrentSpeaker)
	require.True(t, s.LastUnmuteAt.IsZero())
	require.Nil(t, s.Participant("alice"))
}

func TestRemoveUnknownParticipant(t *testing.T) {
	s := NewSession("room")
	require.Nil(t, s.Remove("ghost"))
}

func TestRaisedHandsKeepQueueOrder(t *testing.T) {
	s := NewSession("room")
	s.Add("alice", "", false)
	s.Add("bob", "", false)
	s.Add("carol", "", false)

	first := s.RaiseHand("bob")
	second := s.RaiseHand("alice")
	require.Less(t, first, second)

	// Re-raising keeps the original position
	require.Equal(t, first, s.RaiseHand("bob"))
	require.Equal(t, "bob", s.NextInQueue())

	s.LowerHand("bob")
	require.Equal(t, "alice", s.NextInQueue())

	s.LowerHand("alice")
	require.Empty(t, s.NextInQueue())
}

func TestFloorStateFollowsSpeakerMarker(t *testing.T) {
	s := NewSession("room")
	require.Equal(t, FloorFree, s.FloorState())

	s.CurrentSpeaker = "alice"
	require.Equal(t, FloorHeld, s.FloorState())
}

func TestUnmutedListsOnlyUnmuted(t *testing.T) {
	s := NewSession("room")
	s.Add("alice", "", false)
	s.Add("bob", "", false)
	s.Participant("bob").AudioMuted = false

	require.Equal(t, []string{"bob"}, s.Unmuted())
}
