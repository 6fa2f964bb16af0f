package moderation

import (
	"testing"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
	"github.com/stretchr/testify/require"
)

func TestApprovalLifecycle(t *testing.T) {
	r := NewApprovalRegistry()

	require.False(t, r.IsApproved("alice", session.MediaAudio))

	r.Approve("alice", session.MediaAudio)
	require.True(t, r.IsApproved("alice", session.MediaAudio))
	// Approval is scoped per media kind
	require.False(t, r.IsApproved("alice", session.MediaVideo))

	r.Revoke("alice", session.MediaAudio)
	require.False(t, r.IsApproved("alice", session.MediaAudio))
}

func TestApprovalRequirementToggle(t *testing.T) {
	r := NewApprovalRegistry()

	require.False(t, r.Required(session.MediaAudio))
	r.SetRequired(session.MediaAudio, true)
	require.True(t, r.Required(session.MediaAudio))
	require.False(t, r.Required(session.MediaVideo))

	r.SetRequired(session.MediaAudio, false)
	require.False(t, r.Required(session.MediaAudio))
}

func TestForgetDropsAllApprovals(t *testing.T) {
	r := NewApprovalRegistry()
	r.Approve("alice", session.MediaAudio)
	r.Approve("alice", session.MediaVideo)

	r.Forget("alice")
	require.False(t, r.IsApproved("alice", session.MediaAudio))
	require.False(t, r.IsApproved("alice", session.MediaVideo))
}
