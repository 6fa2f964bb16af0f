package floor

import (
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/notify"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
)

// CommandKind discriminates the outgoing effects of an arbitration decision.
type CommandKind string

const (
	// CmdMuteLocal asks the local media layer to mute the local track.
	CmdMuteLocal CommandKind = "mute-local"
	// CmdMuteRemote asks the transport to force-mute a remote participant.
	CmdMuteRemote CommandKind = "mute-remote"
	// CmdSetApprovalRequired toggles the moderation-approval requirement
	// for a media kind.
	CmdSetApprovalRequired CommandKind = "set-approval-required"
	// CmdPublishProperty relays a shared session property to all peers.
	CmdPublishProperty CommandKind = "publish-property"
	// CmdNotify delivers a notification, either to one participant
	// (Target set) or broadcast (Target empty).
	CmdNotify CommandKind = "notify"
)

// Command is one outgoing effect. Decisions are made synchronously against
// local state; commands are dispatched afterwards without waiting for
// acknowledgement, and local state is updated optimistically at dispatch
// time rather than at confirmation time.
type Command struct {
	Kind   CommandKind
	Target string

	// CmdSetApprovalRequired
	Media    session.MediaKind
	Required bool

	// CmdPublishProperty
	Property string
	Value    string

	// CmdNotify
	Note notify.Notification
}

func muteLocal(identity string) Command {
	return Command{Kind: CmdMuteLocal, Target: identity}
}

func muteRemote(identity string) Command {
	return Command{Kind: CmdMuteRemote, Target: identity}
}

func muteFor(p *session.Participant) Command {
	if p.IsLocal {
		return muteLocal(p.Identity)
	}
	return muteRemote(p.Identity)
}

func approvalRequired(kind session.MediaKind, required bool) Command {
	return Command{Kind: CmdSetApprovalRequired, Media: kind, Required: required}
}

func publish(property string, value string) Command {
	return Command{Kind: CmdPublishProperty, Property: property, Value: value}
}

func notification(target string, n notify.Notification) Command {
	return Command{Kind: CmdNotify, Target: target, Note: n}
}

// Shared property names relayed through the presence channel.
const (
	PropertySpeaker         = "speaker"
	PropertyRestricted      = "restricted"
	PropertyRestrictedSince = "restricted_since"
	PropertyHandPrefix      = "hand/"
)
