package moderation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/activity"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/authguard"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/floor"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/notify"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
	"github.com/labstack/gommon/log"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
)

// convergenceDelay is how long after admitting a speaker the bot waits
// before re-checking that the room converged on a single unmuted track.
const convergenceDelay = time.Second

// bot is the per-room moderation agent: a hidden participant observing
// membership and track events, feeding them to the authorization guard
// and the floor coordinator, and dispatching the resulting commands
// through the room service API.
type bot struct {
	// ID is mainly for internal use
	id   string
	name string

	// States
	lock    sync.Mutex
	room    *lksdk.Room
	coord   *floor.Coordinator
	guard   *authguard.Pipeline
	monitor *activity.Monitor

	// Shared room properties mirrored into room metadata
	properties map[string]string

	// Services
	lksvc     *lksdk.RoomServiceClient
	approvals *ApprovalRegistry
	sink      notify.Sink
	sched     *scheduler
}

func createBot(id string, roomName string, url string, token string, lksvc *lksdk.RoomServiceClient, guard *authguard.Pipeline, sentinel string, sink notify.Sink) (*bot, error) {
	monitor := activity.NewMonitor()
	sess := session.NewSession(roomName)

	b := &bot{
		id:         id,
		name:       roomName,
		coord:      floor.NewCoordinator(sess, sentinel, floor.WithActivityProbe(monitor.Probe)),
		guard:      guard,
		monitor:    monitor,
		properties: make(map[string]string),
		lksvc:      lksvc,
		approvals:  NewApprovalRegistry(),
		sink:       sink,
		sched:      newScheduler(),
	}

	room, err := lksdk.ConnectToRoomWithToken(url, token)
	if err != nil {
		return nil, err
	}

	room.Callback.OnParticipantConnected = b.OnParticipantConnected
	room.Callback.OnParticipantDisconnected = b.OnParticipantDisconnected
	room.Callback.OnTrackSubscribed = b.OnTrackSubscribed
	room.Callback.OnTrackUnsubscribed = b.OnTrackUnsubscribed
	room.Callback.OnTrackMuted = b.OnTrackMuted
	room.Callback.OnTrackUnmuted = b.OnTrackUnmuted
	b.room = room

	// Register everyone already in the room when the bot joins.
	for _, rp := range room.GetParticipants() {
		b.admit(rp.Identity(), rp.Metadata())
	}

	return b, nil
}

// admit runs the membership pipeline for a joining participant. The claim
// resolved from the connection metadata is immutable for the lifetime of
// the connection.
func (b *bot) admit(identity string, metadata string) {
	claim, _ := authguard.ClaimFromMetadata(metadata)
	requested := authguard.RequestedRoleFromMetadata(metadata)
	approved := b.approvals.IsApproved(identity, session.MediaAudio)

	b.coord.HandleJoin(identity, claim, false)
	b.coord.SetApproved(identity, session.MediaAudio, approved)
	b.coord.WithSession(func(sess *session.Session) {
		b.guard.Dispatch(sess, authguard.Event{
			Type:          authguard.EventPreAdmission,
			Room:          b.name,
			Identity:      identity,
			Claim:         claim,
			RequestedRole: requested,
		})
		b.guard.Dispatch(sess, authguard.Event{
			Type:          authguard.EventAdmission,
			Room:          b.name,
			Identity:      identity,
			Claim:         claim,
			RequestedRole: requested,
		})
	})
	log.Debugf("admitted participant | room: %s, participant: %s", b.name, identity)
}

func (b *bot) OnParticipantConnected(rp *lksdk.RemoteParticipant) {
	b.admit(rp.Identity(), rp.Metadata())
}

func (b *bot) OnParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	identity := rp.Identity()

	b.sched.cancel(identity)
	b.monitor.Unwatch(identity)
	b.approvals.Forget(identity)

	b.dispatch(b.coord.HandleLeave(identity))
	log.Debugf("participant left | room: %s, participant: %s", b.name, identity)
}

func (b *bot) OnTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	b.monitor.Watch(rp.Identity(), track)
}

func (b *bot) OnTrackUnsubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	b.monitor.Unwatch(rp.Identity())
}

func (b *bot) OnTrackMuted(pub lksdk.TrackPublication, p lksdk.Participant) {
	if pub.Kind() != lksdk.TrackKindAudio {
		return
	}
	identity := p.Identity()

	// A contradicting event cancels any pending follow-up for the
	// participant before it can act on stale state.
	b.sched.cancel(identity)
	b.dispatch(b.coord.HandleMuted(identity))
}

func (b *bot) OnTrackUnmuted(pub lksdk.TrackPublication, p lksdk.Participant) {
	if pub.Kind() != lksdk.TrackKindAudio {
		return
	}
	identity := p.Identity()

	granted, cmds := b.coord.HandleRemoteUnmute(identity)
	b.dispatch(cmds)

	if granted {
		// Peers evaluate the same rules independently and delivery order
		// is not guaranteed, so two grants can briefly overlap. Re-check
		// once the room has had a moment to converge; the check reads
		// state at fire time, not at scheduling time.
		b.sched.schedule(identity, convergenceDelay, b.reconverge)
	}
}

// reconverge re-arbitrates every unmuted non-speaker. Legitimate holders
// pass the re-evaluation untouched; stragglers from a double-grant race
// are force-muted.
func (b *bot) reconverge() {
	var restricted bool
	var speaker string
	var unmuted []string
	b.coord.WithSession(func(sess *session.Session) {
		restricted = sess.Restricted
		speaker = sess.CurrentSpeaker
		unmuted = sess.Unmuted()
	})
	if !restricted {
		return
	}

	for _, identity := range unmuted {
		if identity == speaker {
			continue
		}
		_, cmds := b.coord.HandleRemoteUnmute(identity)
		b.dispatch(cmds)
	}
}

// dispatch applies arbitration commands. Decisions were already made
// synchronously against local state; command delivery is fire and forget,
// and failures are logged rather than retried because the next observed
// event re-evaluates from current state.
func (b *bot) dispatch(cmds []floor.Command) {
	ctx := context.TODO()
	for _, cmd := range cmds {
		switch cmd.Kind {
		case floor.CmdMuteLocal, floor.CmdMuteRemote:
			b.muteParticipant(ctx, cmd.Target)
		case floor.CmdSetApprovalRequired:
			b.approvals.SetRequired(cmd.Media, cmd.Required)
		case floor.CmdPublishProperty:
			b.publishProperty(ctx, cmd.Property, cmd.Value)
		case floor.CmdNotify:
			b.sink.Send(cmd.Note)
		}
	}
}

// muteParticipant force-mutes every audio track the participant publishes.
func (b *bot) muteParticipant(ctx context.Context, identity string) {
	pi, err := b.lksvc.GetParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     b.name,
		Identity: identity,
	})
	if err != nil {
		log.Errorf("cannot fetch participant for mute | error: %v, room: %s, participant: %s", err, b.name, identity)
		return
	}

	for _, t := range pi.Tracks {
		if t.Type != livekit.TrackType_AUDIO {
			continue
		}
		_, err = b.lksvc.MutePublishedTrack(ctx, &livekit.MuteRoomTrackRequest{
			Room:     b.name,
			Identity: identity,
			TrackSid: t.Sid,
			Muted:    true,
		})
		if err != nil {
			log.Errorf("cannot mute track | error: %v, room: %s, participant: %s, track: %s", err, b.name, identity, t.Sid)
		}
	}
}

// publishProperty relays a shared session property to all peers through
// the room metadata.
func (b *bot) publishProperty(ctx context.Context, property string, value string) {
	b.lock.Lock()
	if value == "" || value == "0" {
		delete(b.properties, property)
	} else {
		b.properties[property] = value
	}
	body, err := json.Marshal(b.properties)
	b.lock.Unlock()
	if err != nil {
		log.Errorf("cannot marshal room properties | error: %v, room: %s", err, b.name)
		return
	}

	_, err = b.lksvc.UpdateRoomMetadata(ctx, &livekit.UpdateRoomMetadataRequest{
		Room:     b.name,
		Metadata: string(body),
	})
	if err != nil {
		log.Errorf("cannot publish room properties | error: %v, room: %s", err, b.name)
	}
}

func (b *bot) disconnect() {
	b.sched.cancelAll()
	b.monitor.Close()
	b.room.Disconnect()
}
