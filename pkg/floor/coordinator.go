package floor

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/notify"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
)

// CooldownWindow is how long after a speaker change other participants must
// wait before taking the floor, as long as the previous speaker is still
// audibly transmitting.
const CooldownWindow = 2 * time.Second

// ActivityProbe reports whether a participant is audibly transmitting right
// now. known is false when the probe has no live signal for the identity,
// in which case the coordinator falls back to the replicated mute flag.
type ActivityProbe func(identity string) (speaking bool, known bool)

// Coordinator arbitrates the speaking floor for one session. Every peer
// runs the same rules against its locally replicated state; there is no
// central arbiter. All operations decide synchronously against the local
// snapshot and return the commands to dispatch, so the logic is testable
// without any networking.
type Coordinator struct {
	mu       sync.Mutex
	sess     *session.Session
	sentinel string
	now      func() time.Time
	probe    ActivityProbe
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithActivityProbe wires a live audio-activity signal into the
// "is anyone actually speaking" checks.
func WithActivityProbe(probe ActivityProbe) Option {
	return func(c *Coordinator) { c.probe = probe }
}

// NewCoordinator creates a coordinator over a session. sentinel is the
// authorization-claim value that grants unconditional floor priority.
func NewCoordinator(sess *session.Session, sentinel string, opts ...Option) *Coordinator {
	c := &Coordinator{
		sess:     sess,
		sentinel: sentinel,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession runs fn with exclusive access to the session, for
// collaborators such as the membership pipeline that read or mutate
// membership state outside the coordinator's own operations. The floor
// fields themselves must still only change through those operations.
func (c *Coordinator) WithSession(fn func(*session.Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.sess)
}

// HandleJoin registers a joining participant with its connection-time claim.
func (c *Coordinator) HandleJoin(identity string, claim string, isLocal bool) *session.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Add(identity, claim, isLocal)
}

// HandleLeave tears down a departing participant and clears any floor
// pointer referencing it.
func (c *Coordinator) HandleLeave(identity string) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasSpeaker := c.sess.CurrentSpeaker == identity
	if c.sess.Remove(identity) == nil {
		return nil
	}

	var cmds []Command
	if wasSpeaker {
		cmds = append(cmds, publish(PropertySpeaker, ""))
	}
	return cmds
}

// ToggleRestrictedMode enables or disables single-speaker mode. Only a
// participant carrying the sentinel claim may change it; anyone else gets
// a local warning and no state change.
func (c *Coordinator) ToggleRestrictedMode(requestedBy string, enable bool) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.sess.Participant(requestedBy)
	if p == nil || p.Claim != c.sentinel {
		return []Command{notification(requestedBy, notify.Notification{
			Room:     c.sess.Room,
			Title:    "Not allowed",
			Message:  "Only the room owner can change restricted speaking mode",
			Kind:     notify.KindWarning,
			Severity: notify.SeverityWarn,
			Timeout:  notify.TimeoutShort,
		})}
	}

	if c.sess.Restricted == enable {
		return nil
	}

	var cmds []Command
	if enable {
		c.sess.Restricted = true
		c.sess.RestrictedSince = c.now()
		c.sess.CurrentSpeaker = ""
		c.sess.LastUnmuteAt = time.Time{}

		// Mute everyone, the requester included.
		for _, q := range c.sess.Participants() {
			cmds = append(cmds, muteFor(q))
			q.AudioMuted = true
		}
		cmds = append(cmds,
			approvalRequired(session.MediaAudio, true),
			publish(PropertyRestricted, "true"),
			publish(PropertyRestrictedSince, strconv.FormatInt(c.sess.RestrictedSince.UnixNano(), 10)),
			publish(PropertySpeaker, ""),
		)
	} else {
		c.sess.Restricted = false
		c.sess.CurrentSpeaker = ""
		c.sess.LastUnmuteAt = time.Time{}
		cmds = append(cmds,
			approvalRequired(session.MediaAudio, false),
			publish(PropertyRestricted, "false"),
			publish(PropertySpeaker, ""),
		)
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	cmds = append(cmds, notification("", notify.Notification{
		Room:     c.sess.Room,
		Title:    "Restricted speaking mode",
		Message:  fmt.Sprintf("%s %s restricted speaking mode", requestedBy, state),
		Kind:     notify.KindNormal,
		Severity: notify.SeverityInfo,
		Timeout:  notify.TimeoutMedium,
	}))
	return cmds
}

// RequestLocalUnmute evaluates the local participant's intent to speak.
// Rejections force the participant back to muted and surface a notification;
// they are never errors.
func (c *Coordinator) RequestLocalUnmute(identity string) (bool, []Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateUnmute(identity, false)
}

// HandleRemoteUnmute evaluates an observed remote track unmute. The same
// rules apply, except the offender is muted via a remote command rather
// than a local mute-state change.
func (c *Coordinator) HandleRemoteUnmute(identity string) (bool, []Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateUnmute(identity, true)
}

// evaluateUnmute re-validates against state as observed right now, not as
// it was when the attempt was made; peers seeing stale speaker markers
// self-correct through the live audible checks.
func (c *Coordinator) evaluateUnmute(identity string, remote bool) (bool, []Command) {
	p := c.sess.Participant(identity)
	if p == nil {
		return false, nil
	}

	// Record the observed or intended state first; a rejection reverts it.
	p.AudioMuted = false

	if !c.sess.Restricted {
		return true, nil
	}

	// The sentinel claim has strict priority over everyone, including
	// other elevated participants: it always displaces the holder.
	if p.Claim == c.sentinel {
		return true, c.grant(p)
	}

	// Cooldown, but only while someone else is currently and audibly
	// speaking; an empty floor is never rate limited.
	if last := c.sess.LastUnmuteAt; !last.IsZero() && c.now().Sub(last) < CooldownWindow {
		if c.liveSpeaker(identity) != "" {
			return false, c.reject(p, remote, "Please wait", "Another participant has just started speaking, please wait a moment")
		}
	}

	// Floor occupancy. The marker alone is not trusted: the holder must
	// still be audibly unmuted, and an unmuted participant without the
	// marker still counts as holding the floor.
	if holder := c.sess.CurrentSpeaker; holder != "" && holder != identity {
		if q := c.sess.Participant(holder); q != nil && !q.AudioMuted && c.audible(q) {
			return false, c.reject(p, remote, "Someone else is speaking", "Someone else is speaking right now")
		}
	}
	if other := c.liveSpeaker(identity); other != "" {
		return false, c.reject(p, remote, "Someone else is speaking", "Someone else is speaking right now")
	}

	// Admission gate: explicit approval or a raised hand. The sentinel
	// bearer never reaches this point.
	if !p.IsApproved(session.MediaAudio) && p.RaisedHandSeq == 0 {
		return false, c.reject(p, remote, "Raise hand to unmute", "Raise your hand to request the floor")
	}

	return true, c.grant(p)
}

// grant takes the floor for p: every other participant is muted as part of
// the same logical step, the speaker marker moves, and the cooldown clock
// restarts.
func (c *Coordinator) grant(p *session.Participant) []Command {
	var cmds []Command
	for _, q := range c.sess.Participants() {
		if q.Identity == p.Identity {
			continue
		}
		cmds = append(cmds, muteFor(q))
		q.AudioMuted = true
	}

	c.sess.CurrentSpeaker = p.Identity
	c.sess.LastUnmuteAt = c.now()

	cmds = append(cmds,
		publish(PropertySpeaker, p.Identity),
		notification("", notify.Notification{
			Room:     c.sess.Room,
			Title:    "Now speaking",
			Message:  fmt.Sprintf("%s is now speaking", p.Identity),
			Kind:     notify.KindNormal,
			Severity: notify.SeverityInfo,
			Timeout:  notify.TimeoutShort,
		}),
	)
	return cmds
}

// reject forces p back to muted and surfaces a local notification. The
// speaker marker is cleared in the same step when it points at p: a
// marker must never outlive its holder's unmuted state.
func (c *Coordinator) reject(p *session.Participant, remote bool, title string, message string) []Command {
	p.AudioMuted = true

	var cmds []Command
	if c.sess.CurrentSpeaker == p.Identity {
		c.sess.CurrentSpeaker = ""
		c.sess.LastUnmuteAt = time.Time{}
		cmds = append(cmds, publish(PropertySpeaker, ""))
	}

	var mute Command
	if remote {
		mute = muteRemote(p.Identity)
	} else {
		mute = muteLocal(p.Identity)
	}
	return append(cmds, mute, notification(p.Identity, notify.Notification{
		Room:     c.sess.Room,
		Title:    title,
		Message:  message,
		Kind:     notify.KindWarning,
		Severity: notify.SeverityWarn,
		Timeout:  notify.TimeoutShort,
	}))
}

// HandleMuted records that a participant's audio became muted. Muting the
// current speaker frees the floor and resets the cooldown clock so the
// next comer is not penalised by a stale window. Idempotent.
func (c *Coordinator) HandleMuted(identity string) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.sess.Participant(identity)
	if p == nil {
		return nil
	}
	if p.AudioMuted && c.sess.CurrentSpeaker != identity {
		return nil
	}

	p.AudioMuted = true
	if c.sess.CurrentSpeaker != identity {
		return nil
	}

	c.sess.CurrentSpeaker = ""
	c.sess.LastUnmuteAt = time.Time{}
	return []Command{publish(PropertySpeaker, "")}
}

// MuteAll force-mutes every participant not excluded. Raised hands of
// participants without an explicit approval are lowered so they cannot
// silently reclaim the floor; explicitly approved participants keep their
// approval and may take the floor again later.
func (c *Coordinator) MuteAll(exclude []string) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var cmds []Command
	for _, p := range c.sess.Participants() {
		if excluded[p.Identity] {
			continue
		}
		cmds = append(cmds, muteFor(p))
		p.AudioMuted = true
		if !p.IsApproved(session.MediaAudio) && p.RaisedHandSeq != 0 {
			p.RaisedHandSeq = 0
			cmds = append(cmds, publish(PropertyHandPrefix+p.Identity, "0"))
		}
	}

	if speaker := c.sess.CurrentSpeaker; speaker != "" && !excluded[speaker] {
		c.sess.CurrentSpeaker = ""
		c.sess.LastUnmuteAt = time.Time{}
		cmds = append(cmds, publish(PropertySpeaker, ""))
	}
	return cmds
}

// RaiseHand records a raised hand and relays it to the other peers.
func (c *Coordinator) RaiseHand(identity string) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.sess.RaiseHand(identity)
	if seq == 0 {
		return nil
	}
	return []Command{
		publish(PropertyHandPrefix+identity, strconv.FormatUint(seq, 10)),
		notification("", notify.Notification{
			Room:     c.sess.Room,
			Title:    "Raised hand",
			Message:  fmt.Sprintf("%s raised their hand", identity),
			Kind:     notify.KindNormal,
			Severity: notify.SeverityInfo,
			Timeout:  notify.TimeoutShort,
		}),
	}
}

// LowerHand clears a raised hand.
func (c *Coordinator) LowerHand(identity string) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.sess.Participant(identity)
	if p == nil || p.RaisedHandSeq == 0 {
		return nil
	}
	c.sess.LowerHand(identity)
	return []Command{publish(PropertyHandPrefix+identity, "0")}
}

// SetApproved mirrors an approval change observed from the moderation
// approval service. Approvals are externally mutable; this never caches
// beyond the mirror the next event refreshes.
func (c *Coordinator) SetApproved(identity string, kind session.MediaKind, approved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.sess.Participant(identity); p != nil {
		p.SetApproved(kind, approved)
	}
}

// Status is a point-in-time snapshot of the floor for dashboards.
type Status struct {
	Room            string            `json:"room"`
	Restricted      bool              `json:"restricted"`
	CurrentSpeaker  string            `json:"current_speaker"`
	Unmuted         []string          `json:"unmuted"`
	RaisedHands     map[string]uint64 `json:"raised_hands"`
	ParticipantRole map[string]string `json:"participant_roles"`
}

// Snapshot returns the current floor status.
func (c *Coordinator) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Room:            c.sess.Room,
		Restricted:      c.sess.Restricted,
		CurrentSpeaker:  c.sess.CurrentSpeaker,
		Unmuted:         c.sess.Unmuted(),
		RaisedHands:     make(map[string]uint64),
		ParticipantRole: make(map[string]string),
	}
	for _, p := range c.sess.Participants() {
		if p.RaisedHandSeq != 0 {
			st.RaisedHands[p.Identity] = p.RaisedHandSeq
		}
		st.ParticipantRole[p.Identity] = string(p.Role)
	}
	return st
}

// audible reports whether p is transmitting right now, preferring the live
// activity probe over the replicated mute flag.
func (c *Coordinator) audible(p *session.Participant) bool {
	if c.probe != nil {
		if speaking, known := c.probe(p.Identity); known {
			return speaking
		}
	}
	return !p.AudioMuted
}

// liveSpeaker returns the identity of any participant other than except
// that is unmuted and audibly speaking, or "".
func (c *Coordinator) liveSpeaker(except string) string {
	for _, p := range c.sess.Participants() {
		if p.Identity == except || p.AudioMuted {
			continue
		}
		if c.audible(p) {
			return p.Identity
		}
	}
	return ""
}
