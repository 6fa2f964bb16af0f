package session

import (
	"sort"
	"time"
)

// Session is one process's replicated view of a room: its members and the
// floor-control properties shared through the presence channel.
//
// A Session is owned by the single goroutine-serialised service hosting the
// arbitration logic for that room; it is not shared memory between peers.
// The floor fields (Restricted, CurrentSpeaker, LastUnmuteAt) are mutated
// only through the floor coordinator's operations, membership only through
// the authguard pipeline and Add/Remove.
type Session struct {
	Room string

	Restricted      bool
	RestrictedSince time.Time
	CurrentSpeaker  string
	LastUnmuteAt    time.Time

	handSeq      uint64
	participants map[string]*Participant
}

func NewSession(room string) *Session {
	return &Session{
		Room:         room,
		participants: make(map[string]*Participant),
	}
}

// Add registers a joining participant with its connection-time claim.
// Joins start muted in the requested-admission state; the authguard
// pipeline moves them to an admitted state.
func (s *Session) Add(identity string, claim string, isLocal bool) *Participant {
	p := &Participant{
		Identity:    identity,
		IsLocal:     isLocal,
		Role:        RoleNone,
		Affiliation: AffiliationNone,
		Claim:       claim,
		Admission:   AdmissionRequested,
		AudioMuted:  true,
		Approved:    make(map[MediaKind]bool),
	}
	s.participants[identity] = p
	return p
}

// Participant returns the member with the given identity, or nil.
func (s *Session) Participant(identity string) *Participant {
	return s.participants[identity]
}

// Participants returns all members in identity order.
func (s *Session) Participants() []*Participant {
	out := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Remove tears down a departing participant. Every floor-control pointer
// referencing the leaver is cleared as part of the same step, so no stale
// speaker marker can survive a departure.
func (s *Session) Remove(identity string) *Participant {
	p, found := s.participants[identity]
	if !found {
		return nil
	}
	p.Admission = AdmissionLeft
	delete(s.participants, identity)

	if s.CurrentSpeaker == identity {
		s.CurrentSpeaker = ""
		s.LastUnmuteAt = time.Time{}
	}
	return p
}

// RaiseHand assigns the next hand-queue sequence number to the participant.
// Raising an already-raised hand keeps the original queue position.
func (s *Session) RaiseHand(identity string) uint64 {
	p, found := s.participants[identity]
	if !found {
		return 0
	}
	if p.RaisedHandSeq == 0 {
		s.handSeq++
		p.RaisedHandSeq = s.handSeq
	}
	return p.RaisedHandSeq
}

// LowerHand clears the participant's raised hand.
func (s *Session) LowerHand(identity string) {
	if p, found := s.participants[identity]; found {
		p.RaisedHandSeq = 0
	}
}

// NextInQueue returns the identity with the oldest raised hand, or "".
func (s *Session) NextInQueue() string {
	var identity string
	var best uint64
	for _, p := range s.participants {
		if p.RaisedHandSeq == 0 {
			continue
		}
		if best == 0 || p.RaisedHandSeq < best {
			best = p.RaisedHandSeq
			identity = p.Identity
		}
	}
	return identity
}

// FloorState derives the occupancy state from the speaker marker.
func (s *Session) FloorState() FloorState {
	if s.CurrentSpeaker == "" {
		return FloorFree
	}
	return FloorHeld
}

// Unmuted returns the identities of all participants whose audio is
// currently unmuted, in identity order.
func (s *Session) Unmuted() []string {
	var out []string
	for _, p := range s.Participants() {
		if !p.AudioMuted {
			out = append(out, p.Identity)
		}
	}
	return out
}
