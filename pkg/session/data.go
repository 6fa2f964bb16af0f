package session

// Role is the membership role of a participant inside a room.
type Role string

const (
	RoleNone      Role = "none"
	RoleModerator Role = "moderator"
)

// Affiliation is the long-lived ownership relation between a participant
// and a room, distinct from the in-session role.
type Affiliation string

const (
	AffiliationNone  Affiliation = "none"
	AffiliationOwner Affiliation = "owner"
)

// MediaKind identifies a media channel for approval purposes.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Participant is the locally replicated view of one room member.
//
// Claim is attached at connection time and never changes for the lifetime
// of the connection. Mutable fields are only written through the authguard
// pipeline (Role, Affiliation, Admission) or the floor coordinator
// (AudioMuted, RaisedHandSeq); callers serialise access the same way the
// owning service serialises everything else, so there is no lock here.
type Participant struct {
	Identity    string
	IsLocal     bool
	Role        Role
	Affiliation Affiliation
	Claim       string
	Admission   AdmissionState
	AudioMuted  bool

	// Approved holds explicit moderation approvals per media kind.
	// Approvals granted outside this process are observed, not cached;
	// the approval registry is the source of truth and this mirror is
	// refreshed from it on every change event.
	Approved map[MediaKind]bool

	// RaisedHandSeq is zero when no hand is raised, otherwise a
	// session-monotonic sequence number used for stable queue ordering.
	RaisedHandSeq uint64
}

// Elevated reports whether the participant currently holds the
// privileged role or the owner affiliation.
func (p *Participant) Elevated() bool {
	return p.Role == RoleModerator || p.Affiliation == AffiliationOwner
}

// IsApproved reports the mirrored approval state for a media kind.
func (p *Participant) IsApproved(kind MediaKind) bool {
	if p.Approved == nil {
		return false
	}
	return p.Approved[kind]
}

// SetApproved updates the mirrored approval state for a media kind.
func (p *Participant) SetApproved(kind MediaKind, ok bool) {
	if p.Approved == nil {
		p.Approved = make(map[MediaKind]bool)
	}
	p.Approved[kind] = ok
}
