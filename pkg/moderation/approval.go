package moderation

import (
	"sync"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
)

// ApprovalRegistry is the moderation-approval service for one room: which
// media kinds require approval and which participants hold one. Approvals
// are externally mutable (a moderator console may grant them out of band),
// so consumers observe current state instead of caching it.
type ApprovalRegistry struct {
	mu       sync.Mutex
	required map[session.MediaKind]bool
	approved map[string]map[session.MediaKind]bool
}

func NewApprovalRegistry() *ApprovalRegistry {
	return &ApprovalRegistry{
		required: make(map[session.MediaKind]bool),
		approved: make(map[string]map[session.MediaKind]bool),
	}
}

// SetRequired toggles the approval requirement for a media kind.
func (r *ApprovalRegistry) SetRequired(kind session.MediaKind, required bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.required[kind] = required
}

// Required reports whether a media kind needs approval to publish.
func (r *ApprovalRegistry) Required(kind session.MediaKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.required[kind]
}

// Approve grants a participant approval for a media kind.
func (r *ApprovalRegistry) Approve(identity string, kind session.MediaKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds, found := r.approved[identity]
	if !found {
		kinds = make(map[session.MediaKind]bool)
		r.approved[identity] = kinds
	}
	kinds[kind] = true
}

// Revoke removes a participant's approval for a media kind.
func (r *ApprovalRegistry) Revoke(identity string, kind session.MediaKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kinds, found := r.approved[identity]; found {
		delete(kinds, kind)
	}
}

// IsApproved reports whether a participant holds an approval.
func (r *ApprovalRegistry) IsApproved(identity string, kind session.MediaKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds, found := r.approved[identity]
	return found && kinds[kind]
}

// Forget drops all approvals for a departing participant.
func (r *ApprovalRegistry) Forget(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.approved, identity)
}
