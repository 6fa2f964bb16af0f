package authguard

import "github.com/cloudgroundcontrol/livekit-moderation/pkg/session"

// EventType keys the interceptor chains. Every membership-changing path
// dispatches one of these.
type EventType string

const (
	EventPreAdmission   EventType = "pre-admission"
	EventAdmission      EventType = "admission"
	EventRoleSet        EventType = "role-set"
	EventAffiliationSet EventType = "affiliation-set"
)

// Event is the payload an interceptor chain evaluates. Interceptors may
// rewrite the requested values to veto a change; the pipeline commits
// whatever survives the chain.
type Event struct {
	Type     EventType
	Room     string
	Identity string

	// Claim is the authorization claim resolved from the participant's
	// connection context. Empty means anonymous.
	Claim string

	RequestedRole        session.Role
	RequestedAffiliation session.Affiliation
}

// Decision is an interceptor's verdict on an event.
type Decision struct {
	// Blocked marks that the interceptor vetoed or reverted something.
	Blocked bool
	// Halt short-circuits the rest of the chain for this event.
	Halt bool
	// Detail explains the verdict for the audit record.
	Detail string
}
