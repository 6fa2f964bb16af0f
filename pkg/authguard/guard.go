package authguard

import (
	"sort"
	"sync"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
	"github.com/labstack/gommon/log"
)

// GuardFunc inspects an event against the session and returns a verdict.
// Guards run in descending priority order, but ordering is advisory across
// independently registered guards: a guard must re-validate state on its
// own rather than trust that earlier guards ran first, because background
// defaults or other modules may already have applied the change it is
// checking for.
type GuardFunc func(ctx *Context) Decision

// Context is what a guard sees: the replicated session and the mutable
// event. Rewriting the event's requested values is how a guard vetoes.
type Context struct {
	Session  *session.Session
	Event    *Event
	Sentinel string
}

// Interceptor is one registered guard with its chain position.
type Interceptor struct {
	Name     string
	Priority int
	Guard    GuardFunc
}

// Pipeline is the ordered interceptor chain guarding every membership
// mutation. Higher priority runs earlier; the contract is
// verify-before-others-can-commit.
type Pipeline struct {
	mu       sync.Mutex
	sentinel string
	chains   map[EventType][]Interceptor
	recorder Recorder
}

// Recorder receives one audit entry per guard decision that allowed or
// blocked an elevation. A missing claim always records a block, never a
// default allow.
type Recorder interface {
	Record(e Entry)
}

// Entry is a structured audit record of one authorization decision.
type Entry struct {
	Room     string    `json:"room"`
	Identity string    `json:"identity"`
	Claim    string    `json:"claim"`
	Event    EventType `json:"event"`
	Guard    string    `json:"guard"`
	Allowed  bool      `json:"allowed"`
	Detail   string    `json:"detail"`
}

// NewPipeline builds a pipeline with the default guards registered for
// every event type. sentinel is the claim value that grants elevation.
func NewPipeline(sentinel string, recorder Recorder) *Pipeline {
	p := &Pipeline{
		sentinel: sentinel,
		chains:   make(map[EventType][]Interceptor),
		recorder: recorder,
	}

	for _, evt := range []EventType{EventPreAdmission, EventAdmission, EventRoleSet, EventAffiliationSet} {
		p.Register(evt, Interceptor{Name: "elevation", Priority: PriorityElevation, Guard: elevationGuard})
		p.Register(evt, Interceptor{Name: "revert", Priority: PriorityRevert, Guard: revertGuard})
	}
	p.Register(EventAdmission, Interceptor{Name: "admission", Priority: PriorityAdmission, Guard: admissionGuard})
	return p
}

// Priorities of the default guards. The revert guard deliberately runs
// last so it sees whatever state the rest of the chain left behind.
const (
	PriorityElevation = 100
	PriorityAdmission = 50
	PriorityRevert    = 10
)

// Register inserts an interceptor into the chain for an event type,
// keeping the chain sorted by descending priority. Registration order
// breaks ties.
func (p *Pipeline) Register(evt EventType, ic Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	chain := append(p.chains[evt], ic)
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Priority > chain[j].Priority })
	p.chains[evt] = chain
}

// Dispatch runs the chain for the event and commits what survives.
// Nothing here returns an error: a blocked elevation is corrected in
// place and audited, never surfaced to the requester as a failure.
func (p *Pipeline) Dispatch(sess *session.Session, ev Event) {
	p.mu.Lock()
	chain := p.chains[ev.Type]
	p.mu.Unlock()

	ctx := &Context{Session: sess, Event: &ev, Sentinel: p.sentinel}
	for _, ic := range chain {
		d := ic.Guard(ctx)
		if d.Blocked {
			p.record(Entry{
				Room:     ev.Room,
				Identity: ev.Identity,
				Claim:    ev.Claim,
				Event:    ev.Type,
				Guard:    ic.Name,
				Allowed:  false,
				Detail:   d.Detail,
			})
		}
		if d.Halt {
			break
		}
	}

	p.commit(sess, &ev)
}

// commit applies whatever the chain left in the event to the participant.
// The sentinel check runs once more right here: ordering across
// independently registered interceptors is advisory, so the commit cannot
// assume the elevation guard saw the final requested values.
func (p *Pipeline) commit(sess *session.Session, ev *Event) {
	member := sess.Participant(ev.Identity)
	if member == nil {
		return
	}

	if member.Claim != p.sentinel || member.Claim == "" {
		var blocked bool
		if ev.RequestedRole == session.RoleModerator {
			ev.RequestedRole = session.RoleNone
			blocked = true
		}
		if ev.RequestedAffiliation == session.AffiliationOwner {
			ev.RequestedAffiliation = session.AffiliationNone
			blocked = true
		}
		if blocked {
			p.record(Entry{
				Room:     ev.Room,
				Identity: ev.Identity,
				Claim:    ev.Claim,
				Event:    ev.Type,
				Guard:    "commit",
				Allowed:  false,
				Detail:   "elevation reached commit without sentinel claim",
			})
		}
	}

	switch ev.Type {
	case EventRoleSet:
		if ev.RequestedRole != "" {
			member.Role = ev.RequestedRole
		}
	case EventAffiliationSet:
		if ev.RequestedAffiliation != "" {
			member.Affiliation = ev.RequestedAffiliation
		}
	case EventAdmission, EventPreAdmission:
		if ev.RequestedRole != "" {
			member.Role = ev.RequestedRole
		}
		if ev.RequestedAffiliation != "" {
			member.Affiliation = ev.RequestedAffiliation
		}
	}

	elevated := ev.RequestedRole == session.RoleModerator || ev.RequestedAffiliation == session.AffiliationOwner
	if elevated && member.Claim == p.sentinel && member.Claim != "" {
		p.record(Entry{
			Room:     ev.Room,
			Identity: ev.Identity,
			Claim:    ev.Claim,
			Event:    ev.Type,
			Guard:    "commit",
			Allowed:  true,
			Detail:   "elevation committed",
		})
	}
}

func (p *Pipeline) record(e Entry) {
	if e.Allowed {
		log.Infof("elevation allowed | room: %s, participant: %s, event: %s", e.Room, e.Identity, e.Event)
	} else {
		log.Warnf("elevation blocked | room: %s, participant: %s, event: %s, guard: %s, detail: %s", e.Room, e.Identity, e.Event, e.Guard, e.Detail)
	}
	if p.recorder != nil {
		p.recorder.Record(e)
	}
}

// claimFor resolves the authoritative claim for the event's subject. The
// connection-time claim on the session member wins over whatever the
// event payload carries; payloads cross module boundaries and are not
// trusted.
func claimFor(ctx *Context) string {
	if member := ctx.Session.Participant(ctx.Event.Identity); member != nil {
		return member.Claim
	}
	return ctx.Event.Claim
}

// elevationGuard vetoes a requested elevated role or owner affiliation
// when the resolved claim is not the sentinel. No claim at all always
// blocks, regardless of room configuration.
func elevationGuard(ctx *Context) Decision {
	ev := ctx.Event
	wantsRole := ev.RequestedRole == session.RoleModerator
	wantsAffiliation := ev.RequestedAffiliation == session.AffiliationOwner
	if !wantsRole && !wantsAffiliation {
		return Decision{}
	}
	if claim := claimFor(ctx); claim == ctx.Sentinel && claim != "" {
		return Decision{}
	}

	if wantsRole {
		ev.RequestedRole = session.RoleNone
	}
	if wantsAffiliation {
		ev.RequestedAffiliation = session.AffiliationNone
	}
	return Decision{Blocked: true, Detail: "requested elevation without sentinel claim"}
}

// revertGuard re-checks already-applied state: another interceptor or a
// background default may have elevated the participant before this chain
// ran, so the applied role is verified here and forcibly reset when the
// claim does not warrant it. Defense in depth, not a sequencing guarantee.
func revertGuard(ctx *Context) Decision {
	member := ctx.Session.Participant(ctx.Event.Identity)
	if member == nil {
		return Decision{}
	}
	if member.Claim == ctx.Sentinel && member.Claim != "" {
		return Decision{}
	}

	var blocked bool
	if member.Role == session.RoleModerator {
		member.Role = session.RoleNone
		blocked = true
	}
	if member.Affiliation == session.AffiliationOwner {
		member.Affiliation = session.AffiliationNone
		blocked = true
	}
	if member.Admission == session.AdmittedElevated {
		member.Admission = session.AdmittedPlain
		blocked = true
	}
	if !blocked {
		return Decision{}
	}
	return Decision{Blocked: true, Detail: "reverted already-applied elevation"}
}

// admissionGuard drives the admission lifecycle. A missing claim is not an
// error; it is an ordinary plain admission.
func admissionGuard(ctx *Context) Decision {
	member := ctx.Session.Participant(ctx.Event.Identity)
	if member == nil || member.Admission != session.AdmissionRequested {
		return Decision{}
	}

	if member.Claim == ctx.Sentinel && member.Claim != "" {
		member.Admission = session.AdmittedElevated
		member.Role = session.RoleModerator
		if ctx.Event.RequestedRole == "" {
			ctx.Event.RequestedRole = session.RoleModerator
		}
		return Decision{}
	}
	member.Admission = session.AdmittedPlain
	return Decision{}
}
