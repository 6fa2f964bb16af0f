package authguard

import (
	"math/rand"
	"testing"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
	"github.com/stretchr/testify/require"
)

const testSentinel = "room-owner"

type memoryRecorder struct {
	entries []Entry
}

func (r *memoryRecorder) Record(e Entry) {
	r.entries = append(r.entries, e)
}

func (r *memoryRecorder) blocked() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if !e.Allowed {
			out = append(out, e)
		}
	}
	return out
}

func newTestPipeline() (*Pipeline, *session.Session, *memoryRecorder) {
	rec := &memoryRecorder{}
	return NewPipeline(testSentinel, rec), session.NewSession("test-room"), rec
}

func TestAdmissionWithSentinelClaimElevates(t *testing.T) {
	p, sess, rec := newTestPipeline()
	sess.Add("owner", testSentinel, false)

	p.Dispatch(sess, Event{
		Type:     EventAdmission,
		Room:     "test-room",
		Identity: "owner",
		Claim:    testSentinel,
	})

	member := sess.Participant("owner")
	require.Equal(t, session.RoleModerator, member.Role)
	require.Equal(t, session.AdmittedElevated, member.Admission)
	require.Empty(t, rec.blocked())
}

func TestAdmissionWithoutClaimIsPlain(t *testing.T) {
	p, sess, rec := newTestPipeline()
	sess.Add("guest", "", false)

	p.Dispatch(sess, Event{
		Type:     EventAdmission,
		Room:     "test-room",
		Identity: "guest",
	})

	member := sess.Participant("guest")
	require.Equal(t, session.RoleNone, member.Role)
	require.Equal(t, session.AdmittedPlain, member.Admission)
	// A missing claim is an ordinary plain admission, not a violation
	require.Empty(t, rec.blocked())
}

func TestAnonymousJoinRequestingElevationIsBlocked(t *testing.T) {
	p, sess, rec := newTestPipeline()
	sess.Add("intruder", "", false)

	p.Dispatch(sess, Event{
		Type:          EventAdmission,
		Room:          "test-room",
		Identity:      "intruder",
		RequestedRole: session.RoleModerator,
	})

	member := sess.Participant("intruder")
	require.Equal(t, session.RoleNone, member.Role)
	require.Equal(t, session.AdmittedPlain, member.Admission)

	blocked := rec.blocked()
	require.NotEmpty(t, blocked)
	require.Equal(t, "intruder", blocked[0].Identity)
	require.Equal(t, EventAdmission, blocked[0].Event)
}

func TestWrongClaimCannotTakeRoleOrAffiliation(t *testing.T) {
	p, sess, rec := newTestPipeline()
	sess.Add("guest", "some-other-claim", false)

	p.Dispatch(sess, Event{
		Type:          EventRoleSet,
		Room:          "test-room",
		Identity:      "guest",
		Claim:         "some-other-claim",
		RequestedRole: session.RoleModerator,
	})
	p.Dispatch(sess, Event{
		Type:                 EventAffiliationSet,
		Room:                 "test-room",
		Identity:             "guest",
		Claim:                "some-other-claim",
		RequestedAffiliation: session.AffiliationOwner,
	})

	member := sess.Participant("guest")
	require.Equal(t, session.RoleNone, member.Role)
	require.Equal(t, session.AffiliationNone, member.Affiliation)
	require.Len(t, rec.blocked(), 2)
}

func TestSentinelClaimMayBeGrantedRole(t *testing.T) {
	p, sess, rec := newTestPipeline()
	sess.Add("owner", testSentinel, false)

	p.Dispatch(sess, Event{
		Type:          EventRoleSet,
		Room:          "test-room",
		Identity:      "owner",
		Claim:         testSentinel,
		RequestedRole: session.RoleModerator,
	})

	require.Equal(t, session.RoleModerator, sess.Participant("owner").Role)
	require.Empty(t, rec.blocked())
}

func TestAlreadyAppliedElevationIsReverted(t *testing.T) {
	p, sess, rec := newTestPipeline()
	member := sess.Add("guest", "", false)

	// Another module applied the elevation before the chain ran
	member.Role = session.RoleModerator
	member.Affiliation = session.AffiliationOwner

	p.Dispatch(sess, Event{
		Type:     EventRoleSet,
		Room:     "test-room",
		Identity: "guest",
	})

	require.Equal(t, session.RoleNone, member.Role)
	require.Equal(t, session.AffiliationNone, member.Affiliation)

	blocked := rec.blocked()
	require.NotEmpty(t, blocked)
	require.Equal(t, "revert", blocked[0].Guard)
}

func TestGuardsRunInDescendingPriorityOrder(t *testing.T) {
	p, _, _ := newTestPipeline()
	sess := session.NewSession("test-room")
	sess.Add("guest", "", false)

	var order []string
	p.Register(EventRoleSet, Interceptor{
		Name:     "late",
		Priority: 1,
		Guard: func(ctx *Context) Decision {
			order = append(order, "late")
			return Decision{}
		},
	})
	p.Register(EventRoleSet, Interceptor{
		Name:     "early",
		Priority: 500,
		Guard: func(ctx *Context) Decision {
			order = append(order, "early")
			return Decision{}
		},
	})

	p.Dispatch(sess, Event{Type: EventRoleSet, Room: "test-room", Identity: "guest"})
	require.Equal(t, []string{"early", "late"}, order)
}

func TestHaltShortCircuitsChain(t *testing.T) {
	p, _, _ := newTestPipeline()
	sess := session.NewSession("test-room")
	sess.Add("guest", "", false)

	var reached bool
	p.Register(EventRoleSet, Interceptor{
		Name:     "halting",
		Priority: 900,
		Guard: func(ctx *Context) Decision {
			return Decision{Halt: true}
		},
	})
	p.Register(EventRoleSet, Interceptor{
		Name:     "never",
		Priority: 800,
		Guard: func(ctx *Context) Decision {
			reached = true
			return Decision{}
		},
	})

	p.Dispatch(sess, Event{Type: EventRoleSet, Room: "test-room", Identity: "guest"})
	require.False(t, reached)
}

// TestElevationInvariantUnderRandomEvents throws random membership events,
// including elevation attempts without the claim, at the pipeline and
// asserts that an elevated role always coincides with the sentinel claim.
func TestElevationInvariantUnderRandomEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	claims := []string{testSentinel, "", "bogus-claim"}
	events := []EventType{EventPreAdmission, EventAdmission, EventRoleSet, EventAffiliationSet}
	roles := []session.Role{"", session.RoleNone, session.RoleModerator}
	affiliations := []session.Affiliation{"", session.AffiliationNone, session.AffiliationOwner}

	for round := 0; round < 20; round++ {
		p, sess, _ := newTestPipeline()

		members := []string{"a", "b", "c", "d"}
		for _, id := range members {
			sess.Add(id, claims[rng.Intn(len(claims))], false)
		}

		for step := 0; step < 300; step++ {
			id := members[rng.Intn(len(members))]
			member := sess.Participant(id)

			ev := Event{
				Type:                 events[rng.Intn(len(events))],
				Room:                 "test-room",
				Identity:             id,
				Claim:                member.Claim,
				RequestedRole:        roles[rng.Intn(len(roles))],
				RequestedAffiliation: affiliations[rng.Intn(len(affiliations))],
			}
			// Occasionally lie about the resolved claim in the event
			// payload; the guards must check the connection state
			if rng.Intn(10) == 0 {
				ev.Claim = testSentinel
			}
			p.Dispatch(sess, ev)

			for _, mid := range members {
				m := sess.Participant(mid)
				if m.Role == session.RoleModerator || m.Affiliation == session.AffiliationOwner {
					require.Equalf(t, testSentinel, m.Claim,
						"round %d step %d: %s elevated without sentinel claim", round, step, mid)
				}
			}
		}
	}
}
