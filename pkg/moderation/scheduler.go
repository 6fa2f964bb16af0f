package moderation

import (
	"sync"
	"time"
)

// scheduler owns delayed follow-up actions keyed by participant identity.
// A scheduled action is cancelable up to the moment it fires, and the
// action itself must re-check current state before acting: scheduling-time
// state is stale by definition. Keys are torn down on leave events so no
// timer outlives its participant.
type scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{timers: make(map[string]*time.Timer)}
}

// schedule arms fn to run after d, replacing any action already pending
// for the key.
func (s *scheduler) schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, found := s.timers[key]; found {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		// A replacement may have been armed after this one fired.
		if s.timers[key] == timer {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = timer
}

// cancel stops a pending action for the key, if any.
func (s *scheduler) cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, found := s.timers[key]; found {
		t.Stop()
		delete(s.timers, key)
	}
}

// cancelAll stops every pending action.
func (s *scheduler) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

// pending reports whether an action is armed for the key.
func (s *scheduler) pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.timers[key]
	return found
}
