package activity

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/livekit/protocol/logger"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

const (
	// DefaultAudioLevelExtensionID is the RTP header extension id for the
	// audio-level extension as negotiated by the SFU.
	DefaultAudioLevelExtensionID uint8 = 10

	// speakingThreshold is the maximum -dBov level counted as audible.
	// Lower values are louder; 127 is silence.
	speakingThreshold uint8 = 110

	// activeWindow is how long after the last audible packet a
	// participant still counts as speaking.
	activeWindow = 500 * time.Millisecond
)

type observation struct {
	level uint8
	voice bool
	at    time.Time
}

type reader struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Monitor answers the live "is this participant audibly speaking right
// now" question from the RTP audio-level header extension of subscribed
// audio tracks. Readers are tracked in an explicit ownership table keyed
// by identity, torn down deterministically on unsubscribe or leave; there
// is no ambient global state.
type Monitor struct {
	mu      sync.Mutex
	extID   uint8
	readers map[string]*reader
	levels  map[string]observation
	now     func() time.Time
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithExtensionID overrides the negotiated audio-level extension id.
func WithExtensionID(id uint8) MonitorOption {
	return func(m *Monitor) { m.extID = id }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		extID:   DefaultAudioLevelExtensionID,
		readers: make(map[string]*reader),
		levels:  make(map[string]observation),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Watch starts consuming audio-level data for a participant's audio track.
// Watching an identity that is already watched replaces the old reader.
func (m *Monitor) Watch(identity string, track *webrtc.TrackRemote) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, found := m.readers[identity]; found {
		old.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.readers[identity] = &reader{ctx: ctx, cancel: cancel}
	go m.consume(ctx, identity, track)
}

// Unwatch stops the reader for an identity and drops its level state.
func (m *Monitor) Unwatch(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, found := m.readers[identity]; found {
		r.cancel()
		delete(m.readers, identity)
	}
	delete(m.levels, identity)
}

// Close tears down every reader.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for identity, r := range m.readers {
		r.cancel()
		delete(m.readers, identity)
	}
	m.levels = make(map[string]observation)
}

// Tracking reports whether a live reader exists for the identity.
func (m *Monitor) Tracking(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, found := m.readers[identity]
	return found
}

// Speaking reports whether the identity produced an audible packet within
// the active window. Unknown identities are never speaking.
func (m *Monitor) Speaking(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	obs, found := m.levels[identity]
	if !found {
		return false
	}
	if m.now().Sub(obs.at) > activeWindow {
		return false
	}
	return obs.voice || obs.level <= speakingThreshold
}

// Probe adapts the monitor for the floor coordinator. known is false for
// identities without a live reader so the coordinator can fall back to the
// replicated mute flag.
func (m *Monitor) Probe(identity string) (bool, bool) {
	if !m.Tracking(identity) {
		return false, false
	}
	return m.Speaking(identity), true
}

// consume reads RTP packets until the context is cancelled or the track
// ends, recording the audio-level extension of each packet.
func (m *Monitor) consume(ctx context.Context, identity string, track *webrtc.TrackRemote) {
	var err error
	defer func() {
		if err == io.EOF {
			err = nil
		}
		if err != nil {
			logger.Warnw("activity reader error", err, "participant", identity)
		}
	}()

	var packet *rtp.Packet
	for {
		select {
		case <-ctx.Done():
			return
		default:
			packet, _, err = track.ReadRTP()
			if err != nil {
				return
			}
			m.observe(identity, packet)
		}
	}
}

// observe records the audio-level extension of one packet.
func (m *Monitor) observe(identity string, packet *rtp.Packet) {
	payload := packet.GetExtension(m.extID)
	if payload == nil {
		return
	}

	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(payload); err != nil {
		return
	}

	m.mu.Lock()
	m.levels[identity] = observation{
		level: ext.Level,
		voice: ext.Voice,
		at:    m.now(),
	}
	m.mu.Unlock()
}
