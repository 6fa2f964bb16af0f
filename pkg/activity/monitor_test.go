package activity

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func mockAudioPacket(t *testing.T, extID uint8, level uint8, voice bool) *rtp.Packet {
	t.Helper()

	ext := rtp.AudioLevelExtension{Level: level, Voice: voice}
	payload, err := ext.Marshal()
	require.NoError(t, err)

	packet := &rtp.Packet{
		Header: rtp.Header{
			Extension:        true,
			ExtensionProfile: 0xBEDE,
		},
	}
	require.NoError(t, packet.SetExtension(extID, payload))
	return packet
}

func TestSpeakingAfterAudiblePacket(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewMonitor(WithClock(clock.now))

	m.observe("alice", mockAudioPacket(t, DefaultAudioLevelExtensionID, 30, true))
	require.True(t, m.Speaking("alice"))
}

func TestNotSpeakingOutsideActiveWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewMonitor(WithClock(clock.now))

	m.observe("alice", mockAudioPacket(t, DefaultAudioLevelExtensionID, 30, true))
	clock.t = clock.t.Add(2 * activeWindow)
	require.False(t, m.Speaking("alice"))
}

func TestSilentPacketDoesNotCountAsSpeaking(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewMonitor(WithClock(clock.now))

	// 127 is digital silence in -dBov
	m.observe("alice", mockAudioPacket(t, DefaultAudioLevelExtensionID, 127, false))
	require.False(t, m.Speaking("alice"))
}

func TestPacketWithoutExtensionIsIgnored(t *testing.T) {
	m := NewMonitor()
	m.observe("alice", &rtp.Packet{})
	require.False(t, m.Speaking("alice"))
}

func TestCustomExtensionID(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewMonitor(WithClock(clock.now), WithExtensionID(3))

	m.observe("alice", mockAudioPacket(t, 3, 20, true))
	require.True(t, m.Speaking("alice"))

	// Packets tagged with another id carry no usable level
	m.observe("bob", mockAudioPacket(t, 5, 20, true))
	require.False(t, m.Speaking("bob"))
}

func TestUnknownIdentityIsNeverSpeaking(t *testing.T) {
	m := NewMonitor()
	require.False(t, m.Speaking("ghost"))

	speaking, known := m.Probe("ghost")
	require.False(t, speaking)
	require.False(t, known)
}

func TestUnwatchDropsLevelState(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewMonitor(WithClock(clock.now))

	m.observe("alice", mockAudioPacket(t, DefaultAudioLevelExtensionID, 30, true))
	require.True(t, m.Speaking("alice"))

	m.Unwatch("alice")
	require.False(t, m.Speaking("alice"))
	require.False(t, m.Tracking("alice"))
}
