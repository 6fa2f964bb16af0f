package audit

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/authguard"
	"github.com/stretchr/testify/require"
)

type mockUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *mockUploader) Upload(key string, body io.Reader) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	return nil
}

func (u *mockUploader) GetDirectory() string {
	return ""
}

func (u *mockUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.keys))
	copy(out, u.keys)
	return out
}

func TestTrailRetainsRecords(t *testing.T) {
	trail := NewTrail(nil)
	trail.Record(authguard.Entry{
		Room:     "room",
		Identity: "alice",
		Guard:    "admission",
		Allowed:  true,
	})

	tail := trail.Tail()
	require.Len(t, tail, 1)
	require.Equal(t, "alice", tail[0].Identity)
	require.NotEmpty(t, tail[0].ID)
	require.False(t, tail[0].At.IsZero())
}

func TestTrailBoundsRetainedRecords(t *testing.T) {
	trail := NewTrail(nil)
	for i := 0; i < maxRetained+10; i++ {
		trail.Record(authguard.Entry{Room: "room", Identity: "alice"})
	}
	require.Len(t, trail.Tail(), maxRetained)
}

func TestTrailArchivesInBackground(t *testing.T) {
	uploader := &mockUploader{}
	trail := NewTrail(uploader)
	trail.Record(authguard.Entry{Room: "demo", Identity: "alice", Guard: "elevation"})

	require.Eventually(t, func() bool {
		return len(uploader.uploaded()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	key := uploader.uploaded()[0]
	require.True(t, strings.HasPrefix(key, "audit/demo/"))
	require.True(t, strings.HasSuffix(key, ".json"))
}
