package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/authguard"
	"github.com/labstack/gommon/log"
	"github.com/lithammer/shortuuid/v4"
)

// Record is one archived authorization decision.
type Record struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
	authguard.Entry
}

// maxRetained bounds the in-memory tail of the trail.
const maxRetained = 256

// Trail retains a bounded tail of authorization decisions in memory and,
// when an uploader is configured, archives each record in the background.
// Implements authguard.Recorder.
type Trail struct {
	mu       sync.Mutex
	records  []Record
	uploader Uploader
}

func NewTrail(uploader Uploader) *Trail {
	return &Trail{uploader: uploader}
}

func (t *Trail) Record(e authguard.Entry) {
	r := Record{
		ID:    shortuuid.New(),
		At:    time.Now(),
		Entry: e,
	}

	t.mu.Lock()
	t.records = append(t.records, r)
	if len(t.records) > maxRetained {
		t.records = t.records[len(t.records)-maxRetained:]
	}
	uploader := t.uploader
	t.mu.Unlock()

	if uploader == nil {
		return
	}
	go func() {
		body, err := json.Marshal(r)
		if err != nil {
			log.Errorf("cannot marshal audit record | error: %v, id: %s", err, r.ID)
			return
		}
		key := fmt.Sprintf("audit/%s/%s.json", r.Room, r.ID)
		if err := uploader.Upload(key, bytes.NewReader(body)); err != nil {
			log.Errorf("cannot archive audit record | error: %v, key: %s", err, key)
			return
		}
		log.Debugf("archived audit record | key: %s", key)
	}()
}

// Tail returns a copy of the retained records, oldest first.
func (t *Trail) Tail() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}
