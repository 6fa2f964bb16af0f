package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWebhookSinkPostsNotification(t *testing.T) {
	received := make(chan Notification, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		received <- n
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink([]string{server.URL})
	sent := Notification{
		Room:     "room",
		Title:    "Now speaking",
		Message:  "alice is now speaking",
		Kind:     KindNormal,
		Severity: SeverityInfo,
		Timeout:  TimeoutShort,
	}
	sink.Send(sent)

	select {
	case got := <-received:
		require.Equal(t, sent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not called")
	}
}

func TestWebhookSinkFansOutToAllURLs(t *testing.T) {
	received := make(chan string, 2)
	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			received <- name
			w.WriteHeader(http.StatusOK)
		}
	}
	first := httptest.NewServer(handler("first"))
	defer first.Close()
	second := httptest.NewServer(handler("second"))
	defer second.Close()

	sink := NewWebhookSink([]string{first.URL, second.URL})
	sink.Send(Notification{Title: "test"})

	var names []string
	for i := 0; i < 2; i++ {
		select {
		case name := <-received:
			names = append(names, name)
		case <-time.After(2 * time.Second):
			t.Fatal("not all webhooks were called")
		}
	}
	require.ElementsMatch(t, []string{"first", "second"}, names)
}

func TestCombineDeliversToEverySink(t *testing.T) {
	var a, b []Notification
	sink := Combine(
		sinkFunc(func(n Notification) { a = append(a, n) }),
		sinkFunc(func(n Notification) { b = append(b, n) }),
	)

	sink.Send(Notification{Title: "test"})
	require.Len(t, a, 1)
	require.Len(t, b, 1)
}

type sinkFunc func(Notification)

func (f sinkFunc) Send(n Notification) { f(n) }
