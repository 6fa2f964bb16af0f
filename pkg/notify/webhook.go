package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/gommon/log"
)

type webhookSink struct {
	urls   []string
	client http.Client
}

// NewWebhookSink posts every notification as JSON to each configured URL.
// Posts run in the background and failures are logged, never retried; the
// next notification carries fresh state anyway.
func NewWebhookSink(urls []string) Sink {
	return &webhookSink{
		urls: urls,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (w *webhookSink) Send(n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		log.Errorf("error marshalling notification | error: %v, notification: %v", err, n)
		return
	}

	for _, hook := range w.urls {
		go func(url string) {
			_, err := w.client.Post(url, "application/json", bytes.NewBuffer(body))
			if err != nil {
				log.Errorf("error reaching webhook | error: %v, url: %s", err, url)
				return
			}
			log.Debugf("sent notification | url: %s, title: %s", url, n.Title)
		}(hook)
	}
}
