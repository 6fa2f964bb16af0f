package notify

import "github.com/labstack/gommon/log"

type logSink struct{}

// NewLogSink writes notifications to the application log. Useful as a
// fallback when no webhooks are configured.
func NewLogSink() Sink {
	return logSink{}
}

func (logSink) Send(n Notification) {
	switch n.Severity {
	case SeverityError:
		log.Errorf("notification | room: %s, title: %s, message: %s", n.Room, n.Title, n.Message)
	case SeverityWarn:
		log.Warnf("notification | room: %s, title: %s, message: %s", n.Room, n.Title, n.Message)
	default:
		log.Infof("notification | room: %s, title: %s, message: %s", n.Room, n.Title, n.Message)
	}
}
