package notify

// Kind classifies how a notification should be rendered.
type Kind string

const (
	KindNormal  Kind = "normal"
	KindWarning Kind = "warning"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Timeout classes for how long a notification stays visible.
type Timeout string

const (
	TimeoutShort  Timeout = "short"
	TimeoutMedium Timeout = "medium"
	TimeoutLong   Timeout = "long"
	TimeoutSticky Timeout = "sticky"
)

// Notification is the structured tuple delivered to the sink. Delivery is
// fire and forget; nothing in the control plane consumes a return value.
type Notification struct {
	Room     string   `json:"room"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Timeout  Timeout  `json:"timeout"`
}

// Sink accepts notifications for delivery.
type Sink interface {
	Send(n Notification)
}

type multiSink struct {
	sinks []Sink
}

// Combine fans a notification out to several sinks.
func Combine(sinks ...Sink) Sink {
	return &multiSink{sinks}
}

func (m *multiSink) Send(n Notification) {
	for _, s := range m.sinks {
		s.Send(n)
	}
}
