package events

// Record is the wire form of an emitted event: a type tag plus flat string
// attributes, suitable for JSON transport and for test assertions.
type Record struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Event represents a structured state change emitted by an economy module.
type Event interface {
	EventType() string
	Record() *Record
}

// Emitter broadcasts events to downstream subscribers (gateway, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Capture collects emitted events in order. It is intended for tests and for
// the gateway's in-memory event feed.
type Capture struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (c *Capture) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	c.Events = append(c.Events, evt)
}

// Types returns the event type tags in emission order.
func (c *Capture) Types() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Events))
	for _, evt := range c.Events {
		out = append(out, evt.EventType())
	}
	return out
}
