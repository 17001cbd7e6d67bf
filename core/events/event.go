package events

// Event is the envelope engines hand to an Emitter.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream consumers (state event log, RPC
// subscribers, metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards everything. Engines default to it so event emission is
// always optional.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// Recorder collects emitted events in order. Tests use it to assert on the
// notification stream without wiring a state manager.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.Events = append(r.Events, evt)
}

// Types returns the event type strings in emission order.
func (r *Recorder) Types() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		out = append(out, evt.EventType())
	}
	return out
}
