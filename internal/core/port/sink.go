package port

// EventSink receives entity update events. *eventstream.EventStream
// satisfies it.
type EventSink interface {
	Publish(evt any)
}
