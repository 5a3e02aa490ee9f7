package manager

// Event represents a manager lifecycle event.
// Names: load_start, load_done, load_error, unload_done, evict_idle,
// evict_skip, generate_done, generate_error, timeout_set.
type Event struct {
	Name    string
	Variant string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic. It may be called
// from the idle timer goroutine.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
