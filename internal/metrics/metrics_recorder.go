package metrics

import "sync"

// Event is one call captured by Recorder
type Event struct {
	Name   string
	Tags   map[string]string
	Fields map[string]interface{}
}

// Recorder keeps every event in memory, for tests of the code that emits them
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Metrics = (*Recorder)(nil)

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) LogEvent(eventName string, tags map[string]string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: eventName, Tags: tags, Fields: fields})
}

func (r *Recorder) LogEntityEvent(eventName string, backend string, fields map[string]interface{}) {
	r.LogEvent(eventName, map[string]string{"backend": backend}, fields)
}

func (r *Recorder) Close() {}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
