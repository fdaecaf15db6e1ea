package emitter

import (
	"sync"
)

type Record struct {
	Event Event
	Data  interface{}
}

// Recorder keeps every event emitted on an emitter.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func NewRecorder(e *Emitter) *Recorder {
	r := &Recorder{}

	e.OnAny(func(event Event, data interface{}) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.records = append(r.records, Record{Event: event, Data: data})
	})

	return r
}

func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Record(nil), r.records...)
}

func (r *Recorder) Events() []Event {
	var events []Event
	for _, record := range r.Records() {
		events = append(events, record.Event)
	}

	return events
}

// Data returns the payloads of every occurrence of event.
func (r *Recorder) Data(event Event) []interface{} {
	var data []interface{}
	for _, record := range r.Records() {
		if record.Event == event {
			data = append(data, record.Data)
		}
	}

	return data
}

// Last returns the most recent record.
func (r *Recorder) Last() (Record, bool) {
	records := r.Records()
	if len(records) == 0 {
		return Record{}, false
	}

	return records[len(records)-1], true
}
