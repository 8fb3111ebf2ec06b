package events

import "sync"

// Record is an emitted event together with the contract that emitted it.
type Record struct {
	Seq     uint64
	Emitter string
	Event   Event
}

// Log is the append-only event log of one chain.
type Log struct {
	mu      sync.RWMutex
	records []Record
}

func NewLog() *Log {
	return &Log{}
}

// Emit appends ev.
func (l *Log) Emit(emitter string, ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, Record{Seq: uint64(len(l.records)), Emitter: emitter, Event: ev})
}

// All returns a snapshot of every record in emission order.
func (l *Log) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// ByName returns the events called name in emission order.
func (l *Log) ByName(name string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, r := range l.records {
		if r.Event.Name() == name {
			out = append(out, r.Event)
		}
	}
	return out
}

// Last returns the most recent event called name.
func (l *Log) Last(name string) (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].Event.Name() == name {
			return l.records[i].Event, true
		}
	}
	return nil, false
}

// Since returns the records appended after seq records have been seen.
func (l *Log) Since(seen int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seen >= len(l.records) {
		return nil
	}
	out := make([]Record, len(l.records)-seen)
	copy(out, l.records[seen:])
	return out
}
