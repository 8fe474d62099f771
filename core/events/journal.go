package events

import (
	"strings"
	"sync"

	"tokensyndicate/core/types"
)

const defaultJournalCapacity = 4096

// Record is a journal entry tagged with its monotonically increasing sequence.
type Record struct {
	Sequence int64             `json:"sequence"`
	Type     string            `json:"type"`
	Attrs    map[string]string `json:"attributes"`
}

// Journal retains the most recent events in memory. Once the capacity is
// reached the oldest entries are discarded; sequence numbers never repeat.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	next     int64
	entries  []Record
}

// NewJournal constructs a journal bounded to capacity entries. A non-positive
// capacity selects the default.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &Journal{capacity: capacity, next: 1}
}

// Emit implements the Emitter interface. Events that cannot render a payload
// are recorded with their type only.
func (j *Journal) Emit(evt Event) {
	if j == nil || evt == nil {
		return
	}
	var payload *types.Event
	if p, ok := evt.(Payload); ok {
		payload = p.Event().Clone()
	}
	if payload == nil {
		payload = &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, Record{Sequence: j.next, Type: payload.Type, Attrs: payload.Attributes})
	j.next++
	if overflow := len(j.entries) - j.capacity; overflow > 0 {
		j.entries = append([]Record(nil), j.entries[overflow:]...)
	}
}

// List returns up to limit records whose type starts with prefix, newest last.
// A non-positive limit returns every matching record.
func (j *Journal) List(prefix string, limit int) []Record {
	if j == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	j.mu.RLock()
	defer j.mu.RUnlock()
	matched := make([]Record, 0, len(j.entries))
	for _, entry := range j.entries {
		if prefix != "" && !strings.HasPrefix(entry.Type, prefix) {
			continue
		}
		attrs := make(map[string]string, len(entry.Attrs))
		for k, v := range entry.Attrs {
			attrs[k] = v
		}
		matched = append(matched, Record{Sequence: entry.Sequence, Type: entry.Type, Attrs: attrs})
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// Len reports the number of retained records.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}
