package watcher

import "time"

// EventType represents the type of file event.
type EventType int

const (
	// EventChanged is emitted once a written or replaced file has settled.
	EventChanged EventType = iota
	// EventRemoved is emitted when the file disappears.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes a settled change to the watched file.
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}
