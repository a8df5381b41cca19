package resource

// Handle is an opaque reference to a table entry.
// Handle 0 is reserved and always invalid.
type Handle uint32

// None is the parent of top-level entries.
const None Handle = 0

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	}
	return "unknown"
}

// Event represents a lifecycle notification.
type Event struct {
	Value  any
	Handle Handle
	Parent Handle
	Type   EventType
}

// Observer receives lifecycle notifications. Observers run synchronously on
// the goroutine that changed the table and must not call back into it.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) {
	f(e)
}

// Closer is implemented by values that release resources when removed.
// A Close error keeps the entry in the table.
type Closer interface {
	Close() error
}
