// Package input defines host-neutral input events and a per-frame event queue.
package input

// EventType identifies an input event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
)

// Key is a physical key code. Values follow SDL scancodes.
type Key int

// Keys the viewer binds.
const (
	KeyB      Key = 5
	KeyR      Key = 21
	KeyEscape Key = 41
	KeyF12    Key = 69
)

// Button is a mouse button number.
type Button uint8

// Mouse buttons.
const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	ButtonRight  Button = 3
)

// ButtonMask is a set of held mouse buttons.
type ButtonMask uint32

// Has reports whether b is held.
func (m ButtonMask) Has(b Button) bool {
	return m&(1<<(b-1)) != 0
}

// MaskOf builds a mask from buttons.
func MaskOf(buttons ...Button) ButtonMask {
	var m ButtonMask
	for _, b := range buttons {
		m |= 1 << (b - 1)
	}
	return m
}

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    Key
	Width  int
	Height int
	MouseX int
	MouseY int
	// Relative motion for mouse moves, scroll amount for wheel events
	// (positive Y scrolls away from the user).
	DeltaX  float32
	DeltaY  float32
	Button  Button
	Buttons ButtonMask
}

// Queue collects the events of one frame.
type Queue struct {
	events []Event
	quit   bool
}

// New creates a new event queue.
func New() *Queue {
	return &Queue{
		events: make([]Event, 0, 16),
	}
}

// Reset clears the events of the previous frame.
func (q *Queue) Reset() {
	q.events = q.events[:0]
	q.quit = false
}

// Push appends an event.
func (q *Queue) Push(e Event) {
	if e.Type == EventQuit {
		q.quit = true
	}
	q.events = append(q.events, e)
}

// Events returns the events pushed since the last Reset.
func (q *Queue) Events() []Event {
	return q.events
}

// Quit reports whether a quit event was pushed this frame.
func (q *Queue) Quit() bool {
	return q.quit
}
