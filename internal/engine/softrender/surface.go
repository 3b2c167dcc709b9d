package softrender

import (
	"sync"

	"github.com/Faultbox/stlviewer/internal/engine/input"
)

// Surface is an offscreen output with a scripted event source.
type Surface struct {
	mu       sync.Mutex
	width    int
	height   int
	pending  []input.Event
	presents int
	onPoll   func(polls int) []input.Event
	polls    int
}

// NewSurface creates a surface of the given size.
func NewSurface(width, height int) *Surface {
	return &Surface{width: width, height: height}
}

// Size returns the surface size.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Push queues events for the next PollEvents. Resize events also change
// the reported size.
func (s *Surface) Push(events ...input.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.Type == input.EventWindowResize {
			s.width, s.height = e.Width, e.Height
		}
	}
	s.pending = append(s.pending, events...)
}

// OnPoll installs a callback that supplies extra events on each poll. The
// argument counts polls starting at 1.
func (s *Surface) OnPoll(fn func(polls int) []input.Event) {
	s.mu.Lock()
	s.onPoll = fn
	s.mu.Unlock()
}

// PollEvents moves queued events into q.
func (s *Surface) PollEvents(q *input.Queue) {
	s.mu.Lock()
	s.polls++
	events := s.pending
	s.pending = nil
	fn, polls := s.onPoll, s.polls
	s.mu.Unlock()

	if fn != nil {
		events = append(events, fn(polls)...)
	}
	for _, e := range events {
		q.Push(e)
	}
}

// Present counts a finished frame.
func (s *Surface) Present() {
	s.mu.Lock()
	s.presents++
	s.mu.Unlock()
}

// Presents returns the number of presented frames.
func (s *Surface) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}
