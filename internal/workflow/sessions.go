package workflow

import (
	"sync"

	"projectflow/internal/notify"
)

// Sessions pairs every signed-in user with one Controller and its
// notification queue. Sessions are created on first use and live until
// Close.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	build    func(owner string) *Controller
}

// NewSessions uses build to create the controller for a user seen for the
// first time. build must give each controller its own queue.
func NewSessions(build func(owner string) *Controller) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Controller),
		build:    build,
	}
}

// Controller returns owner's controller, creating it if needed.
func (s *Sessions) Controller(owner string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[owner]
	if !ok {
		c = s.build(owner)
		s.sessions[owner] = c
	}
	return c
}

// Queue is shorthand for Controller(owner).Queue().
func (s *Sessions) Queue(owner string) *notify.Queue {
	return s.Controller(owner).Queue()
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close clears every queue so no expiry timer outlives the server.
func (s *Sessions) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Controller)
	s.mu.Unlock()
	for _, c := range sessions {
		c.Queue().ClearAll()
	}
}
