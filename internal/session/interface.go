package session

import (
	"time"

	"github.com/weiawesome/live-poll/internal/domain"
)

// Notifier delivers session events to connections. The session calls it
// while holding its lock, so implementations must not block and must not
// call back into the session.
type Notifier interface {
	// Broadcast sends evt to every connection.
	Broadcast(evt *domain.Event)
	// SendTo sends evt to one connection only.
	SendTo(connID string, evt *domain.Event)
	// Terminate sends evt to one connection as its last frame, then closes it.
	Terminate(connID string, evt *domain.Event)
}

// Timer is the handle of a scheduled deadline.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
