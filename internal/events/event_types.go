package events

import (
	"time"

	"github.com/fluxo-erp/gateway/internal/domain"
)

// EventType enumerates auth state transitions pushed by the session store.
type EventType string

const (
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
	EventUserUpdated      EventType = "USER_UPDATED"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
)

// Event is one auth state change. Session is the session in effect after
// the change, or nil when there is none.
type Event struct {
	Type      EventType
	Session   *domain.Session
	Timestamp time.Time
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, session *domain.Session) Event {
	return Event{Type: t, Session: session, Timestamp: time.Now()}
}
