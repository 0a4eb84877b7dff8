package notify

import (
	"sync"
	"time"
)

// Level classifies a notification the way the browser renders it.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a transient, user-visible message (a toast).
type Notification struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Success builds a success notification.
func Success(title, description string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Description: description, CreatedAt: time.Now().UTC()}
}

// Error builds an error notification.
func Error(title, description string) Notification {
	return Notification{Level: LevelError, Title: title, Description: description, CreatedAt: time.Now().UTC()}
}

// Info builds an informational notification.
func Info(title, description string) Notification {
	return Notification{Level: LevelInfo, Title: title, Description: description, CreatedAt: time.Now().UTC()}
}

// Notifier receives notifications emitted by session components.
type Notifier interface {
	Notify(n Notification)
}

const defaultInboxLimit = 32

// Inbox buffers notifications for one browser session until the next
// response drains them. The oldest entries are dropped past the limit.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewInbox creates an inbox holding at most limit notifications.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	return &Inbox{limit: limit}
}

// Notify implements Notifier.
func (i *Inbox) Notify(n Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, n)
	if over := len(i.items) - i.limit; over > 0 {
		i.items = append([]Notification(nil), i.items[over:]...)
	}
}

// Drain returns and clears the pending notifications.
func (i *Inbox) Drain() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	items := i.items
	i.items = nil
	if items == nil {
		return []Notification{}
	}
	return items
}

// Len returns the number of pending notifications.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}
