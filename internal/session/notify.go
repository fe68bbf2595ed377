package session

import "time"

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient message for the user.
type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier receives notifications as they are raised.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Confirm is a synchronous yes/no gate. It returns true to proceed.
type Confirm func(prompt string) bool
