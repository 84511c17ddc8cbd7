package console

import (
	"strings"
	"time"

	"github.com/Tyrowin/linecast/internal/broadcast"
)

// Event types published to observers.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventError      = "error"
	EventSent       = "sent"
)

// Event is the JSON document pushed to every observer.
type Event struct {
	Type    string    `json:"type"`
	ID      uint64    `json:"id,omitempty"`
	Host    string    `json:"host,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

func connEvent(kind string, c *broadcast.Connection) Event {
	return Event{Type: kind, ID: c.ID(), Host: c.HostName(), Time: time.Now().UTC()}
}

// Command is what an observer sends to request a broadcast.
type Command struct {
	Content string `json:"content"`
}

// Backend is the broadcast side the console drives. *broadcast.Manager
// implements it.
type Backend interface {
	SendMessage(text string)
	Len() int
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

// singleLine trims text and reports whether it is a non-empty message that
// fits on one line of the wire protocol.
func singleLine(text string) (string, bool) {
	text = strings.TrimSpace(text)
	return text, text != "" && !strings.ContainsAny(text, "\r\n")
}
