package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla connection with a write mutex so the reader loop and
// the submission watcher can both push events safely.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// Wrap adopts an upgraded connection.
func Wrap(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// WriteEvent sends a typed event payload with a write deadline.
func (c *Conn) WriteEvent(event Event, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(EventPayload{Event: event, Data: data})
}

// WriteError sends a typed ErrorResponse.
func (c *Conn) WriteError(errMsg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(ErrorResponse{Event: EventError, Error: errMsg})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func (c *Conn) ReadJSON(v interface{}) error {
	c.ws.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return c.ws.ReadJSON(v)
}
