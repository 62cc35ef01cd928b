package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionMark     Action = "mark"
	ActionGoTo     Action = "goto"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries any client action. Index is used by goto, Option by
// answer; the other actions take no arguments.
type RequestPayload struct {
	Action Action `json:"action"`
	Option *int   `json:"option,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventState  Event = "state"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

// EventPayload is the envelope for every server→client message.
type EventPayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
