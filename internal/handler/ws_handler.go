package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eduprep/mocktest-backend/internal/middleware"
	"github.com/eduprep/mocktest-backend/internal/service"
	ws "github.com/eduprep/mocktest-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles WebSocket session streaming.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket for live session interaction: every action returns
// the updated session state, and the graded result is pushed the moment the
// session ends, whether the student submitted or the clock ran out.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	studentID := claims.UserID

	eng, err := h.sessionService.EngineFor(c.Request.Context(), examID, studentID)
	if err != nil {
		conn.WriteError("no active session for this exam")
		return
	}

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// The graded event has a single emitter: the watcher fires on the
	// engine's done channel regardless of who ended the session, so a
	// manual submit and a timer expiry look the same to the client.
	closed := make(chan struct{})
	defer close(closed)
	go h.watchGraded(eng.Done(), closed, conn, wsLog, examID, studentID)

	conn.WriteEvent(ws.EventState, eng.View())

	for {
		var msg ws.RequestPayload
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		ctx := c.Request.Context()

		switch msg.Action {
		case ws.ActionAnswer:
			if msg.Option == nil || *msg.Option < 0 || *msg.Option > 3 {
				conn.WriteError("option must be between 0 and 3")
				continue
			}
			eng.SelectAnswer(ctx, *msg.Option)
			conn.WriteEvent(ws.EventState, eng.View())
		case ws.ActionMark:
			eng.ToggleMarkForReview(ctx)
			conn.WriteEvent(ws.EventState, eng.View())
		case ws.ActionGoTo:
			if msg.Index == nil || *msg.Index < 0 {
				conn.WriteError("index must be non-negative")
				continue
			}
			eng.GoToQuestion(ctx, *msg.Index)
			conn.WriteEvent(ws.EventState, eng.View())
		case ws.ActionNext:
			eng.Next(ctx)
			conn.WriteEvent(ws.EventState, eng.View())
		case ws.ActionPrevious:
			eng.Previous(ctx)
			conn.WriteEvent(ws.EventState, eng.View())
		case ws.ActionSubmit:
			// The watcher pushes the graded event once grading lands.
			eng.Submit(ctx)
		case ws.ActionPing:
			conn.WriteEvent(ws.EventPong, nil)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// watchGraded pushes the result report to the client when the session ends.
func (h *WSHandler) watchGraded(done <-chan struct{}, closed <-chan struct{}, conn *ws.Conn, wsLog zerolog.Logger, examID uuid.UUID, studentID int) {
	select {
	case <-closed:
		return
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := h.sessionService.Result(ctx, examID, studentID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Result report after grading failed")
		conn.WriteError("grading failed")
		return
	}

	wsLog.Info().Int("score", report.Result.Score).Msg("Session graded")
	conn.WriteEvent(ws.EventGraded, report)
}
