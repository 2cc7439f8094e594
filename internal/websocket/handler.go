// Package websocket is the second transport binding of the streaming
// dispatcher: one invocation request in, the lifecycle events back as JSON
// frames, then a normal close.
package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fintools/internal/tools"
)

const writeTimeout = 10 * time.Second

// frame is the wire shape of one lifecycle event.
type frame struct {
	Type tools.EventType `json:"type"`
	Data any             `json:"data"`
}

// Handler upgrades connections and streams one invocation per connection.
type Handler struct {
	streamer *tools.Streamer
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handler over the streaming dispatcher.
func NewHandler(streamer *tools.Streamer, logger *slog.Logger) *Handler {
	return &Handler{
		streamer: streamer,
		logger:   logger.With(slog.String("component", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The HTTP middleware chain already enforces origin policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs one invocation: it reads a single request frame, pushes the
// event sequence back and closes the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	var req tools.InvocationRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.closeWith(conn, websocket.CloseInvalidFramePayloadData, "invalid request frame")
		return
	}

	sink := tools.SinkFunc(func(e tools.Event) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(frame{Type: e.Type, Data: e.Data})
	})

	if err := h.streamer.Stream(r.Context(), req, sink); err != nil {
		// Pre-flight rejections never emitted an event; report them in-band
		// so the client is not left with a bare close.
		switch err.(type) {
		case *tools.ValidationError, *tools.UnknownOperationError:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = conn.WriteJSON(frame{
				Type: tools.EventError,
				Data: tools.ErrorData{
					Message:   err.Error(),
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
		default:
			h.logger.DebugContext(r.Context(), "websocket stream aborted",
				slog.String("operation", req.Name),
				slog.String("error", err.Error()))
			return
		}
	}

	h.closeWith(conn, websocket.CloseNormalClosure, "")
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason))
}
