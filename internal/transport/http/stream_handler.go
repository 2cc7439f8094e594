package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "fintools/internal/errors"
	"fintools/internal/tools"
)

// StreamHandler serves streamed invocations over server-sent events.
type StreamHandler struct {
	streamer *tools.Streamer
	errs     *apierrors.ErrorHandler
	logger   *slog.Logger
}

// NewStreamHandler creates the handler over injected collaborators.
func NewStreamHandler(streamer *tools.Streamer, errs *apierrors.ErrorHandler, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		errs:     errs,
		logger:   logger.With(slog.String("component", "stream_handler")),
	}
}

// Stream serves POST /api/tools/stream. Requests rejected before the first
// event get a JSON error response; once the stream is open every outcome,
// failure included, is reported in-band and the response stays 200.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req tools.InvocationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	flusher, _ := w.(http.Flusher)
	sink := &sseSink{w: w, flusher: flusher}

	err := h.streamer.Stream(r.Context(), req, sink)
	if err != nil && !sink.opened {
		h.errs.HandleError(w, r, mapDispatchError(err))
		return
	}
	if err != nil {
		// The consumer disconnected mid-stream; nothing left to write.
		h.logger.DebugContext(r.Context(), "stream aborted",
			slog.String("operation", req.Name),
			slog.String("error", err.Error()))
		return
	}

	sink.terminate()
}

// sseSink writes lifecycle events as server-sent events, opening the stream
// on the first event so pre-flight rejections can still answer with JSON.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	opened  bool
}

func (s *sseSink) Send(e tools.Event) error {
	if !s.opened {
		header := s.w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		header.Set("Access-Control-Allow-Origin", "*")
		s.w.WriteHeader(http.StatusOK)
		s.opened = true
	}

	if err := tools.WriteSSE(s.w, e); err != nil {
		return err
	}
	s.flush()
	return nil
}

// terminate closes the stream with the comment line consumers use as an
// end-of-stream marker.
func (s *sseSink) terminate() {
	if !s.opened {
		return
	}
	if _, err := s.w.Write([]byte(tools.SSETerminator)); err != nil {
		return
	}
	s.flush()
}

func (s *sseSink) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
