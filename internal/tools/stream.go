package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"fintools/internal/infrastructure"
)

// EventType enumerates the lifecycle events a streamed invocation emits.
// Transports bind these to their own framing; the set itself is closed.
type EventType string

const (
	EventStart             EventType = "start"
	EventArgumentsReceived EventType = "arguments_received"
	EventProcessing        EventType = "processing"
	EventData              EventType = "data"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Completion statuses carried by the terminal complete event.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one lifecycle event. Data is the JSON-serializable payload for
// the event type.
type Event struct {
	Type EventType
	Data any
}

// Payload shapes per event type. Every payload carries an emission
// timestamp.
type (
	StartData struct {
		Operation string `json:"operation"`
		Timestamp string `json:"timestamp"`
	}
	ArgumentsReceivedData struct {
		Arguments map[string]any `json:"arguments"`
		Timestamp string         `json:"timestamp"`
	}
	ProcessingData struct {
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
	DataPayload struct {
		Payload     any    `json:"payload"`
		PayloadType string `json:"payload_type"`
		Timestamp   string `json:"timestamp"`
	}
	CompleteData struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	ErrorData struct {
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
)

// EventSink receives lifecycle events in emission order. A Send error means
// the consumer is gone; the streamer stops emitting.
type EventSink interface {
	Send(Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

// SSETerminator is the comment line that closes a server-sent event stream.
const SSETerminator = ":\n\n"

// WriteSSE is the canonical server-sent-events encoding of one lifecycle
// event: an event line naming the type, a data line carrying the JSON
// payload, and a blank line.
func WriteSSE(w io.Writer, e Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}

// Streamer executes invocations as ordered event sequences. Every sequence
// opens with start and, unless the consumer disconnects, closes with exactly
// one complete event.
type Streamer struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *infrastructure.Metrics
	now      func() time.Time
}

// NewStreamer wires a streaming dispatcher around an injected registry.
func NewStreamer(registry *Registry, timeout time.Duration, logger *slog.Logger, metrics *infrastructure.Metrics) *Streamer {
	return &Streamer{registry: registry, timeout: timeout, logger: logger, metrics: metrics, now: time.Now}
}

// Stream runs one invocation, pushing lifecycle events into sink strictly in
// order. Malformed requests and unknown names fail before any event is
// emitted; once start has been sent the sequence always resolves with a
// complete event, carrying failure when the handler errs or the invocation
// is cancelled. The returned error reports sink trouble only.
func (s *Streamer) Stream(ctx context.Context, req InvocationRequest, sink EventSink) error {
	op, err := s.resolve(req)
	if err != nil {
		return err
	}

	start := time.Now()

	if err := sink.Send(Event{Type: EventStart, Data: StartData{
		Operation: req.Name, Timestamp: s.stamp(),
	}}); err != nil {
		return err
	}
	if err := sink.Send(Event{Type: EventArgumentsReceived, Data: ArgumentsReceivedData{
		Arguments: req.Arguments, Timestamp: s.stamp(),
	}}); err != nil {
		return err
	}
	if err := s.checkCancelled(ctx, req.Name, sink, start); err != nil || ctx.Err() != nil {
		return err
	}
	if err := sink.Send(Event{Type: EventProcessing, Data: ProcessingData{
		Message: fmt.Sprintf("Executing %s", req.Name), Timestamp: s.stamp(),
	}}); err != nil {
		return err
	}

	payload, handlerErr := runBounded(ctx, s.timeout, req.Arguments, op.Handler)
	elapsed := time.Since(start)

	if handlerErr != nil {
		s.logger.ErrorContext(ctx, "streamed operation failed",
			slog.String("operation", req.Name),
			slog.String("error", handlerErr.Error()),
			slog.Duration("elapsed", elapsed))
		s.metrics.RecordInvocation(ctx, req.Name, "stream", "failure", elapsed)
		return s.finish(sink, StatusFailure, &ErrorData{
			Message: handlerErr.Error(), Timestamp: s.stamp(),
		})
	}

	if err := sink.Send(Event{Type: EventData, Data: DataPayload{
		Payload: payload, PayloadType: payloadType(payload), Timestamp: s.stamp(),
	}}); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "streamed operation completed",
		slog.String("operation", req.Name),
		slog.Duration("elapsed", elapsed))
	s.metrics.RecordInvocation(ctx, req.Name, "stream", "success", elapsed)
	return s.finish(sink, StatusSuccess, nil)
}

func (s *Streamer) resolve(req InvocationRequest) (*Operation, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}
	if req.Arguments == nil {
		return nil, &ValidationError{Field: "arguments", Message: "is required"}
	}
	op, ok := s.registry.Lookup(req.Name)
	if !ok {
		return nil, &UnknownOperationError{Name: req.Name, Registered: s.registry.Names()}
	}
	return op, nil
}

// checkCancelled resolves the sequence as a failure if the consumer has
// already cancelled between stages.
func (s *Streamer) checkCancelled(ctx context.Context, operation string, sink EventSink, start time.Time) error {
	if ctx.Err() == nil {
		return nil
	}
	s.metrics.RecordInvocation(ctx, operation, "stream", "cancelled", time.Since(start))
	return s.finish(sink, StatusFailure, &ErrorData{
		Message:   fmt.Sprintf("operation cancelled: %v", ctx.Err()),
		Timestamp: s.stamp(),
	})
}

// finish emits the optional error event followed by the terminal complete
// event.
func (s *Streamer) finish(sink EventSink, status string, errData *ErrorData) error {
	if errData != nil {
		if err := sink.Send(Event{Type: EventError, Data: *errData}); err != nil {
			return err
		}
	}
	return sink.Send(Event{Type: EventComplete, Data: CompleteData{
		Status: status, Timestamp: s.stamp(),
	}})
}

func (s *Streamer) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// payloadType names the JSON kind of a handler payload so consumers can
// route it without probing.
func payloadType(payload any) string {
	switch payload.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return "number"
	}

	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "null"
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "object"
	}
}
