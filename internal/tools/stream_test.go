package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records events in emission order.
type captureSink struct {
	events []Event
	failAt int // 1-based send index to fail on; 0 never fails
}

func (s *captureSink) Send(e Event) error {
	if s.failAt > 0 && len(s.events)+1 >= s.failAt {
		return errors.New("consumer gone")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) types() []EventType {
	out := make([]EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func newTestStreamer(t *testing.T, ops ...Operation) *Streamer {
	t.Helper()
	s := NewStreamer(registryWith(t, ops...), time.Second, testLogger(), nil)
	s.now = func() time.Time { return time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC) }
	return s
}

func TestStreamSuccessSequence(t *testing.T) {
	s := newTestStreamer(t, Operation{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"symbol": args["symbol"]}, nil
		},
	})
	sink := &captureSink{}

	err := s.Stream(context.Background(), InvocationRequest{
		Name:      "echo",
		Arguments: map[string]any{"symbol": "AAPL"},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventStart, EventArgumentsReceived, EventProcessing, EventData, EventComplete,
	}, sink.types())

	start := sink.events[0].Data.(StartData)
	assert.Equal(t, "echo", start.Operation)
	assert.NotEmpty(t, start.Timestamp)

	received := sink.events[1].Data.(ArgumentsReceivedData)
	assert.Equal(t, "AAPL", received.Arguments["symbol"])

	data := sink.events[3].Data.(DataPayload)
	assert.Equal(t, "object", data.PayloadType)

	complete := sink.events[4].Data.(CompleteData)
	assert.Equal(t, StatusSuccess, complete.Status)
}

func TestStreamFailureSequence(t *testing.T) {
	s := newTestStreamer(t, Operation{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("upstream returned 500 Internal Server Error")
		},
	})
	sink := &captureSink{}

	err := s.Stream(context.Background(), InvocationRequest{
		Name: "boom", Arguments: map[string]any{},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventStart, EventArgumentsReceived, EventProcessing, EventError, EventComplete,
	}, sink.types())

	errData := sink.events[3].Data.(ErrorData)
	assert.Equal(t, "upstream returned 500 Internal Server Error", errData.Message)

	complete := sink.events[4].Data.(CompleteData)
	assert.Equal(t, StatusFailure, complete.Status)
}

// Both protocols surface the same handler failure wording for the same
// invocation.
func TestFailureMessageAgreesAcrossProtocols(t *testing.T) {
	op := Operation{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("symbol not found")
		},
	}
	req := InvocationRequest{Name: "boom", Arguments: map[string]any{}}

	d := NewDispatcher(registryWith(t, op), time.Second, testLogger(), nil)
	env, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)

	s := newTestStreamer(t, op)
	sink := &captureSink{}
	require.NoError(t, s.Stream(context.Background(), req, sink))

	errData := sink.events[3].Data.(ErrorData)
	assert.Equal(t, fmt.Sprintf("Error executing 'boom': %s", errData.Message), env.Content[0].Text)
}

func TestStreamValidationBeforeAnyEvent(t *testing.T) {
	s := newTestStreamer(t)
	sink := &captureSink{}

	err := s.Stream(context.Background(), InvocationRequest{Arguments: map[string]any{}}, sink)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, sink.events)

	err = s.Stream(context.Background(), InvocationRequest{Name: "missing", Arguments: map[string]any{}}, sink)
	var unknown *UnknownOperationError
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, sink.events)
}

func TestStreamCancelledBetweenStages(t *testing.T) {
	handlerRan := false
	s := newTestStreamer(t, Operation{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			handlerRan = true
			return nil, nil
		},
	})
	sink := &captureSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Stream(ctx, InvocationRequest{Name: "echo", Arguments: map[string]any{}}, sink)
	require.NoError(t, err)
	assert.False(t, handlerRan)

	assert.Equal(t, []EventType{
		EventStart, EventArgumentsReceived, EventError, EventComplete,
	}, sink.types())

	errData := sink.events[2].Data.(ErrorData)
	assert.Contains(t, errData.Message, "operation cancelled")

	complete := sink.events[3].Data.(CompleteData)
	assert.Equal(t, StatusFailure, complete.Status)
}

func TestStreamStopsWhenSinkFails(t *testing.T) {
	s := newTestStreamer(t, Operation{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		},
	})
	sink := &captureSink{failAt: 3}

	err := s.Stream(context.Background(), InvocationRequest{
		Name: "echo", Arguments: map[string]any{},
	}, sink)
	require.Error(t, err)
	assert.Equal(t, []EventType{EventStart, EventArgumentsReceived}, sink.types())
}

func TestWriteSSEWireFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSSE(&buf, Event{Type: EventComplete, Data: CompleteData{
		Status:    StatusSuccess,
		Timestamp: "2025-06-02T14:30:00Z",
	}})
	require.NoError(t, err)

	want := "event: complete\ndata: {\"status\":\"success\",\"timestamp\":\"2025-06-02T14:30:00Z\"}\n\n"
	assert.Equal(t, want, buf.String())
}

func TestPayloadType(t *testing.T) {
	type payload struct{ A int }

	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"text", "string"},
		{true, "boolean"},
		{42, "number"},
		{3.14, "number"},
		{[]any{1, 2}, "array"},
		{map[string]any{"a": 1}, "object"},
		{payload{A: 1}, "object"},
		{&payload{A: 1}, "object"},
		{(*payload)(nil), "null"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, payloadType(tt.in), "payload %#v", tt.in)
	}
}
