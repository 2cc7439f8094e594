package tools

import (
	"context"
	"encoding/json"
)

// Handler executes one operation against validated arguments. It either
// returns an arbitrary JSON-serializable payload or fails with an error
// whose message is surfaced to the caller unmodified.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Property describes one argument in an operation's input schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// InputSchema is the JSON-schema shaped description of an operation's
// arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Operation is one named, schema-described unit of work. Immutable once
// registered.
type Operation struct {
	Name        string
	Description string
	InputSchema InputSchema
	Handler     Handler
}

// InvocationRequest is one call against a named operation.
type InvocationRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Descriptor is the native listing shape.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// AdapterFunction is the inner object of the adapter listing shape.
type AdapterFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  InputSchema `json:"parameters"`
}

// AdapterDescriptor is the listing shape consumed by function-calling
// clients.
type AdapterDescriptor struct {
	Type     string          `json:"type"`
	Function AdapterFunction `json:"function"`
}

// ContentItem is one element of a response envelope.
type ContentItem struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

// Envelope is the synchronous response shape. A handler failure produces an
// envelope whose single item carries IsError, and the transport additionally
// signals a server-side fault status; thin clients may parse either.
type Envelope struct {
	Content []ContentItem `json:"content"`
}

// Faulted reports whether the envelope wraps a handler failure.
func (e *Envelope) Faulted() bool {
	for _, item := range e.Content {
		if item.IsError {
			return true
		}
	}
	return false
}

// successEnvelope wraps a handler payload. String payloads pass through
// verbatim; everything else is serialized as indented JSON.
func successEnvelope(payload any) *Envelope {
	return &Envelope{Content: []ContentItem{{Type: "text", Text: serializePayload(payload)}}}
}

// faultEnvelope wraps a handler failure message.
func faultEnvelope(operation string, err error) *Envelope {
	return &Envelope{Content: []ContentItem{{
		Type:    "text",
		Text:    "Error executing '" + operation + "': " + err.Error(),
		IsError: true,
	}}}
}

func serializePayload(payload any) string {
	if s, ok := payload.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		// Handlers only produce JSON-serializable values; this is a
		// programming error, not a runtime condition.
		return "unserializable payload: " + err.Error()
	}
	return string(data)
}
