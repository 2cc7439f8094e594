package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintools/internal/infrastructure"
)

// Dispatcher executes synchronous invocations. Every call that reaches a
// handler produces exactly one envelope; malformed requests and unknown
// names are rejected before the handler runs and never produce one.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *infrastructure.Metrics
}

// NewDispatcher wires a dispatcher around an injected registry. timeout
// bounds each invocation; zero means no bound.
func NewDispatcher(registry *Registry, timeout time.Duration, logger *slog.Logger, metrics *infrastructure.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, timeout: timeout, logger: logger, metrics: metrics}
}

// Dispatch runs one invocation and wraps the result in an envelope. A
// handler failure is a valid response, not a Go error: it comes back as a
// faulted envelope with err == nil so the transport can attach its own
// status signal.
func (d *Dispatcher) Dispatch(ctx context.Context, req InvocationRequest) (*Envelope, error) {
	op, err := d.resolve(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	payload, handlerErr := runBounded(ctx, d.timeout, req.Arguments, op.Handler)
	elapsed := time.Since(start)

	if handlerErr != nil {
		d.logger.ErrorContext(ctx, "operation failed",
			slog.String("operation", req.Name),
			slog.String("error", handlerErr.Error()),
			slog.Duration("elapsed", elapsed))
		d.metrics.RecordInvocation(ctx, req.Name, "sync", "failure", elapsed)
		return faultEnvelope(req.Name, handlerErr), nil
	}

	d.logger.InfoContext(ctx, "operation completed",
		slog.String("operation", req.Name),
		slog.Duration("elapsed", elapsed))
	d.metrics.RecordInvocation(ctx, req.Name, "sync", "success", elapsed)
	return successEnvelope(payload), nil
}

// resolve validates the request shape and looks up the operation.
func (d *Dispatcher) resolve(req InvocationRequest) (*Operation, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}
	if req.Arguments == nil {
		return nil, &ValidationError{Field: "arguments", Message: "is required"}
	}
	op, ok := d.registry.Lookup(req.Name)
	if !ok {
		return nil, &UnknownOperationError{Name: req.Name, Registered: d.registry.Names()}
	}
	return op, nil
}

// runBounded executes a handler under the invocation deadline. When the
// deadline fires or the caller cancels, the invocation resolves immediately
// as a failure; a result the handler produces afterward is discarded.
func runBounded(ctx context.Context, timeout time.Duration, args map[string]any, handler Handler) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		payload, err := handler(ctx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("operation cancelled: %w", ctx.Err())
	}
}
