package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "fintools/internal/errors"
	"fintools/internal/tools"
)

// ToolsHandler serves the catalog listing and synchronous invocations.
type ToolsHandler struct {
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	errs       *apierrors.ErrorHandler
	logger     *slog.Logger
}

// NewToolsHandler creates the handler over injected collaborators.
func NewToolsHandler(registry *tools.Registry, dispatcher *tools.Dispatcher, errs *apierrors.ErrorHandler, logger *slog.Logger) *ToolsHandler {
	return &ToolsHandler{
		registry:   registry,
		dispatcher: dispatcher,
		errs:       errs,
		logger:     logger.With(slog.String("component", "tools_handler")),
	}
}

// List serves GET /api/tools. The optional format query parameter selects
// the listing shape: "native" (default) or "adapter".
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "native":
		render.JSON(w, r, map[string]any{"tools": h.registry.List()})
	case "adapter":
		render.JSON(w, r, map[string]any{"tools": h.registry.ListAdapter()})
	default:
		h.errs.HandleError(w, r, apierrors.ValidationError("format",
			"must be 'native' or 'adapter', got '"+format+"'"))
	}
}

// Invoke serves POST /api/tools/invoke. A handler failure still carries a
// response envelope; the 500 status is the transport-level fault signal.
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req tools.InvocationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	env, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		h.errs.HandleError(w, r, mapDispatchError(err))
		return
	}

	if env.Faulted() {
		render.Status(r, http.StatusInternalServerError)
	}
	render.JSON(w, r, env)
}

// mapDispatchError translates core dispatch errors into API error responses.
func mapDispatchError(err error) error {
	switch e := err.(type) {
	case *tools.ValidationError:
		return apierrors.ValidationError(e.Field, e.Message)
	case *tools.UnknownOperationError:
		return apierrors.UnknownOperationError(e.Name, e.Registered)
	default:
		return err
	}
}
