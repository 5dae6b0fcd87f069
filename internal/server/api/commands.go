package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/robowave/internal/command"
	"github.com/ayusman/robowave/internal/gesture"
)

// Trigger sends a gesture through the pipeline's cooldown and channel.
type Trigger interface {
	Trigger(ctx context.Context, sym gesture.Symbol, now time.Time) command.Dispatch
	Now() time.Time
}

// CommandHandler handles POST /api/commands.
type CommandHandler struct {
	trigger Trigger
}

// NewCommandHandler creates a handler sending through t.
func NewCommandHandler(t Trigger) *CommandHandler {
	return &CommandHandler{trigger: t}
}

type commandRequest struct {
	Gesture string `json:"gesture"`
}

type commandResponse struct {
	Gesture string          `json:"gesture"`
	Outcome string          `json:"outcome"`
	Record  *command.Record `json:"record,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ServeHTTP implements the http.Handler interface.
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	sym, ok := gesture.ParseSymbol(req.Gesture)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown gesture %q", req.Gesture))
		return
	}

	d := h.trigger.Trigger(r.Context(), sym, h.trigger.Now())

	resp := commandResponse{
		Gesture: sym.String(),
		Outcome: d.Outcome.String(),
	}
	if d.Err != nil {
		resp.Error = d.Err.Error()
	}

	switch d.Outcome {
	case command.Sent:
		rec := d.Record
		resp.Record = &rec
		writeJSON(w, http.StatusAccepted, resp)
	case command.Cooldown:
		writeJSON(w, http.StatusTooManyRequests, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}
