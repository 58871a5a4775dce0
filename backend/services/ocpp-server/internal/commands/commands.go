package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Operator command names.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRefresh = "refresh"
)

// ErrUnknownCommand is returned for command names outside start/stop/refresh.
var ErrUnknownCommand = errors.New("commands: unknown command")

// Commander is the part of the charger that executes operator commands.
type Commander interface {
	RequestStart(ctx context.Context) bool
	RequestStop(ctx context.Context) bool
	RequestRefresh(ctx context.Context)
}

// Request is the wire form of an operator command on the message buses.
type Request struct {
	Action string `json:"action" validate:"required,oneof=start stop refresh"`
}

// Response answers a Request.
type Response struct {
	Action   string `json:"action,omitempty"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Execute runs one command. Refresh is best effort and always reads as accepted.
func Execute(ctx context.Context, c Commander, action string) (bool, error) {
	switch action {
	case ActionStart:
		return c.RequestStart(ctx), nil
	case ActionStop:
		return c.RequestStop(ctx), nil
	case ActionRefresh:
		c.RequestRefresh(ctx)
		return true, nil
	}
	return false, fmt.Errorf("%w %q", ErrUnknownCommand, action)
}

// Handler decodes, validates and executes bus commands.
type Handler struct {
	commander Commander
	validate  *validator.Validate
}

// NewHandler returns handler for commander.
func NewHandler(commander Commander) *Handler {
	return &Handler{commander: commander, validate: validator.New()}
}

// Handle accepts either a JSON Request or a bare command name such as "start".
func (h *Handler) Handle(ctx context.Context, data []byte) Response {
	req, err := parseRequest(data)
	if err != nil {
		return Response{Error: err.Error()}
	}
	if err := h.validate.Struct(req); err != nil {
		return Response{Action: req.Action, Error: fmt.Sprintf("invalid command %q", req.Action)}
	}

	accepted, err := Execute(ctx, h.commander, req.Action)
	if err != nil {
		return Response{Action: req.Action, Error: err.Error()}
	}
	return Response{Action: req.Action, Accepted: accepted}
}

func parseRequest(data []byte) (Request, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var req Request
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return Request{}, fmt.Errorf("invalid command payload: %w", err)
		}
		req.Action = strings.ToLower(strings.TrimSpace(req.Action))
		return req, nil
	}
	return Request{Action: strings.ToLower(text)}, nil
}
