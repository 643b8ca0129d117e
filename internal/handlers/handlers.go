package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"scentledger/internal/domainerr"
	applog "scentledger/internal/log"
	"scentledger/internal/workspace"
)

var (
	workspaceMu sync.RWMutex
	current     *workspace.Workspace
)

// Configure installs the workspace used by the HTTP handlers.
func Configure(ws *workspace.Workspace) {
	workspaceMu.Lock()
	defer workspaceMu.Unlock()
	current = ws
}

func loaded(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	workspaceMu.RLock()
	ws := current
	workspaceMu.RUnlock()
	if ws == nil {
		applog.Debug(r.Context(), "request without workspace", "path", r.URL.Path)
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return nil, false
	}
	return ws, true
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid      *domainerr.ValidationError
		insufficient *domainerr.InsufficientInventoryError
	)
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid input", Fields: invalid.Fields})
	case errors.Is(err, domainerr.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &insufficient):
		writeJSONError(w, http.StatusConflict, insufficient.Error())
	default:
		applog.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		applog.Debug(r.Context(), "invalid json payload", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := r.PathValue(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		applog.Debug(r.Context(), "invalid identifier", "name", name, "value", raw)
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return uint(value), true
}
