package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aether-service/internal/domain"
	"aether-service/internal/dto"
	"aether-service/internal/response"
)

func newGatewayServer(t *testing.T, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPGateway(server.URL+"/", 2*time.Second, zap.NewNop(), nil)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestHTTPGateway_List(t *testing.T) {
	g := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/workspaces", r.URL.Path)
		writeJSON(w, http.StatusOK, response.SuccessResponse{Success: true, Data: []dto.WorkspaceResponse{
			{ID: "ws-2", Name: "B"},
			{ID: "ws-1", Name: "A"},
		}})
	})

	list, err := g.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ws-2", list[0].ID)
}

func TestHTTPGateway_Get(t *testing.T) {
	active := "w1"
	g := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/workspaces/ws-1" {
			writeJSON(w, http.StatusNotFound, response.ErrorResponse{
				Error: response.ErrorBody{Code: response.ErrCodeNotFound, Message: "Workspace not found"},
			})
			return
		}
		writeJSON(w, http.StatusOK, response.SuccessResponse{Success: true, Data: dto.WorkspaceResponse{
			ID:   "ws-1",
			Name: "Desk",
			WindowsState: domain.WindowsState{
				Windows:        []domain.Window{{ID: "w1", Type: domain.WindowTypeNotes}},
				ActiveWindowID: &active,
			},
		}})
	})

	ws, err := g.Get(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "Desk", ws.Name)
	require.Len(t, ws.WindowsState.Windows, 1)
	assert.Equal(t, "w1", *ws.WindowsState.ActiveWindowID)

	_, err = g.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestHTTPGateway_Create(t *testing.T) {
	var got dto.CreateWorkspaceRequest
	g := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, response.SuccessResponse{Success: true, Data: dto.WorkspaceResponse{
			ID:           "ws-new",
			Name:         got.Name,
			WindowsState: *got.WindowsState,
		}})
	})

	state := domain.WindowsState{Windows: []domain.Window{{ID: "w1", Type: domain.WindowTypeTerminal}}}
	ws, err := g.Create(context.Background(), "Desk", state)
	require.NoError(t, err)
	assert.Equal(t, "ws-new", ws.ID)
	assert.Equal(t, "Desk", got.Name)
	require.NotNil(t, got.WindowsState)
	assert.Len(t, got.WindowsState.Windows, 1)
}

func TestHTTPGateway_CreateValidationError(t *testing.T) {
	g := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, response.ErrorResponse{
			Error: response.ErrorBody{Code: response.ErrCodeValidation, Message: "Invalid workspace data"},
		})
	})

	_, err := g.Create(context.Background(), "", domain.WindowsState{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, response.ErrCodeValidation, apiErr.Code)
}

func TestHTTPGateway_Update(t *testing.T) {
	var raw map[string]interface{}
	g := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		if r.URL.Path == "/api/workspaces/gone" {
			writeJSON(w, http.StatusNotFound, response.ErrorResponse{})
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeJSON(w, http.StatusOK, response.SuccessResponse{Success: true, Data: dto.WorkspaceResponse{ID: "ws-1"}})
	})

	state := domain.WindowsState{Windows: []domain.Window{}}
	ws, err := g.Update(context.Background(), "ws-1", dto.UpdateWorkspaceRequest{WindowsState: &state})
	require.NoError(t, err)
	assert.Equal(t, "ws-1", ws.ID)
	assert.NotContains(t, raw, "name")
	assert.Contains(t, raw, "windowsState")

	_, err = g.Update(context.Background(), "gone", dto.UpdateWorkspaceRequest{WindowsState: &state})
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestHTTPGateway_Delete(t *testing.T) {
	g := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/api/workspaces/ws-1":
			w.WriteHeader(http.StatusNoContent)
		case "/api/workspaces/gone":
			writeJSON(w, http.StatusNotFound, response.ErrorResponse{})
		default:
			writeJSON(w, http.StatusServiceUnavailable, response.ErrorResponse{
				Error: response.ErrorBody{Code: response.ErrCodeUnavailable, Message: "Database unavailable"},
			})
		}
	})

	deleted, err := g.Delete(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = g.Delete(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = g.Delete(context.Background(), "other")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestHTTPGateway_Unreachable(t *testing.T) {
	g := NewHTTPGateway("http://127.0.0.1:1", 200*time.Millisecond, zap.NewNop(), nil)

	_, err := g.List(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrWorkspaceNotFound))
}
