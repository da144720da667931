package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
	"github.com/querybench/querybench-engine/pkg/models"
	"github.com/querybench/querybench-engine/pkg/services"
)

// ConnectionService is the surface of the service layer the handlers use.
type ConnectionService interface {
	Create(ctx context.Context, input services.ConnectionInput) (*models.Connection, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	List(ctx context.Context) ([]*models.Connection, error)
	Update(ctx context.Context, id uuid.UUID, input services.ConnectionInput) (*models.Connection, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Test(ctx context.Context, input services.ConnectionInput) error
	TestStored(ctx context.Context, id uuid.UUID) error

	Query(ctx context.Context, id uuid.UUID, query string) (*datasource.QueryResult, error)
	QueryPaginated(ctx context.Context, id uuid.UUID, query string, page datasource.Page) (*datasource.PageResult, error)

	ListDatabases(ctx context.Context, id uuid.UUID) ([]string, error)
	ListSchemas(ctx context.Context, id uuid.UUID, database string) ([]string, error)
	ListTables(ctx context.Context, id uuid.UUID, database, schema string) ([]datasource.TableInfo, error)
	ListColumns(ctx context.Context, id uuid.UUID, database, schema, table string) ([]datasource.ColumnDetail, error)
	ListAllColumns(ctx context.Context, id uuid.UUID) ([]datasource.TableColumns, error)
}

// ConnectionResponse is the wire shape of a stored connection. The secret is
// omitted on purpose.
type ConnectionResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Config    map[string]any `json:"config"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// ListConnectionsResponse wraps the array for frontend compatibility.
type ListConnectionsResponse struct {
	Connections []ConnectionResponse `json:"connections"`
}

// TestConnectionResponse reports a connectivity probe outcome.
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ConnectionsHandler handles connection lifecycle HTTP requests.
type ConnectionsHandler struct {
	service ConnectionService
	logger  *zap.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(service ConnectionService, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{service: service, logger: logger}
}

// RegisterRoutes registers the connections handler's routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connections", h.List)
	mux.HandleFunc("POST /api/connections", h.Create)
	mux.HandleFunc("GET /api/connections/{id}", h.Get)
	mux.HandleFunc("PUT /api/connections/{id}", h.Update)
	mux.HandleFunc("DELETE /api/connections/{id}", h.Delete)
	mux.HandleFunc("POST /api/connections/test", h.TestConnection)
	mux.HandleFunc("POST /api/connections/{id}/test", h.TestStored)
}

// List handles GET /api/connections.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	connections, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to list connections")
		return
	}

	data := ListConnectionsResponse{
		Connections: make([]ConnectionResponse, len(connections)),
	}
	for i, conn := range connections {
		data.Connections[i] = toConnectionResponse(conn)
	}
	h.writeJSON(w, http.StatusOK, data)
}

// Create handles POST /api/connections.
func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.ConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	conn, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, err, "Failed to create connection")
		return
	}
	h.writeJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

// Get handles GET /api/connections/{id}.
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	conn, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get connection")
		return
	}
	h.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// Update handles PUT /api/connections/{id}.
func (h *ConnectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var input services.ConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	conn, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.writeError(w, err, "Failed to update connection")
		return
	}
	h.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// Delete handles DELETE /api/connections/{id}.
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to delete connection")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// TestConnection handles POST /api/connections/test. The probe never stores
// anything, so failure is a normal 200 with success=false rather than an
// error status.
func (h *ConnectionsHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var input services.ConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	if err := h.service.Test(r.Context(), input); err != nil {
		h.writeJSON(w, http.StatusOK, TestConnectionResponse{Success: false, Message: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, TestConnectionResponse{Success: true})
}

// TestStored handles POST /api/connections/{id}/test.
func (h *ConnectionsHandler) TestStored(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.TestStored(r.Context(), id); err != nil {
		h.writeJSON(w, http.StatusOK, TestConnectionResponse{Success: false, Message: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, TestConnectionResponse{Success: true})
}

func (h *ConnectionsHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.badRequest(w, "Invalid connection ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ConnectionsHandler) badRequest(w http.ResponseWriter, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, "bad_request", message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *ConnectionsHandler) writeError(w http.ResponseWriter, err error, logMsg string) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(logMsg, zap.Error(err))
	}
	if werr := ErrorResponse(w, status, code, err.Error()); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}

func (h *ConnectionsHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func toConnectionResponse(conn *models.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:        conn.ID.String(),
		Name:      conn.Name,
		Type:      conn.Type,
		Config:    conn.Config,
		CreatedAt: conn.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conn.UpdatedAt.Format(time.RFC3339),
	}
}
