package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SchemaHandler serves catalog browsing requests.
type SchemaHandler struct {
	service ConnectionService
	logger  *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(service ConnectionService, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{service: service, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
// Database and schema arrive as query parameters since Snowflake names may
// contain characters awkward in path segments.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connections/{id}/databases", h.ListDatabases)
	mux.HandleFunc("GET /api/connections/{id}/schemas", h.ListSchemas)
	mux.HandleFunc("GET /api/connections/{id}/tables", h.ListTables)
	mux.HandleFunc("GET /api/connections/{id}/columns", h.ListColumns)
}

// ListDatabases handles GET /api/connections/{id}/databases.
func (h *SchemaHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	databases, err := h.service.ListDatabases(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"databases": databases})
}

// ListSchemas handles GET /api/connections/{id}/schemas?database=...
func (h *SchemaHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	schemas, err := h.service.ListSchemas(r.Context(), id, r.URL.Query().Get("database"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"schemas": schemas})
}

// ListTables handles GET /api/connections/{id}/tables?database=...&schema=...
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	schema := q.Get("schema")
	if schema == "" {
		h.badRequest(w, "schema parameter is required")
		return
	}

	tables, err := h.service.ListTables(r.Context(), id, q.Get("database"), schema)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"tables": tables})
}

// ListColumns handles GET /api/connections/{id}/columns. With table and
// schema parameters it returns one table's columns; without them it returns
// the bulk listing for every user table.
func (h *SchemaHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	schema, table := q.Get("schema"), q.Get("table")

	if schema == "" && table == "" {
		grouped, err := h.service.ListAllColumns(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]any{"tables": grouped})
		return
	}
	if schema == "" || table == "" {
		h.badRequest(w, "schema and table parameters are required together")
		return
	}

	columns, err := h.service.ListColumns(r.Context(), id, q.Get("database"), schema, table)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"columns": columns})
}

func (h *SchemaHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.badRequest(w, "Invalid connection ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *SchemaHandler) badRequest(w http.ResponseWriter, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, "bad_request", message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *SchemaHandler) writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Schema request failed", zap.Error(err))
	}
	if werr := ErrorResponse(w, status, code, err.Error()); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}

func (h *SchemaHandler) writeJSON(w http.ResponseWriter, data any) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
