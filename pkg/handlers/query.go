package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
	"github.com/querybench/querybench-engine/pkg/logging"
)

// QueryRequest is the body of a plain query execution.
type QueryRequest struct {
	ConnectionID string `json:"connection_id"`
	Query        string `json:"query"`
}

// PaginatedQueryRequest adds the windowing fields.
type PaginatedQueryRequest struct {
	ConnectionID string `json:"connection_id"`
	Query        string `json:"query"`
	BatchSize    int    `json:"batch_size"`
	Offset       int    `json:"offset"`
	IncludeCount bool   `json:"include_count"`
}

// QueryHandler handles query execution HTTP requests.
type QueryHandler struct {
	service ConnectionService
	logger  *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(service ConnectionService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{service: service, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Run)
	mux.HandleFunc("POST /api/query/paginated", h.RunPaginated)
}

// Run handles POST /api/query.
func (h *QueryHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	id, query, ok := h.validate(w, req.ConnectionID, req.Query)
	if !ok {
		return
	}

	h.logger.Debug("executing query",
		zap.String("connection_id", id.String()),
		zap.String("query", logging.SanitizeQuery(query)))

	result, err := h.service.Query(r.Context(), id, query)
	if err != nil {
		h.writeError(w, err, id)
		return
	}
	h.writeJSON(w, result)
}

// RunPaginated handles POST /api/query/paginated.
func (h *QueryHandler) RunPaginated(w http.ResponseWriter, r *http.Request) {
	var req PaginatedQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	id, query, ok := h.validate(w, req.ConnectionID, req.Query)
	if !ok {
		return
	}

	h.logger.Debug("executing paginated query",
		zap.String("connection_id", id.String()),
		zap.Int("offset", req.Offset),
		zap.String("query", logging.SanitizeQuery(query)))

	result, err := h.service.QueryPaginated(r.Context(), id, query, datasource.Page{
		BatchSize:    req.BatchSize,
		Offset:       req.Offset,
		IncludeCount: req.IncludeCount,
	})
	if err != nil {
		h.writeError(w, err, id)
		return
	}
	h.writeJSON(w, result)
}

func (h *QueryHandler) validate(w http.ResponseWriter, rawID, query string) (uuid.UUID, string, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		h.badRequest(w, "Invalid connection ID format")
		return uuid.Nil, "", false
	}
	query = strings.TrimSpace(query)
	if query == "" {
		h.badRequest(w, "Query must not be empty")
		return uuid.Nil, "", false
	}
	return id, query, true
}

func (h *QueryHandler) badRequest(w http.ResponseWriter, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, "bad_request", message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *QueryHandler) writeError(w http.ResponseWriter, err error, id uuid.UUID) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Query execution failed",
			zap.String("connection_id", id.String()),
			zap.String("error", logging.SanitizeError(err)))
	}
	if werr := ErrorResponse(w, status, code, err.Error()); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}

func (h *QueryHandler) writeJSON(w http.ResponseWriter, data any) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
