package graphql

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shelflineapp/shelfline-server/internal/service"
)

// Request is a GraphQL request over HTTP POST.
type Request struct {
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
}

// Handler serves GraphQL over HTTP. Queries and mutations run over POST;
// subscription requests arrive as websocket upgrades and are delegated to
// the websocket handler.
type Handler struct {
	schema *Schema
	users  *service.UserService
	ws     *wsHandler
	logger *slog.Logger
}

// NewHandler creates the /graphql endpoint handler.
func NewHandler(schema *Schema, users *service.UserService, logger *slog.Logger) *Handler {
	return &Handler{
		schema: schema,
		users:  users,
		ws:     newWSHandler(schema, users, logger),
		logger: logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebsocketUpgrade(r) {
		h.ws.ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		h.writeResult(w, http.StatusBadRequest, &graphql.Result{
			Errors: errorsFromMessage("invalid request body"),
		})
		return
	}
	if req.Query == "" {
		h.writeResult(w, http.StatusBadRequest, &graphql.Result{
			Errors: errorsFromMessage("query is required"),
		})
		return
	}

	ctx := BuildContext(r.Context(), r.Header.Get("Authorization"), h.users)

	result := graphql.Do(graphql.Params{
		Schema:         h.schema.Schema(),
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})

	// GraphQL errors ride inside a 200 response; transport-level failures
	// were handled above.
	h.writeResult(w, http.StatusOK, result)
}

func (h *Handler) writeResult(w http.ResponseWriter, status int, result *graphql.Result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, result); err != nil && h.logger != nil {
		h.logger.Error("failed to encode graphql response", "error", err)
	}
}
