package graphql

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"github.com/shelflineapp/shelfline-server/internal/service"
)

// Message types of the graphql-ws wire protocol.
const (
	wsMsgConnectionInit      = "connection_init"
	wsMsgConnectionAck       = "connection_ack"
	wsMsgConnectionError     = "connection_error"
	wsMsgConnectionTerminate = "connection_terminate"
	wsMsgKeepAlive           = "ka"
	wsMsgStart               = "start"
	wsMsgStop                = "stop"
	wsMsgData                = "data"
	wsMsgError               = "error"
	wsMsgComplete            = "complete"
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsKeepAlivePeriod  = 20 * time.Second
	wsSubprotocolName  = "graphql-ws"
	wsMaxInboundFrames = 1 << 20 // 1 MiB
)

// wsMessage is a single frame of the graphql-ws protocol.
type wsMessage struct {
	Payload jsontext.Value `json:"payload,omitempty"`
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
}

// wsInitPayload carries connection parameters from connection_init.
type wsInitPayload struct {
	Authorization string `json:"Authorization"`
}

// wsHandler upgrades /graphql requests to the graphql-ws protocol and runs
// subscription operations against the schema.
type wsHandler struct {
	schema   *Schema
	users    *service.UserService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func newWSHandler(schema *Schema, users *service.UserService, logger *slog.Logger) *wsHandler {
	return &wsHandler{
		schema: schema,
		users:  users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    []string{wsSubprotocolName},
			// Origin checks are the CORS middleware's job.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// isWebsocketUpgrade reports whether the request asks for a websocket upgrade.
func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}

	client := &wsClient{
		handler:    h,
		conn:       conn,
		connID:     uuid.NewString(),
		operations: make(map[string]context.CancelFunc),
		// The token can arrive on the HTTP upgrade or in connection_init.
		baseCtx: r.Context(),
		authz:   r.Header.Get("Authorization"),
	}
	client.run()
}

// wsClient is one websocket connection with its active operations.
type wsClient struct {
	handler    *wsHandler
	conn       *websocket.Conn
	baseCtx    context.Context
	operations map[string]context.CancelFunc
	connID     string
	authz      string
	writeMu    sync.Mutex
	opMu       sync.Mutex
	wg         sync.WaitGroup
}

func (c *wsClient) run() {
	defer c.close()

	c.conn.SetReadLimit(wsMaxInboundFrames)

	ctx, cancel := context.WithCancel(c.baseCtx)
	defer cancel()

	kaDone := make(chan struct{})
	defer close(kaDone)
	go c.keepAlive(kaDone)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.handler.logger != nil {
				c.handler.logger.Warn("websocket read failed", "conn_id", c.connID, "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.write(wsMessage{Type: wsMsgConnectionError, Payload: mustJSON(map[string]string{
				"message": "invalid message",
			})})
			continue
		}

		switch msg.Type {
		case wsMsgConnectionInit:
			c.handleInit(msg)

		case wsMsgStart:
			c.handleStart(ctx, msg)

		case wsMsgStop:
			c.stopOperation(msg.ID)

		case wsMsgConnectionTerminate:
			return

		default:
			// Unknown frames are ignored rather than fatal.
		}
	}
}

func (c *wsClient) handleInit(msg wsMessage) {
	if len(msg.Payload) > 0 {
		var init wsInitPayload
		if err := json.Unmarshal(msg.Payload, &init); err == nil && init.Authorization != "" {
			c.authz = init.Authorization
		}
	}
	c.write(wsMessage{Type: wsMsgConnectionAck})
}

func (c *wsClient) handleStart(ctx context.Context, msg wsMessage) {
	if msg.ID == "" {
		c.writeError(msg.ID, "start requires an operation id")
		return
	}

	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil || req.Query == "" {
		c.writeError(msg.ID, "start requires a query payload")
		return
	}

	opCtx, cancel := context.WithCancel(BuildContext(ctx, c.authz, c.handler.users))

	c.opMu.Lock()
	if prev, ok := c.operations[msg.ID]; ok {
		prev()
	}
	c.operations[msg.ID] = cancel
	c.opMu.Unlock()

	params := graphql.Params{
		Schema:         c.handler.schema.Schema(),
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        opCtx,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.stopOperation(msg.ID)

		if isSubscriptionOperation(req.Query, req.OperationName) {
			for result := range graphql.Subscribe(params) {
				c.writeData(msg.ID, result)
				if opCtx.Err() != nil {
					return
				}
			}
		} else {
			// Queries and mutations over the socket run once.
			c.writeData(msg.ID, graphql.Do(params))
		}
		c.write(wsMessage{ID: msg.ID, Type: wsMsgComplete})
	}()
}

func (c *wsClient) stopOperation(id string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if cancel, ok := c.operations[id]; ok {
		cancel()
		delete(c.operations, id)
	}
}

func (c *wsClient) close() {
	c.opMu.Lock()
	for id, cancel := range c.operations {
		cancel()
		delete(c.operations, id)
	}
	c.opMu.Unlock()

	c.wg.Wait()
	_ = c.conn.Close()
}

func (c *wsClient) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsKeepAlivePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.write(wsMessage{Type: wsMsgKeepAlive})
		case <-done:
			return
		}
	}
}

func (c *wsClient) writeData(id string, result *graphql.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		c.writeError(id, "failed to encode result")
		return
	}
	c.write(wsMessage{ID: id, Type: wsMsgData, Payload: payload})
}

func (c *wsClient) writeError(id, message string) {
	c.write(wsMessage{ID: id, Type: wsMsgError, Payload: mustJSON(map[string]string{
		"message": message,
	})})
}

func (c *wsClient) write(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil && c.handler.logger != nil {
		c.handler.logger.Debug("websocket write failed", "conn_id", c.connID, "error", err)
	}
}

// isSubscriptionOperation parses the request document and reports whether the
// selected operation is a subscription. A parse failure returns false; the
// executor produces the proper error for the client.
func isSubscriptionOperation(query, operationName string) bool {
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(query), Name: "GraphQL request"}),
	})
	if err != nil {
		return false
	}

	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName != "" && (op.Name == nil || op.Name.Value != operationName) {
			continue
		}
		return op.Operation == ast.OperationTypeSubscription
	}
	return false
}

func mustJSON(v any) jsontext.Value {
	data, err := json.Marshal(v)
	if err != nil {
		return jsontext.Value(`{}`)
	}
	return data
}

func errorsFromMessage(message string) []gqlerrors.FormattedError {
	return []gqlerrors.FormattedError{gqlerrors.NewFormattedError(message)}
}
