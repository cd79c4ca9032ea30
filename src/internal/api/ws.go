package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser extensions connect from their own origins
	},
}

// handleSocket serves the command channel. Each text frame is a
// domain.SocketRequest routed through the same handlers as plain HTTP;
// frames are answered in order.
func (a *Api) handleSocket(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Failure(a.logger).Error("websocket upgrade failed", "error", err)
		return
	}
	defer c.Close()

	session := uuid.NewString()
	logging.Request(a.logger).Info("websocket connected", "session", session)

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Failure(a.logger).Error("websocket read failed", "session", session, "error", err)
			}
			return
		}

		var req domain.SocketRequest
		var resp domain.SocketResponse
		if err := json.Unmarshal(msg, &req); err != nil {
			resp = errorFrame("", &domain.ValidationError{Message: "Invalid JSON in request body"})
		} else {
			resp = a.dispatch(r.Context(), req)
		}

		if err := c.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (a *Api) dispatch(ctx context.Context, req domain.SocketRequest) domain.SocketResponse {
	if req.Path == "/ws" {
		return errorFrame(req.ID, &domain.NotFoundError{Path: req.Path})
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	params := url.Values{}
	for k, v := range req.Params {
		params.Set(k, v)
	}
	target := url.URL{Path: req.Path, RawQuery: params.Encode()}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	// Each frame is routed from scratch; the upgrade request's route context
	// would pin the method to GET.
	ctx = context.WithValue(ctx, chi.RouteCtxKey, nil)
	hr, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return errorFrame(req.ID, &domain.ValidationError{Message: err.Error()})
	}

	rec := &bufferedResponse{header: http.Header{}, status: http.StatusOK}
	a.handler.ServeHTTP(rec, hr)

	resp := domain.SocketResponse{ID: req.ID, Status: rec.status}
	if rec.body.Len() > 0 {
		resp.Body = json.RawMessage(rec.body.Bytes())
	}
	return resp
}

func errorFrame(id string, err error) domain.SocketResponse {
	body, _ := json.Marshal(domain.ErrorResponse{Success: false, Error: err.Error()})
	return domain.SocketResponse{ID: id, Status: domain.StatusFor(err), Body: body}
}

// bufferedResponse captures a handler's response for the websocket channel.
type bufferedResponse struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}
