package http

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"llnd-portal/internal/app"
	"llnd-portal/internal/domain"
	"llnd-portal/internal/validation"
)

// WSHandler pushes flow snapshots and accepts events over a websocket.
type WSHandler struct {
	service  *app.FlowService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.FlowService, checkOrigin func(r *http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func errorMessage(err error) outboundMessage {
	p := errorPayload{Message: err.Error(), Fields: validation.Fields(err)}
	if len(p.Fields) > 0 {
		p.Message = p.Fields[0].Message
	}
	return outboundMessage{Type: "error", Payload: p}
}

// ServeWS handles GET /v1/ws/flows/{id}. Every state change of the flow,
// whichever connection caused it, is pushed as a "snapshot" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()
	if _, err := h.service.Get(ctx, id); err != nil {
		writeErr(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(ctx, id)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()
	defer h.service.Release(context.WithoutCancel(ctx), id)

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				glog.Warningf("ws write error on flow %s: %v", id, err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				view := flowView{Snapshot: snap}
				if q, ok := h.service.CurrentQuestion(ctx, snap); ok {
					pub := q.Public()
					view.Question = &pub
				}
				select {
				case send <- outboundMessage{Type: "snapshot", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, id, inbound); err != nil {
			select {
			case send <- errorMessage(err):
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, id string, msg inboundMessage) error {
	var err error
	switch msg.Type {
	case "":
		err = domain.ErrInvalidTransition
	case "submit":
		_, err = h.service.Submit(ctx, id)
	case "cancel":
		_, err = h.service.Cancel(ctx, id)
	default:
		_, err = h.service.Apply(ctx, id, msg.Type, msg.Payload)
	}
	return err
}
