// Copyright 2025 Hyli
//
// WebSocket and HTTP surfaces for the signing registry. The WebSocket
// carries the web-wallet side of the protocol; the HTTP POST exists for
// mobile apps that cannot hold a socket open.

package signing

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handlers exposes the signing registry over HTTP.
type Handlers struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHandlers builds the HTTP surface for a registry.
func NewHandlers(registry *Registry) *Handlers {
	return &Handlers{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The QR flow is cross-origin by design: the web wallet and
			// the signing service run on different hosts.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.New(log.Writer(), "[SigningWS] ", log.LstdFlags),
	}
}

// HandleSigning serves GET /signing (WebSocket upgrade) and
// POST /signing (signature submit).
func (h *Handlers) HandleSigning(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveWS(w, r)
	case http.MethodPost:
		h.HandleSubmit(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSubmit serves POST /signing/submit for mobile apps.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload InMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := h.registry.Submit(payload.RequestID, payload.Signature, payload.PublicKey); err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *Handlers) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	responseCh := make(chan OutMessage, responseBuffer)
	done := make(chan struct{})
	defer close(done)

	// Forward registry responses to the socket.
	go func() {
		for {
			select {
			case <-done:
				return
			case msg := <-responseCh:
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg InMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("WebSocket read error: %v", err)
			}
			return
		}

		switch msg.Type {
		case MsgRegisterSigningRequest:
			h.registry.Register(msg.RequestID, msg.Message, msg.Description, msg.Origin, responseCh)
			select {
			case responseCh <- OutMessage{Type: MsgSigningRequestAck, RequestID: msg.RequestID}:
			default:
			}
		case MsgCancelSigningRequest:
			h.registry.Cancel(msg.RequestID)
		case MsgSubmitSignature:
			if err := h.registry.Submit(msg.RequestID, msg.Signature, msg.PublicKey); err != nil {
				select {
				case responseCh <- OutMessage{Type: MsgSigningError, RequestID: msg.RequestID, Error: err.Error()}:
				default:
				}
			}
		}
	}
}
