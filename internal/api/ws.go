package api

import (
	"context"
	"net/http"
	"time"

	"sandforge/internal/component"
	"sandforge/internal/protocol"
	"sandforge/internal/server"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// peerParams are the query parameters a peer connects with.
type peerParams struct {
	ID   string `validate:"omitempty,alphanum,max=64"`
	Name string `validate:"omitempty,printascii,max=16"`
}

type wsHandler struct {
	srv      *server.Server
	log      *zap.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func newWSHandler(srv *server.Server, log *zap.Logger, origins []string) *wsHandler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &wsHandler{
		srv:      srv,
		log:      log,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
	}
}

// Handle upgrades the request and runs one peer until it disconnects.
// Frames are protocol envelopes. Entity ids in them are per-connection
// handles, never the authority's own ids.
func (h *wsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	params := peerParams{
		ID:   r.URL.Query().Get("id"),
		Name: r.URL.Query().Get("name"),
	}
	if err := h.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", err.Error())
		return
	}
	if params.ID == "" {
		params.ID = uuid.NewString()
	}
	if params.Name == "" {
		params.Name = "peer-" + params.ID[:min(6, len(params.ID))]
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := component.ClientID("ws:" + params.ID)
	sess := server.NewPeer(client, params.Name, h.srv.Window())
	if err := h.srv.Join(r.Context(), sess); err != nil {
		h.log.Info("peer refused", zap.String("client", string(client)), zap.Error(err))
		closeWith(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}
	// The request context dies with the connection; the snapshot must still
	// be written.
	defer h.srv.Leave(context.WithoutCancel(r.Context()), sess)

	log := h.log.With(zap.String("client", string(client)))
	log.Info("peer connected", zap.String("name", params.Name))

	table := protocol.NewMapTable()
	replies := make(chan protocol.Message, server.OutboxSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		h.writeLoop(conn, sess, table, replies, log)
	}()

	h.readLoop(conn, sess, table, replies, log)
	close(replies)
	<-done
	log.Info("peer disconnected")
}

// readLoop decodes frames and queues them on the session's ordered channel.
// Rejections that never reach the authority are answered through replies.
func (h *wsHandler) readLoop(conn *websocket.Conn, sess *server.Session, table *protocol.MapTable, replies chan<- protocol.Message, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reject := func(m protocol.Message, err error) {
		select {
		case replies <- protocol.ResultFor(m, err):
		default:
			log.Warn("reply dropped", zap.Error(err))
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		env, msg, err := protocol.Decode(data)
		if err == nil && !fromClient(msg) {
			err = errors.Wrapf(protocol.ErrProtocolMisuse, "%s is sent by the server", env.Type)
			msg = nil
		}
		if err != nil {
			log.Debug("bad frame", zap.Uint64("seq", env.Seq), zap.Error(err))
			if env.Seq == 0 {
				reject(nil, err)
				continue
			}
			// Keep the sequence moving so later frames are not held forever;
			// the authority answers the nil message with a misuse error.
			msg = nil
		} else {
			msg = protocol.MapMessage(msg, table.ToServer())
		}

		if env.Seq == 0 {
			reject(msg, errors.Wrap(protocol.ErrProtocolMisuse, "missing seq"))
			continue
		}
		if err := sess.Send(env.Seq, msg); err != nil {
			reject(msg, err)
		}
	}
}

// writeLoop is the only writer on conn.
func (h *wsHandler) writeLoop(conn *websocket.Conn, sess *server.Session, table *protocol.MapTable, replies <-chan protocol.Message, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var seq uint64
	write := func(m protocol.Message) bool {
		seq++
		data, err := protocol.Encode(seq, protocol.MapMessage(m, table.Allocating()))
		if err != nil {
			log.Error("failed to encode reply", zap.Error(err))
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case m, ok := <-replies:
			if !ok {
				closeWith(conn, websocket.CloseNormalClosure, "")
				return
			}
			if !write(m) {
				return
			}
		case m := <-sess.Outbox:
			if !write(m) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func fromClient(m protocol.Message) bool {
	switch m.(type) {
	case protocol.Result, protocol.InventoryUpdate:
		return false
	}
	return true
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)) //nolint:errcheck
}
