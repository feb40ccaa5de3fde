package events

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"castscribe/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub streams bus events to WebSocket clients.
type Hub struct {
	bus      *Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader
	buffer   int
}

// NewHub builds a hub over bus.
func NewHub(bus *Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer: defaultSubscriberBuffer,
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves
// or falls behind. A since query parameter replays buffered history first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var since int64 = -1
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ws_upgrade_failed"),
			logging.String(logging.FieldErrorHint, "client must send a websocket handshake"),
			logging.String(logging.FieldImpact, "client receives no live events"),
		)
		return
	}
	defer conn.Close()

	// Subscribe before replay so nothing published in between is lost.
	live, cancel := h.bus.Subscribe(h.buffer)
	defer cancel()

	var lastSent int64
	if since >= 0 {
		for _, event := range h.bus.Since(since) {
			if err := h.write(conn, event); err != nil {
				return
			}
			lastSent = event.Seq
		}
	}

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-live:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber fell behind"),
					time.Now().Add(writeWait))
				h.logger.Info("websocket client dropped for falling behind")
				return
			}
			if event.Seq <= lastSent {
				continue
			}
			if err := h.write(conn, event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, event Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(event)
}

// readPump drains client frames so control messages are processed and a
// disconnect is noticed.
func (h *Hub) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read ended", logging.Error(err))
			}
			return
		}
	}
}
