package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/model"
)

// Handler upgrades HTTP requests to websocket connections and bridges them to
// the hub. The client identity comes from the actor context set by transport
// middleware, with userId/userName query parameters as a fallback.
func Handler(hub *Hub, cfg config.RealtimeConfig, logger *zap.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, userName := clientIdentity(r)
		if userID == "" {
			http.Error(w, "missing user identity", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		sess := hub.Register(userID, userName)
		logger.Debug("websocket connected", zap.String("user_id", userID))

		go writePump(conn, sess, cfg, logger)
		readPump(conn, sess, hub, cfg, logger)

		hub.Unregister(sess)
		_ = conn.Close()
		logger.Debug("websocket disconnected", zap.String("user_id", userID))
	}
}

func clientIdentity(r *http.Request) (string, string) {
	if actor, ok := model.ActorFrom(r.Context()); ok && actor.ID != "" {
		return actor.ID, actor.Name
	}
	q := r.URL.Query()
	return q.Get("userId"), q.Get("userName")
}

// originChecker allows any origin when the list is empty; otherwise the
// request's Origin header must match one entry exactly.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// readPump decodes client events and dispatches them to the hub until the
// connection drops. Room membership ends with the connection; a reconnecting
// client must re-join.
func readPump(conn *websocket.Conn, sess *Session, hub *Hub, cfg config.RealtimeConfig, logger *zap.Logger) {
	conn.SetReadLimit(cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", zap.String("user_id", sess.UserID), zap.Error(err))
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			logger.Debug("malformed realtime event", zap.String("user_id", sess.UserID), zap.Error(err))
			continue
		}

		switch {
		case evt.Kind == EventJoinResource:
			hub.Join(sess, evt.ResourceType, evt.ResourceID)
		case evt.Kind == EventLeaveResource:
			hub.Leave(sess, evt.ResourceType, evt.ResourceID)
		case IsRelayKind(evt.Kind):
			hub.Relay(sess, evt.ResourceType, evt.ResourceID, evt.Kind, evt.Payload)
		default:
			logger.Debug("ignoring unknown event kind",
				zap.String("kind", evt.Kind),
				zap.String("user_id", sess.UserID),
			)
		}
	}
}

// writePump serializes hub deliveries onto the connection and keeps it alive
// with pings. It exits when the session's channel is closed or a write fails.
func writePump(conn *websocket.Conn, sess *Session, cfg config.RealtimeConfig, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sess.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				logger.Debug("websocket write failed", zap.String("user_id", sess.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
