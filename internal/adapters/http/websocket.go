package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/siteboundary/internal/adapters/nats"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
	"github.com/samirrijal/siteboundary/internal/pkg/metrics"
)

// wsMessage is sent from client to follow or unfollow a session.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session id
}

// WebSocketHandler relays boundary change events to the map surface.
// "?session=<id>" follows one session from the start; clients can send
// {"action":"subscribe","session":"<id>"} to follow more.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // session -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "change notifications are not available"})
			return
		}

		subscribe := func(session string) {
			if err := usecases.ValidateSessionID(session); err != nil {
				_ = writeJSON(map[string]string{"error": err.Error()})
				return
			}
			if _, exists := subs[session]; exists {
				_ = writeJSON(map[string]string{"status": "already subscribed", "session": session})
				return
			}
			s, err := nc.Subscribe(natsadapter.ChangeSubject(session), func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			subs[session] = s
			_ = writeJSON(map[string]string{"status": "subscribed", "session": session})
		}

		if session := c.Query("session"); session != "" {
			subscribe(session)
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				subscribe(m.Session)

			case "unsubscribe":
				if s, exists := subs[m.Session]; exists {
					_ = s.Unsubscribe()
					delete(subs, m.Session)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "session": m.Session})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + m.Session})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
