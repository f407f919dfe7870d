package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second

	// CloseMessageCode is sent when the session ends.
	CloseMessageCode = websocket.CloseNormalClosure
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventsHandler streams the caller's session events over a WebSocket and
// closes the connection once the session has ended. It must run behind Gate.
func (s *Service) EventsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		log := hlog.FromRequest(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := s.Subscribe(ctx)
		if err != nil {
			log.Error().Err(err).Msg("subscribe to session events")
			return
		}

		// The client only sends control frames; a read error means it left.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Token != sess.Token {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(CloseMessageCode, string(ev.Kind)),
					time.Now().Add(writeTimeout))
				return
			}
		}
	})
}
