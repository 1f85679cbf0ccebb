package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// handleWS pushes the prices body to the client every push interval until
// the client goes away or the server shuts down.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	log := s.log.With().Str("conn", uuid.NewString()).Logger()
	log.Info().Str("remote", r.RemoteAddr).Msg("websocket connected")
	defer log.Info().Msg("websocket disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Incoming messages are ignored; a read error means the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b, err := s.pushBody(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// The client gets an error frame and the next tick tries again.
				log.Warn().Err(err).Msg("websocket push")
				b, _ = json.Marshal(errorResponse{Error: errFetching})
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}
}

func (s *server) pushBody(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	return s.body(ctx)
}
