package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 2 * streamPingInterval
)

// handleTaskStream pushes task lifecycle events to a websocket client. The
// stream is one-way; inbound frames only keep the connection alive.
func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no event published after
	// the client sees the upgrade response is missed.
	events, unsubscribe := s.tasks.Subscribe()
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.StreamSubscribers.Inc()
		defer s.metrics.StreamSubscribers.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})

	go func() {
		defer cancel()
		for {
			msgType, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
			if s.metrics != nil {
				s.metrics.WSMessages.WithLabelValues("inbound", websocketFrameName(msgType)).Inc()
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if s.metrics != nil {
				s.metrics.WSMessages.WithLabelValues("outbound", string(evt.Type)).Inc()
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func websocketFrameName(msgType int) string {
	switch msgType {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return "other"
	}
}
