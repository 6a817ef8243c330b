// Package websocket pushes observation results to WebSocket clients. Each
// connection owns one observe.Subscription; every result set is written as
// a JSON text frame.
package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/conectaribas/conectaribas/internal/platform/observe"
)

// Frame is one message written to the client.
type Frame[T any] struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
	Items     []T       `json:"items"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the app talks to a local backend
	},
}

// Serve upgrades the request and streams sub until the client disconnects
// or the subscription ends. The subscription is always released.
func Serve[T any](c echo.Context, logger zerolog.Logger, topic string, sub *observe.Subscription[T]) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		sub.Unsubscribe()
		return err
	}
	Pump(ws, logger, topic, sub)
	return nil
}

// Pump writes every result set of sub to conn. A reader goroutine drains
// inbound frames; when the client goes away the subscription is cancelled.
// Pump returns once both sides have stopped.
func Pump[T any](conn Conn, logger zerolog.Logger, topic string, sub *observe.Subscription[T]) {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer sub.Unsubscribe()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for items := range sub.C {
		data, err := json.Marshal(Frame[T]{
			Type:      "snapshot",
			Topic:     topic,
			Timestamp: time.Now().UTC(),
			Count:     len(items),
			Items:     items,
		})
		if err != nil {
			logger.Error().Err(err).Str("topic", topic).Msg("websocket: failed to marshal frame")
			continue
		}
		if err := conn.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
			logger.Debug().Err(err).Str("topic", topic).Msg("websocket: write failed")
			break
		}
	}

	sub.Unsubscribe()
	conn.Close()
	<-readerDone
}
