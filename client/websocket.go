package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/7331/binance-live-price-alerts/types"
)

// WebSocketClient owns a single websocket connection. It is not reusable:
// once closed, a new client has to be created.
type WebSocketClient struct {
	conn      *websocket.Conn
	config    types.FeedConfig
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketClient(config types.FeedConfig) *WebSocketClient {
	return &WebSocketClient{
		config: config,
		done:   make(chan struct{}),
	}
}

func (ws *WebSocketClient) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Add("Cache-Control", "no-cache")
	header.Add("Accept-Language", "en-US,en;q=0.9")
	header.Add("Pragma", "no-cache")
	if ws.config.UserAgent != "" {
		header.Add("User-Agent", ws.config.UserAgent)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: ws.config.HandshakeTimeout,
	}

	c, _, err := dialer.DialContext(ctx, ws.config.URL, header)
	if err != nil {
		return errors.Wrap(err, "websocket dial error")
	}
	ws.conn = c

	// Set read deadline to detect dead connections; pongs push it forward.
	ws.extendReadDeadline()
	ws.conn.SetPongHandler(func(string) error {
		ws.extendReadDeadline()
		return nil
	})
	return nil
}

func (ws *WebSocketClient) extendReadDeadline() {
	if ws.config.ReadTimeout > 0 {
		_ = ws.conn.SetReadDeadline(time.Now().Add(ws.config.ReadTimeout))
	}
}

func (ws *WebSocketClient) WriteJSON(v any) error {
	if ws.config.HandshakeTimeout > 0 {
		_ = ws.conn.SetWriteDeadline(time.Now().Add(ws.config.HandshakeTimeout))
		defer ws.conn.SetWriteDeadline(time.Time{}) //nolint:errcheck
	}
	if err := ws.conn.WriteJSON(v); err != nil {
		return errors.Wrap(err, "websocket write error")
	}
	return nil
}

func (ws *WebSocketClient) ReadMessage() ([]byte, error) {
	// Reset read deadline for each message
	ws.extendReadDeadline()

	_, message, err := ws.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "websocket read error")
	}
	return message, nil
}

func (ws *WebSocketClient) StartPingHandler() {
	if ws.config.PingInterval <= 0 {
		return
	}

	go func() {
		pingTicker := time.NewTicker(ws.config.PingInterval)
		defer pingTicker.Stop()

		for {
			select {
			case <-pingTicker.C:
				deadline := time.Now().Add(10 * time.Second)
				if err := ws.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					log.WithError(err).Debug("Ping failed, stopping ping handler")
					return
				}
			case <-ws.done:
				return
			}
		}
	}()
}

func (ws *WebSocketClient) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.done)
		if ws.conn != nil {
			_ = ws.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			err = ws.conn.Close()
		}
	})
	return err
}

func (ws *WebSocketClient) IsCloseError(err error) bool {
	return websocket.IsCloseError(errors.Cause(err), websocket.CloseNormalClosure)
}
