package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/7331/binance-live-price-alerts/types"
)

const (
	DefaultStreamURL = "wss://stream.binance.com/stream"
	KlineChannel     = "@kline_1m"
)

// BinanceClient opens streaming sessions against the Binance combined stream.
type BinanceClient struct {
	config types.FeedConfig
}

func NewBinanceClient(config types.FeedConfig) *BinanceClient {
	if config.URL == "" {
		config.URL = DefaultStreamURL
	}
	return &BinanceClient{config: config}
}

// Session is one live stream connection. Ticks are read from it until it
// fails; it cannot be restarted.
type Session struct {
	ws        *WebSocketClient
	requestID int64
	stop      func() bool
}

// Connect establishes the transport. The session is closed when ctx ends.
func (c *BinanceClient) Connect(ctx context.Context) (*Session, error) {
	ws := NewWebSocketClient(c.config)
	if err := ws.Connect(ctx); err != nil {
		return nil, types.ConnectionError("connect", err)
	}
	ws.StartPingHandler()

	return &Session{
		ws:        ws,
		requestID: c.config.RequestID,
		stop:      context.AfterFunc(ctx, func() { _ = ws.Close() }),
	}, nil
}

// ChannelNames maps symbols to their lower-cased kline channels.
func ChannelNames(symbols []string) []string {
	return lo.Uniq(lo.Map(symbols, func(symbol string, _ int) string {
		return strings.ToLower(symbol) + KlineChannel
	}))
}

// Subscribe sends one request naming every symbol.
func (s *Session) Subscribe(ctx context.Context, symbols []string) error {
	if err := ctx.Err(); err != nil {
		return types.ConnectionError("subscribe", err)
	}
	subMsg := types.WSSubscribeCommand{
		Method: "SUBSCRIBE",
		Params: ChannelNames(symbols),
		ID:     s.requestID,
	}
	if err := s.ws.WriteJSON(subMsg); err != nil {
		return types.ProtocolError("subscribe", err)
	}
	return nil
}

// NextTick blocks until the next message. A nil tick with a nil error means
// the message carried no price payload.
func (s *Session) NextTick(ctx context.Context) (*types.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.ConnectionError("read", err)
	}

	message, err := s.ws.ReadMessage()
	if err != nil {
		if s.ws.IsCloseError(err) {
			return nil, types.ConnectionError("stream closed by server", err)
		}
		return nil, types.ConnectionError("read", err)
	}
	return s.parseMessage(message)
}

func (s *Session) Close() error {
	if s.stop != nil {
		s.stop()
	}
	return s.ws.Close()
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	ID     *int64          `json:"id"`
	Error  *streamError    `json:"error"`
}

type streamError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type klinePayload struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     *struct {
		Interval string              `json:"i"`
		Close    decimal.NullDecimal `json:"c"`
	} `json:"k"`
}

func (s *Session) parseMessage(message []byte) (*types.Tick, error) {
	var envelope streamEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		return nil, types.DecodeError("parse envelope", err)
	}

	if envelope.Error != nil {
		if envelope.ID == nil || *envelope.ID == s.requestID {
			return nil, types.ProtocolError("subscribe",
				fmt.Errorf("request rejected: code %d: %s", envelope.Error.Code, envelope.Error.Msg))
		}
		return nil, nil
	}

	if isEmptyPayload(envelope.Data) {
		return nil, nil
	}

	var payload klinePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, types.DecodeError("parse payload", err)
	}
	if payload.Symbol == "" {
		return nil, types.DecodeError("parse payload", errors.New("missing symbol"))
	}
	if payload.Kline == nil || !payload.Kline.Close.Valid {
		return nil, types.DecodeError("parse payload", errors.Errorf("missing close price for %s", payload.Symbol))
	}
	if payload.Kline.Close.Decimal.IsNegative() {
		return nil, types.DecodeError("parse payload",
			errors.Errorf("negative close price %s for %s", payload.Kline.Close.Decimal, payload.Symbol))
	}

	tick := &types.Tick{
		Symbol: strings.ToUpper(payload.Symbol),
		Price:  payload.Kline.Close.Decimal,
		Stream: envelope.Stream,
	}
	if payload.EventTime > 0 {
		tick.EventTime = time.UnixMilli(payload.EventTime)
	}
	return tick, nil
}

func isEmptyPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte("{}"))
}
