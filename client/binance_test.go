package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7331/binance-live-price-alerts/types"
)

// fakeFeed accepts one websocket connection, hands the subscribe request to
// the test and then writes the scripted frames.
type fakeFeed struct {
	server     *httptest.Server
	subscribed chan types.WSSubscribeCommand
	userAgent  chan string
}

func newFakeFeed(t *testing.T, frames []string, closeAfter bool) *fakeFeed {
	t.Helper()
	f := &fakeFeed{
		subscribed: make(chan types.WSSubscribeCommand, 1),
		userAgent:  make(chan string, 1),
	}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.userAgent <- r.Header.Get("User-Agent")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd types.WSSubscribeCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		f.subscribed <- cmd

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if closeAfter {
			return
		}
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeFeed) config() types.FeedConfig {
	return types.FeedConfig{
		URL:              "ws" + strings.TrimPrefix(f.server.URL, "http"),
		UserAgent:        "pricealerts-test",
		RequestID:        7,
		HandshakeTimeout: time.Second,
		ReadTimeout:      2 * time.Second,
	}
}

func klineFrame(symbol, closePrice string) string {
	return `{"stream":"` + strings.ToLower(symbol) + `@kline_1m","data":{"e":"kline","E":1700000000000,"s":"` +
		symbol + `","k":{"i":"1m","c":` + closePrice + `}}}`
}

func TestSession_SubscribeAndTicks(t *testing.T) {
	feed := newFakeFeed(t, []string{
		`{"result":null,"id":7}`,
		klineFrame("BTCUSDT", `"50751.00000000"`),
		`not json`,
		klineFrame("ETHUSDT", `3012.5`),
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := NewBinanceClient(feed.config()).Connect(ctx)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Subscribe(ctx, []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"}))

	cmd := <-feed.subscribed
	assert.Equal(t, "SUBSCRIBE", cmd.Method)
	assert.Equal(t, []string{"btcusdt@kline_1m", "ethusdt@kline_1m"}, cmd.Params)
	assert.Equal(t, int64(7), cmd.ID)
	assert.Equal(t, "pricealerts-test", <-feed.userAgent)

	// subscription ack carries no payload
	tick, err := session.NextTick(ctx)
	require.NoError(t, err)
	assert.Nil(t, tick)

	tick, err = session.NextTick(ctx)
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.True(t, decimal.RequireFromString("50751").Equal(tick.Price))
	assert.Equal(t, "btcusdt@kline_1m", tick.Stream)
	assert.Equal(t, time.UnixMilli(1700000000000), tick.EventTime)

	// a malformed frame is a decode error, the session stays usable
	_, err = session.NextTick(ctx)
	require.Error(t, err)
	assert.Equal(t, types.KindDecode, types.KindOf(err))
	assert.False(t, types.IsSessionFatal(err))

	tick, err = session.NextTick(ctx)
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, "ETHUSDT", tick.Symbol)
	assert.True(t, decimal.RequireFromString("3012.5").Equal(tick.Price))
}

func TestSession_ServerCloseIsConnectionError(t *testing.T) {
	feed := newFakeFeed(t, []string{klineFrame("BTCUSDT", `"1"`)}, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := NewBinanceClient(feed.config()).Connect(ctx)
	require.NoError(t, err)
	defer session.Close()
	require.NoError(t, session.Subscribe(ctx, []string{"BTCUSDT"}))

	tick, err := session.NextTick(ctx)
	require.NoError(t, err)
	require.NotNil(t, tick)

	_, err = session.NextTick(ctx)
	require.Error(t, err)
	assert.Equal(t, types.KindConnection, types.KindOf(err))
	assert.True(t, types.IsSessionFatal(err))
}

func TestSession_ContextCancelClosesSession(t *testing.T) {
	feed := newFakeFeed(t, nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	session, err := NewBinanceClient(feed.config()).Connect(ctx)
	require.NoError(t, err)
	defer session.Close()
	require.NoError(t, session.Subscribe(ctx, []string{"BTCUSDT"}))
	<-feed.subscribed

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = session.NextTick(ctx)
	require.Error(t, err)
	assert.Equal(t, types.KindConnection, types.KindOf(err))
}

func TestBinanceClient_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := types.FeedConfig{
		URL:              "ws" + strings.TrimPrefix(srv.URL, "http"),
		HandshakeTimeout: time.Second,
	}
	_, err := NewBinanceClient(cfg).Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindConnection, types.KindOf(err))
}

func TestParseMessage(t *testing.T) {
	s := &Session{requestID: 1}

	tests := []struct {
		name     string
		message  string
		wantKind types.ErrorKind
		wantNil  bool
		want     string
	}{
		{name: "ack", message: `{"result":null,"id":1}`, wantNil: true},
		{name: "empty data", message: `{"stream":"x","data":{}}`, wantNil: true},
		{name: "null data", message: `{"stream":"x","data":null}`, wantNil: true},
		{name: "rejected subscription", message: `{"error":{"code":2,"msg":"Invalid request"},"id":1}`, wantKind: types.KindProtocol},
		{name: "other request error", message: `{"error":{"code":2,"msg":"x"},"id":9}`, wantNil: true},
		{name: "bad json", message: `{`, wantKind: types.KindDecode},
		{name: "missing symbol", message: `{"data":{"k":{"c":"1"}}}`, wantKind: types.KindDecode},
		{name: "missing kline", message: `{"data":{"s":"BTCUSDT"}}`, wantKind: types.KindDecode},
		{name: "missing close", message: `{"data":{"s":"BTCUSDT","k":{"i":"1m"}}}`, wantKind: types.KindDecode},
		{name: "nan close", message: `{"data":{"s":"BTCUSDT","k":{"c":"NaN"}}}`, wantKind: types.KindDecode},
		{name: "negative close", message: `{"data":{"s":"BTCUSDT","k":{"c":"-1"}}}`, wantKind: types.KindDecode},
		{name: "string close", message: `{"data":{"s":"btcusdt","k":{"c":"0.05000000"}}}`, want: "0.05"},
		{name: "numeric close", message: `{"data":{"s":"BTCUSDT","k":{"c":42.25}}}`, want: "42.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick, err := s.parseMessage([]byte(tt.message))
			if tt.wantKind != types.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, tick)
				return
			}
			require.NotNil(t, tick)
			assert.Equal(t, "BTCUSDT", tick.Symbol)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(tick.Price))
		})
	}
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t,
		[]string{"btcusdt@kline_1m", "dogeusdt@kline_1m"},
		ChannelNames([]string{"BTCUSDT", "DogeUSDT", "btcusdt"}))
}
