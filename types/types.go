package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// WebhookTarget is one outbound notification endpoint.
type WebhookTarget struct {
	URL       string `mapstructure:"url"`
	Content   string `mapstructure:"content"`
	Username  string `mapstructure:"username"`
	AvatarURL string `mapstructure:"avatar_url"`
}

// PairSpec is the static, configured description of a monitored pair.
type PairSpec struct {
	Symbol    string
	Threshold decimal.Decimal
	Webhooks  []WebhookTarget
}

// PairState is the runtime record kept per pair by the monitor.
// LastNotifiedPrice stays nil until the first tick for the symbol arrives.
type PairState struct {
	Symbol            string
	Threshold         decimal.Decimal
	Webhooks          []WebhookTarget
	LastNotifiedPrice *decimal.Decimal
}

// NewPairState builds the runtime state for spec, falling back to defaults
// when spec names no webhooks.
func NewPairState(spec PairSpec, defaults []WebhookTarget) *PairState {
	webhooks := spec.Webhooks
	if len(webhooks) == 0 {
		webhooks = defaults
	}
	return &PairState{
		Symbol:    spec.Symbol,
		Threshold: spec.Threshold,
		Webhooks:  append([]WebhookTarget(nil), webhooks...),
	}
}

// Tick is one decoded price update from the stream.
type Tick struct {
	Symbol    string
	Price     decimal.Decimal
	Stream    string
	EventTime time.Time
}

// AlertEvent is built when a pair's price moved by at least its threshold.
type AlertEvent struct {
	ID         string
	Symbol     string
	Price      decimal.Decimal
	Previous   decimal.Decimal
	Delta      decimal.Decimal
	PriceText  string
	DeltaText  string
	Targets    []WebhookTarget
	DetectedAt time.Time
}

// Negative reports whether the price went down.
func (e AlertEvent) Negative() bool {
	return e.Delta.IsNegative()
}

type Config struct {
	Feed    FeedConfig
	Monitor MonitorConfig
	Webhook WebhookConfig
	Pairs   []PairSpec
	Logging LoggingConfig
	Metrics MetricsConfig
	Storage StorageConfig
	Debug   bool
}

type FeedConfig struct {
	URL              string
	RESTURL          string
	UserAgent        string
	RequestID        int64
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	VerifySymbols    bool
}

type MonitorConfig struct {
	RetryDelay time.Duration
}

type WebhookConfig struct {
	Timeout   time.Duration
	Username  string
	AvatarURL string
	Defaults  []WebhookTarget
}

type LoggingConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Port int
}

type StorageConfig struct {
	Path string
}

// WSSubscribeCommand is the feed's subscription request.
type WSSubscribeCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}
