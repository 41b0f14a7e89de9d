package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/7331/binance-live-price-alerts/client"
	"github.com/7331/binance-live-price-alerts/monitor"
	"github.com/7331/binance-live-price-alerts/notifier"
	"github.com/7331/binance-live-price-alerts/types"
)

const (
	DefaultRESTURL   = "https://api.binance.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/94.0.4606.54 Safari/537.36"
)

// DefaultPairs is used when no pair is configured.
var DefaultPairs = []struct {
	Symbol    string
	Threshold string
}{
	{"BTCUSDT", "750"},
	{"ETHUSDT", "100"},
	{"BNBUSDT", "50"},
	{"ADAUSDT", "0.05"},
	{"DOGEUSDT", "0.025"},
	{"XRPUSDT", "0.15"},
	{"DOTUSDT", "2.5"},
	{"LTCUSDT", "10"},
	{"LINKUSDT", "5"},
}

// flag name -> viper key
var flagKeys = map[string]string{
	"config":            "config",
	"feed-url":          "feed.url",
	"rest-url":          "feed.rest_url",
	"user-agent":        "feed.user_agent",
	"handshake-timeout": "feed.handshake_timeout",
	"read-timeout":      "feed.read_timeout",
	"ping-interval":     "feed.ping_interval",
	"verify-symbols":    "feed.verify_symbols",
	"retry-delay":       "monitor.retry_delay",
	"webhook-urls":      "webhook.urls",
	"webhook-timeout":   "webhook.timeout",
	"log-level":         "logging.level",
	"log-format":        "logging.format",
	"metrics-port":      "metrics.port",
	"storage-path":      "storage.path",
	"debug":             "debug",
}

func InitConfig(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a YAML, JSON or TOML config file")
	flags.String("feed-url", client.DefaultStreamURL, "Binance combined stream WebSocket URL")
	flags.String("rest-url", DefaultRESTURL, "Binance REST base URL used for symbol verification")
	flags.String("user-agent", DefaultUserAgent, "User-Agent sent on the WebSocket handshake")
	flags.Duration("handshake-timeout", 10*time.Second, "WebSocket handshake timeout")
	flags.Duration("read-timeout", 60*time.Second, "Maximum silence on the stream before reconnecting")
	flags.Duration("ping-interval", 30*time.Second, "WebSocket keepalive ping interval")
	flags.Bool("verify-symbols", false, "Check configured symbols against the exchange before streaming")
	flags.Duration("retry-delay", monitor.DefaultRetryDelay, "Delay before reconnecting after a failed session")
	flags.StringSlice("webhook-urls", []string{}, "Default Discord webhook URLs for pairs without their own")
	flags.Duration("webhook-timeout", 10*time.Second, "Timeout of a single webhook request")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.Int("metrics-port", 0, "Port for /metrics and /health, 0 disables")
	flags.String("storage-path", "", "SQLite file for the alert audit log, empty disables")
	flags.Bool("debug", false, "Enable debug mode")

	bindFlags(flags)

	viper.SetEnvPrefix("PRICEALERTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("feed.url", client.DefaultStreamURL)
	viper.SetDefault("feed.rest_url", DefaultRESTURL)
	viper.SetDefault("feed.user_agent", DefaultUserAgent)
	viper.SetDefault("feed.request_id", 1)
	viper.SetDefault("feed.handshake_timeout", 10*time.Second)
	viper.SetDefault("feed.read_timeout", 60*time.Second)
	viper.SetDefault("feed.ping_interval", 30*time.Second)
	viper.SetDefault("feed.verify_symbols", false)
	viper.SetDefault("monitor.retry_delay", monitor.DefaultRetryDelay)
	viper.SetDefault("webhook.timeout", 10*time.Second)
	viper.SetDefault("webhook.username", notifier.DefaultUsername)
	viper.SetDefault("webhook.avatar_url", notifier.DefaultAvatarURL)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("metrics.port", 0)
	viper.SetDefault("storage.path", "")
	viper.SetDefault("debug", false)
}

func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := viper.BindPFlag(key, f); err != nil {
			log.WithError(err).Warnf("Failed to bind flag %s", f.Name)
		}
	})
}

type rawPair struct {
	Symbol    string                `mapstructure:"symbol"`
	Threshold string                `mapstructure:"threshold"`
	Webhooks  []types.WebhookTarget `mapstructure:"webhooks"`
}

func LoadConfig() (*types.Config, error) {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}

	var defaults []types.WebhookTarget
	if err := viper.UnmarshalKey("webhook.defaults", &defaults); err != nil {
		return nil, errors.Wrap(err, "invalid webhook.defaults")
	}
	// env values arrive as one comma separated string
	for _, entry := range viper.GetStringSlice("webhook.urls") {
		for _, u := range strings.Split(entry, ",") {
			if u = strings.TrimSpace(u); u != "" {
				defaults = append(defaults, types.WebhookTarget{URL: u})
			}
		}
	}

	pairs, err := loadPairs()
	if err != nil {
		return nil, err
	}

	cfg := &types.Config{
		Feed: types.FeedConfig{
			URL:              viper.GetString("feed.url"),
			RESTURL:          viper.GetString("feed.rest_url"),
			UserAgent:        viper.GetString("feed.user_agent"),
			RequestID:        viper.GetInt64("feed.request_id"),
			HandshakeTimeout: viper.GetDuration("feed.handshake_timeout"),
			ReadTimeout:      viper.GetDuration("feed.read_timeout"),
			PingInterval:     viper.GetDuration("feed.ping_interval"),
			VerifySymbols:    viper.GetBool("feed.verify_symbols"),
		},
		Monitor: types.MonitorConfig{
			RetryDelay: viper.GetDuration("monitor.retry_delay"),
		},
		Webhook: types.WebhookConfig{
			Timeout:   viper.GetDuration("webhook.timeout"),
			Username:  viper.GetString("webhook.username"),
			AvatarURL: viper.GetString("webhook.avatar_url"),
			Defaults:  defaults,
		},
		Pairs: pairs,
		Logging: types.LoggingConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		},
		Metrics: types.MetricsConfig{Port: viper.GetInt("metrics.port")},
		Storage: types.StorageConfig{Path: viper.GetString("storage.path")},
		Debug:   viper.GetBool("debug"),
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func loadPairs() ([]types.PairSpec, error) {
	var raw []rawPair
	if err := viper.UnmarshalKey("pairs", &raw); err != nil {
		return nil, errors.Wrap(err, "invalid pairs")
	}
	if len(raw) == 0 {
		for _, p := range DefaultPairs {
			raw = append(raw, rawPair{Symbol: p.Symbol, Threshold: p.Threshold})
		}
	}

	pairs := make([]types.PairSpec, 0, len(raw))
	for _, p := range raw {
		symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
		threshold, err := decimal.NewFromString(strings.TrimSpace(p.Threshold))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid threshold for pair %q", symbol)
		}
		pairs = append(pairs, types.PairSpec{
			Symbol:    symbol,
			Threshold: threshold,
			Webhooks:  p.Webhooks,
		})
	}
	return pairs, nil
}

// Validate checks cfg after defaults have been applied.
func Validate(cfg *types.Config) error {
	if len(cfg.Pairs) == 0 {
		return errors.New("at least one pair must be configured")
	}

	if err := checkURL(cfg.Feed.URL, "ws", "wss"); err != nil {
		return errors.Wrap(err, "feed.url")
	}
	if cfg.Feed.VerifySymbols {
		if err := checkURL(cfg.Feed.RESTURL, "http", "https"); err != nil {
			return errors.Wrap(err, "feed.rest_url")
		}
	}

	timeouts := map[string]time.Duration{
		"feed.handshake_timeout": cfg.Feed.HandshakeTimeout,
		"feed.read_timeout":      cfg.Feed.ReadTimeout,
		"feed.ping_interval":     cfg.Feed.PingInterval,
		"monitor.retry_delay":    cfg.Monitor.RetryDelay,
		"webhook.timeout":        cfg.Webhook.Timeout,
	}
	for key, d := range timeouts {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %s", key, d)
		}
	}

	for _, target := range cfg.Webhook.Defaults {
		if err := checkURL(target.URL, "http", "https"); err != nil {
			return errors.Wrap(err, "webhook.defaults")
		}
	}

	if dup := lo.FindDuplicates(lo.Map(cfg.Pairs, func(p types.PairSpec, _ int) string { return p.Symbol })); len(dup) > 0 {
		return errors.Errorf("duplicate pairs: %s", strings.Join(dup, ", "))
	}
	for _, p := range cfg.Pairs {
		if p.Symbol == "" {
			return errors.New("pair symbol must not be empty")
		}
		if p.Symbol != strings.ToUpper(p.Symbol) {
			return errors.Errorf("pair %s: symbol must be upper case", p.Symbol)
		}
		if p.Threshold.IsNegative() {
			return errors.Errorf("pair %s: threshold must not be negative", p.Symbol)
		}
		if len(p.Webhooks) == 0 && len(cfg.Webhook.Defaults) == 0 {
			return errors.Errorf("pair %s has no webhooks and no defaults are configured. Use --webhook-urls or PRICEALERTS_WEBHOOK_URLS", p.Symbol)
		}
		for _, target := range p.Webhooks {
			if err := checkURL(target.URL, "http", "https"); err != nil {
				return errors.Wrapf(err, "pair %s", p.Symbol)
			}
		}
	}

	if _, err := log.ParseLevel(cfg.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	if !lo.Contains([]string{"text", "json"}, strings.ToLower(cfg.Logging.Format)) {
		return errors.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		return errors.Errorf("metrics.port out of range: %d", cfg.Metrics.Port)
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", raw)
	}
	if !lo.Contains(schemes, u.Scheme) || u.Host == "" {
		return errors.Errorf("invalid url %q: want %s", raw, strings.Join(schemes, " or "))
	}
	return nil
}
