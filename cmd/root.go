package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/7331/binance-live-price-alerts/client"
	"github.com/7331/binance-live-price-alerts/config"
	"github.com/7331/binance-live-price-alerts/format"
	"github.com/7331/binance-live-price-alerts/logger"
	"github.com/7331/binance-live-price-alerts/metrics"
	"github.com/7331/binance-live-price-alerts/monitor"
	"github.com/7331/binance-live-price-alerts/notifier"
	"github.com/7331/binance-live-price-alerts/repo"
	"github.com/7331/binance-live-price-alerts/types"
)

var rootCmd = &cobra.Command{
	Use:   "pricealerts",
	Short: "Binance live price alerts for Discord",
	Long: `pricealerts streams 1m klines from Binance and posts a Discord webhook
message whenever a pair moves by at least its threshold since the last alert.`,
	SilenceUsage: true,
	RunE:         runPriceAlertsE,
}

func init() {
	config.InitConfig(rootCmd)
}

func runPriceAlertsE(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "configuration error")
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Debug, os.Stderr); err != nil {
		return errors.Wrap(err, "configuration error")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Feed.VerifySymbols {
		verifySymbols(ctx, cfg)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []monitor.Option{
		monitor.WithLogger(log.StandardLogger()),
		monitor.WithMetrics(m),
		monitor.WithRetryDelay(cfg.Monitor.RetryDelay),
	}

	if cfg.Storage.Path != "" {
		db, err := repo.OpenDB(cfg.Storage.Path)
		if err != nil {
			return errors.Wrap(err, "open alert storage")
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		opts = append(opts, monitor.WithRecorder(repo.NewAlertRepo(db)))
		log.Infof("Recording alerts to %s", cfg.Storage.Path)
	}

	binanceClient := client.NewBinanceClient(cfg.Feed)
	stream := monitor.StreamClientFunc(func(ctx context.Context) (monitor.Session, error) {
		session, err := binanceClient.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	})

	dispatcher := notifier.NewDispatcher(
		notifier.NewDiscordWebhook(cfg.Webhook.Timeout),
		notifier.Identity{Username: cfg.Webhook.Username, AvatarURL: cfg.Webhook.AvatarURL},
		log.StandardLogger(),
	)

	priceMonitor := monitor.NewPriceMonitor(cfg.Pairs, cfg.Webhook.Defaults, stream, dispatcher, opts...)

	if cfg.Metrics.Port > 0 {
		server := metrics.NewServer(cfg.Metrics.Port, reg, func() (string, bool) {
			state := priceMonitor.State()
			return state.String(), state == monitor.StateSubscribed
		})
		go func() {
			if err := server.Start(); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Metrics server shutdown")
			}
		}()
	}

	logPairs(cfg)

	if err := priceMonitor.Run(ctx); err != nil {
		return errors.Wrap(err, "monitor error")
	}

	log.Info("pricealerts stopped gracefully")
	return nil
}

func verifySymbols(ctx context.Context, cfg *types.Config) {
	symbols := make([]string, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		symbols = append(symbols, p.Symbol)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.Feed.HandshakeTimeout)
	defer cancel()

	res, err := client.NewSymbolVerifier(cfg.Feed.RESTURL).Verify(verifyCtx, symbols)
	if err != nil {
		log.WithError(err).Warn("Symbol verification skipped")
		return
	}
	if len(res.Missing) > 0 {
		log.Warnf("Symbols not listed on the exchange, they will never tick: %s", strings.Join(res.Missing, ", "))
	}
	for _, symbol := range symbols {
		if price, ok := res.Prices[symbol]; ok {
			log.WithField("symbol", symbol).Debugf("[%s] Reference price: %s", symbol, format.Price(price, false))
		}
	}
}

func logPairs(cfg *types.Config) {
	log.Infof("Monitoring %d pairs", len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		webhooks := len(p.Webhooks)
		if webhooks == 0 {
			webhooks = len(cfg.Webhook.Defaults)
		}
		log.Infof("- %s: alert on moves of %s (%d webhooks)", p.Symbol, format.Price(p.Threshold, false), webhooks)
	}
}

func Execute() error {
	return rootCmd.Execute()
}
