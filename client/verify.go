package client

import (
	"context"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SymbolVerifier checks configured symbols against the exchange's spot
// ticker list before streaming starts.
type SymbolVerifier struct {
	cli *binance.Client
}

// NewSymbolVerifier uses public endpoints only; no API key is needed.
// An empty restURL keeps the library's default endpoint.
func NewSymbolVerifier(restURL string) *SymbolVerifier {
	cli := binance.NewClient("", "")
	if restURL != "" {
		cli.BaseURL = strings.TrimRight(restURL, "/")
	}
	return &SymbolVerifier{cli: cli}
}

// Verification is the outcome of a symbol check.
type Verification struct {
	Prices  map[string]decimal.Decimal
	Missing []string
}

// Verify returns the current reference price of every known symbol and the
// symbols the exchange does not list.
func (v *SymbolVerifier) Verify(ctx context.Context, symbols []string) (Verification, error) {
	listed, err := v.cli.NewListPricesService().Do(ctx)
	if err != nil {
		return Verification{}, errors.Wrap(err, "list ticker prices")
	}

	bySymbol := lo.SliceToMap(listed, func(item *binance.SymbolPrice) (string, string) {
		return item.Symbol, item.Price
	})

	res := Verification{Prices: make(map[string]decimal.Decimal, len(symbols))}
	for _, symbol := range lo.Uniq(symbols) {
		raw, ok := bySymbol[strings.ToUpper(symbol)]
		if !ok {
			res.Missing = append(res.Missing, symbol)
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			log.WithError(err).WithField("symbol", symbol).Warn("Unparsable reference price")
			continue
		}
		res.Prices[symbol] = price
	}
	return res, nil
}
