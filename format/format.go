// Package format renders prices for status lines and alerts.
package format

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Decimals is the fixed number of fraction digits in every rendered price.
const Decimals = 4

// Price renders price as "$1,234.5000". When signed is true a "+" or "-"
// prefix carries the direction of the unrounded value; zero never gets a sign.
func Price(price decimal.Decimal, signed bool) string {
	rounded := price.Round(Decimals)
	fixed := rounded.Abs().StringFixed(Decimals)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.Grow(len(fixed) + len(fixed)/3 + 2)
	if signed {
		switch price.Sign() {
		case 1:
			b.WriteByte('+')
		case -1:
			b.WriteByte('-')
		}
	}
	b.WriteByte('$')
	b.WriteString(groupThousands(whole))
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// groupThousands inserts "," separators into a string of decimal digits.
func groupThousands(whole string) string {
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		return message.NewPrinter(language.English).Sprintf("%d", n)
	}
	if n, ok := new(big.Int).SetString(whole, 10); ok {
		return humanize.BigComma(n)
	}
	return whole
}
