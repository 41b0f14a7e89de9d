package main

import (
	"os"

	"github.com/7331/binance-live-price-alerts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
