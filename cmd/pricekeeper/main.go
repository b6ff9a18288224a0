// Command pricekeeper resolves stock prices and charts through the cache,
// the price store and the quote provider, and runs the maintenance scheduler.
//
// Usage:
//
//	pricekeeper serve
//	pricekeeper price AAPL MSFT
//	pricekeeper chart AAPL --period 1Y
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
