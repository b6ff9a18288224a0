package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pricekeeper",
	Short: "Stock price and chart resolver",
	Long: `pricekeeper resolves stock prices, charts and symbol searches from an
in-memory cache, a SQLite/PostgreSQL price store and the Yahoo Finance API.

Commands:
    serve      run the maintenance scheduler until interrupted
    price      current price for one or more symbols
    chart      downsampled price series for a period
    search     symbol search over the curated catalog and the provider
    stats      symbols held in the price store
    cleanup    delete stored prices older than N days
    refresh    store today's price for symbols that lack one
    seed       fill the store with synthetic weekday history
    gaps       list dates without a stored price`,
	SilenceUsage: true,
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultPath, "config file (env CONFIG_PATH)")

	rootCmd.AddCommand(
		serveCmd,
		priceCmd,
		chartCmd,
		searchCmd,
		statsCmd,
		cleanupCmd,
		refreshCmd,
		seedCmd,
		gapsCmd,
	)
}

// withApp loads config, wires the app and runs fn, closing the app afterwards.
func withApp(cmd *cobra.Command, degraded bool, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, degraded)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
