package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"PriceKeeper/internal/config"
	"PriceKeeper/internal/model"
	"PriceKeeper/internal/period"
	"PriceKeeper/internal/scheduler"
	"PriceKeeper/internal/seed"
	"PriceKeeper/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the maintenance scheduler until SIGINT/SIGTERM",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		runNow, _ := cmd.Flags().GetBool("run-now")
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.NewScheduler(ctx, a.resolver, a.cfg.Retention.DaysToKeep)
			if err := sched.RegisterAll(
				config.CronSpec(a.cfg.Schedule.SweepCron),
				config.CronSpec(a.cfg.Schedule.CleanupCron),
				config.CronSpec(a.cfg.Schedule.RefreshCron),
			); err != nil {
				return fmt.Errorf("register cron tasks: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			if runNow {
				log.Info().Msg("running all tasks now")
				sched.Trigger()
			}

			log.Info().Msg("pricekeeper is running, press Ctrl+C to stop")
			<-ctx.Done()
			log.Info().Msg("shutdown signal received, stopping")
			return nil
		})
	},
}

var priceCmd = &cobra.Command{
	Use:   "price SYMBOL...",
	Short: "Print the current price of each symbol",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			prices, err := a.resolver.CurrentPrices(ctx, args)
			if err != nil {
				return err
			}
			return printJSON(cmd, prices)
		})
	},
}

var chartCmd = &cobra.Command{
	Use:   "chart SYMBOL",
	Short: "Print the price series for a period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _ := cmd.Flags().GetString("period")
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			points, err := a.resolver.GetChartData(ctx, args[0], p)
			if err != nil {
				return err
			}
			return printJSON(cmd, points)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search symbols in the curated catalog and the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			return printJSON(cmd, a.resolver.SearchSymbols(ctx, args[0], limit))
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the symbols held in the price store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			return printJSON(cmd, a.resolver.DatabaseStats(ctx))
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored prices older than --days (0 deletes everything)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days < 0 {
			return fmt.Errorf("--days must not be negative")
		}
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			n, err := a.resolver.CleanupOldData(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
			return nil
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [SYMBOL...]",
	Short: "Store today's price for symbols lacking one (default: every stored symbol)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			report, err := a.resolver.RefreshSymbols(ctx, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d, skipped %d, failed %d\n",
				report.Updated, report.Skipped, report.Failed)
			for sym, ferr := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", sym, ferr)
			}
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the store with synthetic weekday history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		days, _ := cmd.Flags().GetInt("days")
		rngSeed, _ := cmd.Flags().GetInt64("rand-seed")
		if days < 1 {
			return fmt.Errorf("--days must be positive")
		}
		if rngSeed == 0 {
			rngSeed = time.Now().UnixNano()
		}
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			rng := rand.New(rand.NewSource(rngSeed))
			end := time.Now()
			start := end.AddDate(0, 0, -days)
			for _, s := range seed.DefaultStocks() {
				points := seed.Generate(s, start, end, rng)
				n, err := store.BulkUpsert(ctx, a.store, s.Symbol, points)
				if err != nil {
					return fmt.Errorf("seed %s after %d records: %w", s.Symbol, n, err)
				}
				log.Info().Str("symbol", s.Symbol).Int("records", n).Msg("seeded")
			}
			return printJSON(cmd, a.resolver.DatabaseStats(ctx))
		})
	},
}

var gapsCmd = &cobra.Command{
	Use:   "gaps SYMBOL",
	Short: "List calendar dates without a stored price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		today := time.Now()
		if to == "" {
			to = model.FormatDate(today)
		}
		if from == "" {
			from = model.FormatDate(today.AddDate(0, 0, -period.LookbackDays(period.Default)))
		}
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			missing, err := a.store.MissingDates(ctx, args[0], from, to)
			if err != nil {
				return err
			}
			return printJSON(cmd, missing)
		})
	},
}

func init() {
	serveCmd.Flags().Bool("run-now", false, "run every maintenance task once at startup")
	chartCmd.Flags().StringP("period", "p", period.Default, "one of 1D 1W 1M 3M 6M 1Y 2Y 5Y 10Y MAX")
	searchCmd.Flags().IntP("limit", "n", 10, "maximum number of results")
	cleanupCmd.Flags().Int("days", 0, "keep records from the last N days")
	_ = cleanupCmd.MarkFlagRequired("days")
	seedCmd.Flags().Int("days", seed.DefaultDays, "days of history to generate")
	seedCmd.Flags().Int64("rand-seed", 0, "random seed (0 picks one from the clock)")
	gapsCmd.Flags().String("from", "", "first date, YYYY-MM-DD (default 30 days ago)")
	gapsCmd.Flags().String("to", "", "last date, YYYY-MM-DD (default today)")
}
