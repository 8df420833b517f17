package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/backlab/simcore/internal/config"
	"github.com/backlab/simcore/internal/coordinator"
	"github.com/backlab/simcore/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	backtestSymbols  string
	backtestFrom     string
	backtestTo       string
	backtestCapital  string
	backtestRisk     string
	backtestFill     string
	backtestSlippage string
	backtestTrades   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a one-shot backtest",
	Long:  "Replay historical bars through the simulator and print performance statistics",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbols, "symbols", "", "Comma-separated symbols (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestCapital, "capital", "100000", "Initial capital")
	backtestCmd.Flags().StringVar(&backtestRisk, "risk", "0.01", "Risk per trade as a fraction of equity")
	backtestCmd.Flags().StringVar(&backtestFill, "fill", "signal_price", "Fill policy: signal_price or next_bar_open")
	backtestCmd.Flags().StringVar(&backtestSlippage, "slippage", "none", "Slippage model: none, fixed, or random")
	backtestCmd.Flags().BoolVar(&backtestTrades, "trades", false, "Print the trade ledger")

	backtestCmd.MarkFlagRequired("symbols")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fromDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	toDate, err := time.Parse("2006-01-02", backtestTo)
	if err != nil {
		return fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
	}
	if toDate.Before(fromDate) {
		return fmt.Errorf("end date must be after start date")
	}

	capital, err := decimal.NewFromString(backtestCapital)
	if err != nil {
		return fmt.Errorf("invalid capital %q: %w", backtestCapital, err)
	}
	risk, err := decimal.NewFromString(backtestRisk)
	if err != nil {
		return fmt.Errorf("invalid risk %q: %w", backtestRisk, err)
	}

	src, closeSrc, err := buildSource(cfg)
	if err != nil {
		return fmt.Errorf("opening bar source: %w", err)
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	coord := coordinator.New(src, coordinator.Options{
		Timezone: cfg.Market.Timezone,
	}, log)

	runCfg := config.RunConfig{
		Symbols:        strings.Split(backtestSymbols, ","),
		Start:          fromDate,
		End:            toDate.Add(24*time.Hour - time.Nanosecond),
		InitialCapital: capital,
		RiskPerTrade:   risk,
		FillPolicy:     backtestFill,
		SlippageModel:  backtestSlippage,
		Timezone:       cfg.Market.Timezone,
	}

	runID, err := coord.Submit(context.Background(), runCfg)
	if err != nil {
		return fmt.Errorf("starting backtest: %w", err)
	}
	if err := coord.Wait(runID); err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	res, err := coord.Result(runID)
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}

	printResult(res, runCfg)
	return nil
}

func printResult(res *coordinator.Result, cfg config.RunConfig) {
	fmt.Println("=== simcore Backtest ===")
	fmt.Printf("Symbols:  %s\n", strings.Join(cfg.Symbols, ", "))
	fmt.Printf("Period:   %s to %s\n",
		cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02"))
	fmt.Printf("Bars:     %d processed, %d skipped\n",
		res.Run.BarsProcessed, res.Run.BarsSkipped)
	fmt.Println()

	s := res.Summary
	fmt.Printf("Trades:       %d (%d won, %d lost)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Printf("Win rate:     %s%%\n", s.WinRate.StringFixed(1))
	fmt.Printf("Total PnL:    %s\n", s.TotalPnL.StringFixed(2))
	fmt.Printf("Avg R:        %s\n", s.AvgR.StringFixed(2))
	fmt.Printf("Max drawdown: %s%%\n", s.MaxDrawdown.StringFixed(1))
	fmt.Printf("Final equity: %s\n", s.Equity.StringFixed(2))

	if backtestTrades && len(res.Ledger) > 0 {
		fmt.Println()
		fmt.Println("Trades:")
		for _, t := range res.Ledger {
			fmt.Printf("  %-6s %-5s %s -> %s  size=%d  pnl=%s  r=%s  %s\n",
				t.Symbol, t.Direction,
				t.EntryTime.Format("2006-01-02 15:04"),
				t.ExitTime.Format("2006-01-02 15:04"),
				t.Size, t.PnL.StringFixed(2), t.RMultiple.StringFixed(2),
				t.ExitReason)
		}
	}
}
