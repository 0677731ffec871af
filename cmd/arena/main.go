// Command arena runs the bidding strategy arena from the terminal:
// generate strategies, replay them against synthetic market data, and
// optimize them across rounds.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bidarena/internal/config"
	"bidarena/internal/evolution"
	"bidarena/internal/generation"
	"bidarena/internal/market"
)

var (
	flagConfig     string
	flagRounds     int
	flagRecords    int
	flagBudget     float64
	flagStrategies []string
	flagProvider   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "arena",
		Short: "LLM bidding strategy arena",
		Long: "arena generates ad-auction bidding strategies with a generative model,\n" +
			"replays them against synthetic market data, and evolves them across rounds.",
		RunE: runArena,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "arena.yaml", "config file path")
	rootCmd.Flags().IntVar(&flagRounds, "rounds", 2, "optimization rounds after the initial generation")
	rootCmd.Flags().IntVar(&flagRecords, "records", 0, "simulation records (0 = config value)")
	rootCmd.Flags().Float64Var(&flagBudget, "budget", 0, "initial budget (0 = config value)")
	rootCmd.Flags().StringSliceVar(&flagStrategies, "strategies",
		[]string{"Impression-Focused", "Aggressive"}, "strategy types to generate")
	rootCmd.Flags().StringVar(&flagProvider, "provider", "", "llm provider: mock or gemini (default from config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runArena(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagRecords > 0 {
		cfg.Simulation.NumRecords = flagRecords
	}
	if flagBudget > 0 {
		cfg.Simulation.InitialBudget = flagBudget
	}
	if flagProvider != "" {
		cfg.LLM.Provider = flagProvider
	}

	logger, err := newLogger(cfg.Logging.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()

	var client generation.LLMClient
	switch cfg.LLM.Provider {
	case "", "mock":
		client = generation.NewMockClient()
	case "gemini":
		client, err = generation.NewGenAIClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	strategyTypes := make([]generation.StrategyType, 0, len(flagStrategies))
	for _, name := range flagStrategies {
		st, err := generation.ParseStrategyType(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		strategyTypes = append(strategyTypes, st)
	}

	logger.Info("generating market data",
		zap.Int("records", cfg.Simulation.NumRecords),
		zap.Int64("seed", cfg.Simulation.Seed))
	records := market.NewGenerator(cfg.Simulation.Seed).Generate(cfg.Simulation.NumRecords)

	arena := evolution.NewArena(client, records, evolution.Config{
		InitialBudget:       cfg.Simulation.InitialBudget,
		MaxAttempts:         cfg.Simulation.MaxAttempts,
		StagnationThreshold: cfg.Simulation.StagnationThreshold,
		BidTimeout:          time.Duration(cfg.Simulation.BidTimeoutMS) * time.Millisecond,
	}, logger)

	if err := arena.GenerateInitial(ctx, strategyTypes); err != nil {
		logger.Warn("some lineages failed to generate", zap.Error(err))
	}
	if len(arena.Lineages()) == 0 {
		return fmt.Errorf("no lineages survived initial generation")
	}

	for i := 0; i < flagRounds; i++ {
		logger.Info("running optimization round", zap.Int("round", i+1))
		if err := arena.RunRound(ctx); err != nil {
			logger.Warn("some lineages failed this round", zap.Error(err))
		}
	}

	printResults(cmd, arena)

	if analysis, err := arena.AnalyzeAll(ctx); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\nAnalysis:\n%s\n", analysis)
	} else {
		logger.Warn("cross-strategy analysis failed", zap.Error(err))
	}

	return nil
}

func printResults(cmd *cobra.Command, arena *evolution.Arena) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINEAGE\tROUND\tBIDS\tWINS\tWIN RATE\tCONV\tSPEND\tCPA")
	for _, lin := range arena.Lineages() {
		for _, e := range lin.Entries {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f%%\t%d\t$%.2f\t$%.2f\n",
				lin.Name, e.Round,
				e.Result.BidsPlaced, e.Result.WinCount, e.Result.WinRate*100,
				e.Result.ConversionCount, e.Result.TotalSpend, e.Result.AvgCPA)
		}
	}
	w.Flush() //nolint:errcheck
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
