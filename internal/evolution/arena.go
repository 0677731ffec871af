package evolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidarena/internal/engine"
	"bidarena/internal/generation"
	"bidarena/internal/strategy"
	"bidarena/internal/types"
)

// Config holds the orchestrator knobs.
type Config struct {
	// InitialBudget is the budget every replay run starts from.
	InitialBudget float64
	// MaxAttempts bounds generation and optimization retries.
	MaxAttempts int
	// StagnationThreshold is the conversion count below which a lineage's
	// best candidate triggers a wholesale re-roll instead of an incremental
	// optimization.
	StagnationThreshold int
	// BidTimeout bounds one sandboxed bid invocation. Zero disables it.
	BidTimeout time.Duration
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		InitialBudget:       1000.0,
		MaxAttempts:         generation.DefaultMaxAttempts,
		StagnationThreshold: 5,
		BidTimeout:          time.Second,
	}
}

// Arena owns the session state: the frozen record stream, the lineage set,
// and the round counter. All mutation goes through its methods; there is no
// ambient global state.
type Arena struct {
	cfg     Config
	records []types.MarketRecord
	engine  *engine.Engine
	sandbox *strategy.Sandbox
	gen     *generation.Generator
	client  generation.LLMClient
	logger  *zap.Logger

	lineages map[string]*Lineage
	order    []string // lineage names in creation order
	round    int      // completed optimization rounds
}

// NewArena creates an arena over a fixed record stream. The stream and its
// derived statistics are treated as read-only for the rest of the session.
func NewArena(client generation.LLMClient, records []types.MarketRecord, cfg Config, logger *zap.Logger) *Arena {
	if logger == nil {
		logger = zap.NewNop()
	}
	// The generator shares the arena's sandbox so an uncompilable candidate
	// is caught and retried inside the generation attempt loop rather than
	// failing the lineage at simulation time.
	sandbox := strategy.NewSandbox(cfg.BidTimeout, logger)
	return &Arena{
		cfg:      cfg,
		records:  records,
		engine:   engine.New(cfg.InitialBudget, logger),
		sandbox:  sandbox,
		gen:      generation.NewGenerator(client, sandbox, cfg.MaxAttempts, logger),
		client:   client,
		logger:   logger,
		lineages: make(map[string]*Lineage),
	}
}

// GenerateInitial generates, validates, and simulates one round-0 strategy
// per requested archetype. A failed archetype is reported in the joined
// error; sibling lineages are unaffected.
func (a *Arena) GenerateInitial(ctx context.Context, strategyTypes []generation.StrategyType) error {
	var errs []error
	for _, st := range strategyTypes {
		artifact, err := a.gen.Generate(ctx, st)
		if err != nil {
			a.logger.Warn("initial generation failed",
				zap.Stringer("strategy_type", st),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("lineage %s: %w", st, err))
			continue
		}

		result, err := a.simulate(ctx, artifact)
		if err != nil {
			errs = append(errs, fmt.Errorf("lineage %s: %w", st, err))
			continue
		}

		a.addLineage(&Lineage{
			Name:    st.String(),
			Entries: []Entry{{Round: 0, Artifact: artifact, Result: result}},
		})

		a.logger.Info("lineage created",
			zap.String("lineage", st.String()),
			zap.Int("conversions", result.ConversionCount),
			zap.Float64("spend", result.TotalSpend))
	}
	return errors.Join(errs...)
}

// RunRound optimizes every lineage once. Per-lineage failures are isolated:
// a lineage whose attempts are exhausted keeps its history and skips the
// round while its siblings proceed.
func (a *Arena) RunRound(ctx context.Context) error {
	a.round++
	var errs []error
	for _, name := range a.order {
		if err := a.optimizeLineage(ctx, a.lineages[name]); err != nil {
			a.logger.Warn("round failed for lineage",
				zap.Int("round", a.round),
				zap.String("lineage", name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("lineage %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// optimizeLineage runs one revert-aware optimization step for one lineage.
func (a *Arena) optimizeLineage(ctx context.Context, lin *Lineage) error {
	best := lin.Best()
	latest := lin.Latest()

	revert := best.Round != latest.Round
	reroll := best.Result.ConversionCount < a.cfg.StagnationThreshold

	if revert {
		a.logger.Info("reverting to best ancestor",
			zap.String("lineage", lin.Name),
			zap.Int("best_round", best.Round),
			zap.Int("latest_round", latest.Round))
	}
	if reroll {
		a.logger.Info("stagnant lineage, re-rolling",
			zap.String("lineage", lin.Name),
			zap.Int("best_conversions", best.Result.ConversionCount))
	}

	historyContext := lin.historyContext(best, revert, reroll)
	analysis, artifact, err := a.gen.AnalyzeAndOptimize(ctx, best.Artifact, metricsMap(best.Result), historyContext)
	if err != nil {
		return err
	}
	a.logger.Debug("strategy analysis",
		zap.String("lineage", lin.Name),
		zap.String("analysis", analysis))

	result, err := a.simulate(ctx, artifact)
	if err != nil {
		return err
	}

	lin.Entries = append(lin.Entries, Entry{
		Round:    lin.nextRound(),
		Artifact: artifact,
		Result:   result,
	})

	a.logger.Info("lineage optimized",
		zap.String("lineage", lin.Name),
		zap.Int("round", lin.Latest().Round),
		zap.Int("conversions", result.ConversionCount),
		zap.Bool("reverted", revert),
		zap.Bool("rerolled", reroll))
	return nil
}

// InjectStrategy adds a hand-written candidate as its own single-entry
// lineage, entering at the arena's current round. It bypasses generation but
// passes the same validator and replay as generated strategies.
func (a *Arena) InjectStrategy(ctx context.Context, name, source string) (*Lineage, error) {
	if _, exists := a.lineages[name]; exists {
		return nil, fmt.Errorf("lineage %q already exists", name)
	}
	if result := strategy.ValidateSource(source); !result.Valid {
		return nil, fmt.Errorf("%w: %v", strategy.ErrValidationFailed, result.Errors)
	}

	artifact := &types.StrategyArtifact{
		ID:           uuid.NewString(),
		Name:         name,
		StrategyType: "Hand-Written",
		Code:         source,
		CreatedAt:    time.Now().Unix(),
	}

	result, err := a.simulate(ctx, artifact)
	if err != nil {
		return nil, err
	}

	lin := &Lineage{
		Name:    name,
		Entries: []Entry{{Round: a.round, Artifact: artifact, Result: result}},
	}
	a.addLineage(lin)
	return lin, nil
}

// AnalyzeAll asks the model for cross-strategy insights over every
// lineage's latest result.
func (a *Arena) AnalyzeAll(ctx context.Context) (string, error) {
	summaries := make([]types.StrategySummary, 0, len(a.order))
	for _, name := range a.order {
		latest := a.lineages[name].Latest()
		summaries = append(summaries, types.StrategySummary{
			Name:    name,
			WinRate: latest.Result.WinRate,
			AvgCPA:  latest.Result.AvgCPA,
		})
	}
	return a.client.AnalyzeStrategies(ctx, summaries)
}

// Lineages returns the lineage set in creation order.
func (a *Arena) Lineages() []*Lineage {
	out := make([]*Lineage, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.lineages[name])
	}
	return out
}

// Round returns the number of completed optimization round triggers.
func (a *Arena) Round() int {
	return a.round
}

func (a *Arena) addLineage(lin *Lineage) {
	a.lineages[lin.Name] = lin
	a.order = append(a.order, lin.Name)
}

// simulate compiles an artifact in the sandbox, replays it, and stamps the
// resulting metrics onto the artifact.
func (a *Arena) simulate(ctx context.Context, artifact *types.StrategyArtifact) (*types.SimulationResult, error) {
	compiled, err := a.sandbox.Compile(artifact)
	if err != nil {
		return nil, err
	}
	result, err := a.engine.Run(ctx, compiled, a.records)
	if err != nil {
		return nil, err
	}
	artifact.Metrics = metricsMap(result)
	return result, nil
}

func metricsMap(r *types.SimulationResult) map[string]float64 {
	return map[string]float64{
		"bids_placed": float64(r.BidsPlaced),
		"wins":        float64(r.WinCount),
		"conversions": float64(r.ConversionCount),
		"win_rate":    r.WinRate,
		"total_spend": r.TotalSpend,
		"avg_cpm":     r.AvgCPM,
		"avg_cpa":     r.AvgCPA,
	}
}
