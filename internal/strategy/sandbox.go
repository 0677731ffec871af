package strategy

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"bidarena/internal/types"
)

// Sentinel errors for the two failure kinds callers retry on.
var (
	// ErrValidationFailed marks candidate source rejected by the AST gate.
	ErrValidationFailed = errors.New("strategy validation failed")
	// ErrCompileFailed marks validated source that still did not produce a
	// callable entry point.
	ErrCompileFailed = errors.New("strategy compilation failed")
)

// bidFunc is the required entry-point signature: the six BidContext fields
// in, one bid price out.
type bidFunc = func(
	initialBudget float64,
	totalDuration int,
	remainingBudget float64,
	remainingTime int,
	winnerPricePercentiles map[int]float64,
	conversionRate float64,
) float64

// Sandbox compiles validated strategy artifacts into callables using the
// yaegi interpreter. Interpreted code sees the stdlib symbol table, but the
// validator has already restricted imports to math, so nothing else is
// reachable by name. Compilation happens once per artifact and is cached on
// the artifact's ID.
type Sandbox struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string]bidFunc
}

// NewSandbox creates a sandbox. A nil logger disables logging. timeout
// bounds the wall clock of a single bid invocation; zero disables the bound.
func NewSandbox(timeout time.Duration, logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{
		timeout: timeout,
		logger:  logger,
		cache:   make(map[string]bidFunc),
	}
}

// Compile turns an artifact into an executable Strategy. The artifact is
// re-validated first: validation failure and compilation failure are
// distinct, but both are retryable generation errors to the caller.
func (s *Sandbox) Compile(artifact *types.StrategyArtifact) (*Strategy, error) {
	s.mu.Lock()
	fn, ok := s.cache[artifact.ID]
	s.mu.Unlock()
	if ok {
		return s.newStrategy(artifact, fn), nil
	}

	if result := ValidateSource(artifact.Code); !result.Valid {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, result.Errors)
	}

	fn, err := s.compile(artifact.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
	}

	s.mu.Lock()
	s.cache[artifact.ID] = fn
	s.mu.Unlock()

	s.logger.Debug("compiled strategy",
		zap.String("artifact_id", artifact.ID),
		zap.String("name", artifact.Name))

	return s.newStrategy(artifact, fn), nil
}

// Verify compiles validated source without caching the result. It reports
// ErrCompileFailed when interpretation rejects code the AST gate accepted,
// so generation can spend its retry budget on uncompilable candidates too.
func (s *Sandbox) Verify(source string) error {
	if _, err := s.compile(source); err != nil {
		return fmt.Errorf("%w: %v", ErrCompileFailed, err)
	}
	return nil
}

func (s *Sandbox) newStrategy(artifact *types.StrategyArtifact, fn bidFunc) *Strategy {
	return &Strategy{
		artifact: artifact,
		fn:       fn,
		timeout:  s.timeout,
		logger:   s.logger,
	}
}

func (s *Sandbox) compile(source string) (bidFunc, error) {
	wrapped := ensurePackageClause(source)

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("eval failed: %w", err)
	}

	v, err := i.Eval(packageName(wrapped) + "." + EntryPointName)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", EntryPointName, err)
	}

	fn, ok := v.Interface().(bidFunc)
	if !ok {
		return nil, fmt.Errorf("%s has wrong signature (got %T)", EntryPointName, v.Interface())
	}
	return fn, nil
}

// packageName extracts the declared package name; source is known to parse
// at this point.
func packageName(source string) string {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "strategy.go", source, parser.PackageClauseOnly)
	if err != nil || file.Name == nil {
		return "strategy"
	}
	return file.Name.Name
}

// Strategy is a compiled, invocable bidding strategy.
type Strategy struct {
	artifact *types.StrategyArtifact
	fn       bidFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// Artifact returns the artifact this strategy was compiled from.
func (st *Strategy) Artifact() *types.StrategyArtifact {
	return st.artifact
}

// Bid invokes the strategy for one record. A runtime fault or an expired
// time budget never propagates: the fault is logged and the call yields a
// 0.0 bid, so one bad input cannot abort a simulation.
func (st *Strategy) Bid(ctx context.Context, bc types.BidContext) float64 {
	resultCh := make(chan float64, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				st.logger.Warn("strategy runtime fault",
					zap.String("artifact_id", st.artifact.ID),
					zap.Any("panic", r))
				resultCh <- 0.0
			}
		}()
		resultCh <- st.fn(
			bc.InitialBudget,
			bc.TotalDuration,
			bc.RemainingBudget,
			bc.RemainingTime,
			bc.WinnerPricePercentiles,
			bc.ConversionRate,
		)
	}()

	var timeoutCh <-chan time.Time
	if st.timeout > 0 {
		timer := time.NewTimer(st.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case bid := <-resultCh:
		return bid
	case <-timeoutCh:
		st.logger.Warn("strategy invocation exceeded time budget",
			zap.String("artifact_id", st.artifact.ID),
			zap.Duration("timeout", st.timeout))
		return 0.0
	case <-ctx.Done():
		st.logger.Warn("strategy invocation cancelled",
			zap.String("artifact_id", st.artifact.ID),
			zap.Error(ctx.Err()))
		return 0.0
	}
}
