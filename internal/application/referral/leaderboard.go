package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/logger"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/KRDOldAccount/UnitFiveProject/internal/application/referral"

// RootSource lists the customers nobody referred
type RootSource interface {
	FindRoots(ctx context.Context) ([]referral.Referral, error)
}

// LeaderboardEngine ranks every customer in the referral forest by their own
// number of direct referrals and keeps the top entries.
type LeaderboardEngine struct {
	graph    *GraphAccessor
	roots    RootSource
	size     int
	parallel bool
	workers  int
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *telemetry.ReferralMetrics
	tracer   trace.Tracer
}

// LeaderboardOption is a functional option for configuring the engine
type LeaderboardOption func(*LeaderboardEngine)

// WithLeaderboardSize sets how many customers the leaderboard keeps
func WithLeaderboardSize(size int) LeaderboardOption {
	return func(e *LeaderboardEngine) {
		if size > 0 {
			e.size = size
		}
	}
}

// WithParallel runs one traversal per referral tree on a pool of at most workers goroutines
func WithParallel(parallel bool, workers int) LeaderboardOption {
	return func(e *LeaderboardEngine) {
		e.parallel = parallel
		if workers > 0 {
			e.workers = workers
		}
	}
}

// WithTimeout bounds a whole leaderboard computation
func WithTimeout(timeout time.Duration) LeaderboardOption {
	return func(e *LeaderboardEngine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithEngineLogger sets the logger
func WithEngineLogger(logger *zap.Logger) LeaderboardOption {
	return func(e *LeaderboardEngine) {
		e.logger = logger
	}
}

// WithEngineMetrics sets the metrics recorder
func WithEngineMetrics(m *telemetry.ReferralMetrics) LeaderboardOption {
	return func(e *LeaderboardEngine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer used for computation spans
func WithTracer(tracer trace.Tracer) LeaderboardOption {
	return func(e *LeaderboardEngine) {
		e.tracer = tracer
	}
}

// NewLeaderboardEngine creates a new LeaderboardEngine
func NewLeaderboardEngine(graph *GraphAccessor, roots RootSource, opts ...LeaderboardOption) *LeaderboardEngine {
	e := &LeaderboardEngine{
		graph:    graph,
		roots:    roots,
		size:     referral.DefaultLeaderboardSize,
		parallel: true,
		workers:  8,
		timeout:  30 * time.Second,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Leaderboard returns at most size entries ordered by referral count
// descending, then customer id ascending. Either every tree is ranked and
// merged or an error is returned; a partial leaderboard is never produced.
func (e *LeaderboardEngine) Leaderboard(ctx context.Context) ([]referral.LeaderboardEntry, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "LeaderboardEngine.Leaderboard",
		trace.WithAttributes(
			attribute.Bool("leaderboard.parallel", e.parallel),
			attribute.Int("leaderboard.size", e.size),
		))
	defer span.End()

	entries, err := e.compute(ctx)

	e.metrics.RecordLeaderboard(ctx, time.Since(start), err)
	log := logger.Ctx(ctx, e.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("leaderboard computation failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, err
	}
	log.Debug("leaderboard computed",
		zap.Int("entries", len(entries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return entries, nil
}

func (e *LeaderboardEngine) compute(parent context.Context) ([]referral.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	roots, err := e.roots.FindRoots(ctx)
	if err != nil {
		return nil, e.classify(parent, ctx, err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("leaderboard.roots", len(roots)))

	var perTree [][]referral.LeaderboardEntry
	if e.parallel {
		perTree, err = e.rankParallel(ctx, roots)
	} else {
		perTree, err = e.rankSequential(ctx, roots)
	}
	if err != nil {
		return nil, e.classify(parent, ctx, err)
	}

	return referral.MergeTopK(e.size, perTree...), nil
}

func (e *LeaderboardEngine) rankSequential(ctx context.Context, roots []referral.Referral) ([][]referral.LeaderboardEntry, error) {
	perTree := make([][]referral.LeaderboardEntry, 0, len(roots))
	for _, root := range roots {
		top, err := e.rankTree(ctx, root.CustomerID)
		if err != nil {
			return nil, err
		}
		perTree = append(perTree, top)
	}
	return perTree, nil
}

// rankParallel ranks each tree as its own task. Tasks share nothing; each
// writes only its own slot, and the merge runs once after all have joined.
func (e *LeaderboardEngine) rankParallel(ctx context.Context, roots []referral.Referral) ([][]referral.LeaderboardEntry, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	perTree := make([][]referral.LeaderboardEntry, len(roots))
	for i, root := range roots {
		g.Go(func() error {
			top, err := e.rankTree(gctx, root.CustomerID)
			if err != nil {
				return err
			}
			perTree[i] = top
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perTree, nil
}

// rankTree visits every customer under rootID exactly once with an explicit
// worklist and returns that tree's top entries.
func (e *LeaderboardEngine) rankTree(ctx context.Context, rootID string) ([]referral.LeaderboardEntry, error) {
	var entries []referral.LeaderboardEntry
	visited := map[string]struct{}{rootID: {}}
	worklist := []string{rootID}

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		children, err := e.graph.DirectReferralIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, referral.LeaderboardEntry{CustomerID: id, NumReferrals: len(children)})

		for _, child := range children {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			worklist = append(worklist, child)
		}
	}

	return referral.TopK(entries, e.size), nil
}

// classify turns an expired computation deadline into a timeout error.
// Cancellation by the caller is returned as is.
func (e *LeaderboardEngine) classify(parent, ctx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: leaderboard not computed within %s: %w", shared.ErrTimeout, e.timeout, context.DeadlineExceeded)
	}
	return err
}
