package eval

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// EvaluateAll evaluates independent named selectors concurrently against the
// shared snapshot.
//
// Each selector gets one "dbtsel.evaluate" span. The only possible error is
// ctx cancellation; results for selectors that finished are still returned.
func (e *Evaluator) EvaluateAll(ctx context.Context, exprs map[string]selector.Expression) (map[string]node.Set, error) {
	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		results = make(map[string]node.Set, len(exprs))
	)

	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for _, name := range names {
		name := name
		expr := exprs[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matched := e.evaluateTraced(gctx, name, expr)
			mu.Lock()
			results[name] = matched
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (e *Evaluator) evaluateTraced(ctx context.Context, name string, expr selector.Expression) node.Set {
	ctx, span := tracer.Start(ctx, "dbtsel.evaluate",
		trace.WithAttributes(attribute.String("selector.name", name)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	matched := e.Evaluate(expr)

	span.SetAttributes(attribute.Int("selector.matched", len(matched)))
	span.SetStatus(codes.Ok, "")
	recordEvaluation(ctx, name, len(matched), time.Since(start))
	return matched
}
