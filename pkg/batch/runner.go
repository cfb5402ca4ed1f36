package batch

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lemonberrylabs/infixcalc/pkg/expr"
	"github.com/lemonberrylabs/infixcalc/pkg/types"
)

// Result is the outcome of evaluating one entry.
type Result struct {
	Entry  Entry
	Result string
	Err    error
	// Matched is nil when the entry has no expectation.
	Matched *bool
}

// Failed reports whether the entry failed to evaluate or missed its
// expectation. An entry that expects its error is not failed.
func (r Result) Failed() bool {
	if r.Matched != nil {
		return !*r.Matched
	}
	return r.Err != nil
}

// Run evaluates every entry of b using at most workers goroutines and returns
// the results in entry order. workers <= 0 uses GOMAXPROCS.
//
// Evaluation failures are reported per entry; the returned error is only set
// when ctx is cancelled before all entries have been evaluated.
func Run(ctx context.Context, b *Batch, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(b.Entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, entry := range b.Entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = evaluate(entry)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func evaluate(e Entry) Result {
	res, err := expr.Evaluate(e.Expression)
	r := Result{Entry: e, Result: res, Err: err}
	if e.HasExpect {
		matched := matches(e.Expect, res, err)
		r.Matched = &matched
	}
	return r
}

// matches compares an expectation with an outcome. Failures match their tag
// ("DivideByZero") or their full message.
func matches(expect, result string, err error) bool {
	if err == nil {
		return expect == result
	}
	var ee *types.EvalError
	if errors.As(err, &ee) && expect == ee.Tag {
		return true
	}
	return expect == err.Error()
}
