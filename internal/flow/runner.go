package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagechain/internal/browser/humanoid"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/chain"
	"github.com/xkilldash9x/pagechain/internal/pageobject"
)

// Opener opens a fresh page and returns a function that closes it.
type Opener func(ctx context.Context) (page.Page, func(), error)

// Runner executes flows against pages produced by Open.
type Runner struct {
	Open     Opener
	Settings pageobject.Settings
	Source   humanoid.AnimationSource
	Logger   *zap.Logger
	// Parallel caps concurrently running flows. Values below 1 mean one at a time.
	Parallel int
	// FailFast cancels the remaining flows after the first failure.
	FailFast bool
}

// Result is the outcome of one flow.
type Result struct {
	Name     string
	Source   string
	Duration time.Duration
	Err      error
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run executes f on its own page.
func (r *Runner) Run(ctx context.Context, f *Flow) Result {
	start := time.Now()
	res := Result{Name: f.Name, Source: f.Source}
	logger := r.logger().With(zap.String("flow", f.Name))
	logger.Info("Running flow.", zap.Int("steps", len(f.Steps)))

	res.Err = r.run(ctx, f, logger)
	res.Duration = time.Since(start)
	if res.Err != nil {
		logger.Error("Flow failed.", zap.Duration("duration", res.Duration), zap.Error(res.Err))
	} else {
		logger.Info("Flow passed.", zap.Duration("duration", res.Duration))
	}
	return res
}

func (r *Runner) run(ctx context.Context, f *Flow, logger *zap.Logger) error {
	p, closePage, err := r.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer closePage()

	session := pageobject.NewSession(p, r.Settings, r.Source, logger)
	defer session.Close()
	base := pageobject.NewBase(session)

	root := pageobject.Start(ctx, func(ctx context.Context) (any, error) {
		if f.Start != "" {
			if err := base.GoTo(ctx, f.Start); err != nil {
				return nil, err
			}
		}
		return base, nil
	}, logger)

	return execute(ctx, root, f.Steps)
}

// RunAll runs flows with at most Parallel in flight and returns their results in input order.
// The error summarizes the failures.
func (r *Runner) RunAll(ctx context.Context, flows []*Flow) ([]Result, error) {
	limit := r.Parallel
	if limit < 1 {
		limit = 1
	}

	results := make([]Result, len(flows))
	var g *errgroup.Group
	runCtx := ctx
	if r.FailFast {
		g, runCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(limit)

	for i, f := range flows {
		g.Go(func() error {
			if err := runCtx.Err(); err != nil {
				results[i] = Result{Name: f.Name, Source: f.Source, Err: err}
				return err
			}
			results[i] = r.Run(runCtx, f)
			if r.FailFast {
				return results[i].Err
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%d of %d flows failed: %w", len(failed), len(flows), errors.Join(failed...))
	}
	return results, nil
}

func execute(ctx context.Context, root *chain.Handle, steps []Step) error {
	saved := make(map[string]*chain.Handle)
	for i, s := range steps {
		h := root
		if s.On != "" {
			h = saved[s.On]
		}
		if s.Get != "" {
			for _, seg := range strings.Split(s.Get, ".") {
				h = h.Get(seg)
			}
		}
		if s.Index != nil {
			h = h.Index(s.Index)
		}
		if s.Call != "" {
			args, err := resolveArgs(ctx, s.Args, saved)
			if err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, s, err)
			}
			h = h.Call(s.Call, args...)
		}
		if s.Save != "" {
			saved[s.Save] = h
		}
		if s.Expect != nil {
			got, err := h.Await(ctx)
			if err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, s, err)
			}
			if !matches(got, s.Expect) {
				return fmt.Errorf("step %d (%s): got %v, want %v", i+1, s, got, s.Expect)
			}
		}
	}
	return root.Err(ctx)
}

// resolveArgs substitutes "{{name}}" arguments with the awaited value of the saved handle.
func resolveArgs(ctx context.Context, args []any, saved map[string]*chain.Handle) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		name, ok := reference(a)
		if !ok {
			out[i] = a
			continue
		}
		h, ok := saved[name]
		if !ok {
			return nil, fmt.Errorf("unknown reference %q", name)
		}
		v, err := h.Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

// matches compares printed forms so YAML scalars match the typed values members return.
func matches(got, want any) bool {
	return fmt.Sprint(got) == fmt.Sprint(want)
}
