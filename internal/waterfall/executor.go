package waterfall

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/internal/resilience"
	"github.com/sells-group/icp-miner/internal/waterfall/source"
	"github.com/sells-group/icp-miner/pkg/verify"
)

// Executor runs the email waterfall for one candidate at a time.
type Executor struct {
	cfg      *Config
	registry *source.Registry
	verifier verify.Client
}

// NewExecutor creates a waterfall executor.
func NewExecutor(cfg *Config, registry *source.Registry, verifier verify.Client) *Executor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Executor{
		cfg:      cfg,
		registry: registry,
		verifier: verifier,
	}
}

// Run walks the chain in order, validating each source's addresses until one
// is usable. The first usable address wins and later sources never run.
func (e *Executor) Run(ctx context.Context, c *model.Candidate) (*Resolution, error) {
	res := &Resolution{}
	var tried []string

	for _, sc := range e.cfg.Chain {
		if !sc.IsEnabled() {
			continue
		}
		src := e.registry.Get(sc.Name)
		if src == nil {
			zap.L().Warn("waterfall: unknown source in chain", zap.String("source", sc.Name))
			continue
		}

		addrs, err := src.Candidates(ctx, c, tried)
		if err != nil {
			// A failed source is skipped, not fatal: later stages may still
			// resolve the address.
			zap.L().Warn("waterfall: source failed",
				zap.String("source", sc.Name),
				zap.String("person", c.FullName),
				zap.Error(err),
			)
			continue
		}

		if limit := e.cfg.CandidateCap(sc); len(addrs) > limit {
			addrs = addrs[:limit]
		}
		if src.Discovers() {
			res.Discovered = append(res.Discovered, addrs...)
		}

		for _, addr := range addrs {
			tried = append(tried, addr)

			attempt := e.validate(ctx, sc.Name, addr)
			res.Attempts = append(res.Attempts, attempt)

			if attempt.Usable {
				res.Resolved = true
				res.Email = addr
				res.Source = sc.Name
				zap.L().Debug("waterfall: resolved",
					zap.String("person", c.FullName),
					zap.String("source", sc.Name),
					zap.Int("attempts", len(res.Attempts)),
				)
				return res, nil
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
		}
	}

	return res, nil
}

// validate checks one address, retrying transient validator failures. A
// validator outage is recorded as an unusable attempt rather than failing the
// whole candidate.
func (e *Executor) validate(ctx context.Context, sourceName, addr string) Attempt {
	attempt := Attempt{Source: sourceName, Address: addr}

	v, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    e.cfg.Validate.MaxAttempts,
		InitialBackoff: time.Duration(e.cfg.Validate.BackoffBaseMS) * time.Millisecond,
	}, func(ctx context.Context) (*verify.Validation, error) {
		return e.verifier.Validate(ctx, addr)
	})
	if err != nil {
		zap.L().Warn("waterfall: validation failed",
			zap.String("address", addr),
			zap.Error(err),
		)
		attempt.Result = "error"
		return attempt
	}

	attempt.Result = v.Result
	attempt.Usable = v.Usable()
	return attempt
}
