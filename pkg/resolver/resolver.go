// Package resolver turns a post URL into directly fetchable image URLs by
// trying a fixed cascade of strategies and returning the first that finds
// anything.
package resolver

import (
	"context"
	"fmt"
	"time"

	"postmedia/pkg/config"
	"postmedia/pkg/document"
	"postmedia/pkg/logger"
	"postmedia/pkg/mediatree"
	"postmedia/pkg/metadata"
	"postmedia/pkg/ratelimit"
)

// Resolver runs the strategy cascade. It keeps no per-call state and is safe
// for concurrent use.
type Resolver struct {
	strategies []Strategy
	logger     logger.Logger
}

// New builds the standard cascade: nested-url, direct-extension, embed,
// metadata, document. Strategies listed in cfg.Resolver.DisabledStrategies are
// left out; the order of the rest never changes.
func New(fetcher Fetcher, extractor metadata.Extractor, cfg *config.Config, log logger.Logger) *Resolver {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if extractor == nil || !cfg.Metadata.Enabled {
		extractor = metadata.Nop{}
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if n := cfg.Fetch.EmbedRequestsPerMinute; n > 0 {
		limiter = ratelimit.NewSlidingWindow(n, time.Minute)
	}

	all := []Strategy{
		NestedURL{Extensions: cfg.Resolver.ImageExtensions},
		DirectExtension{Extensions: cfg.Resolver.ImageExtensions},
		&Embed{
			Fetcher: fetcher,
			Timeout: cfg.Fetch.EmbedTimeout,
			Limiter: limiter,
			Walker:  mediatree.Walker{MaxDepth: cfg.Resolver.MaxSearchDepth},
			Log:     log,
		},
		&Metadata{Extractor: extractor, Log: log},
		&Document{
			Fetcher:   fetcher,
			Timeout:   cfg.Fetch.DocumentTimeout,
			Extractor: document.Extractor{Blocklist: cfg.Resolver.ImgBlocklist},
			Log:       log,
		},
	}

	var enabled []Strategy
	for _, s := range all {
		if cfg.StrategyEnabled(s.Name()) {
			enabled = append(enabled, s)
		} else {
			log.DebugWithFields("strategy disabled", map[string]interface{}{"strategy": s.Name()})
		}
	}
	return NewWithStrategies(log, enabled...)
}

// NewWithStrategies builds a resolver around an explicit cascade.
func NewWithStrategies(log logger.Logger, strategies ...Strategy) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{strategies: strategies, logger: log}
}

// Strategies returns the strategy names in the order they run.
func (r *Resolver) Strategies() []string {
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Resolve returns the first non-empty strategy result, or an empty Result
// when rawURL cannot be parsed or every strategy comes back empty.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) Result {
	req, err := NewRequest(rawURL)
	if err != nil {
		r.logger.WithError(err).WarnWithFields("unparseable url", map[string]interface{}{"url": rawURL})
		return Result{}
	}

	for _, s := range r.strategies {
		if ctx.Err() != nil {
			r.logger.WithError(ctx.Err()).DebugWithFields("resolution abandoned", map[string]interface{}{
				"url": req.Raw,
			})
			return Result{}
		}

		start := time.Now()
		result := r.run(ctx, s, req)
		fields := map[string]interface{}{
			"strategy": s.Name(),
			"url":      req.Raw,
			"count":    len(result.URLs),
			"duration": time.Since(start),
		}
		if result.Empty() {
			r.logger.DebugWithFields("strategy found nothing", fields)
			continue
		}
		r.logger.InfoWithFields("media resolved", fields)
		return result
	}

	r.logger.WarnWithFields("no media found", map[string]interface{}{"url": req.Raw})
	return Result{}
}

// run isolates a strategy so a panic inside it counts as an empty result.
func (r *Resolver) run(ctx context.Context, s Strategy, req *Request) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorWithFields("strategy panicked", map[string]interface{}{
				"strategy": s.Name(),
				"url":      req.Raw,
				"panic":    fmt.Sprint(p),
			})
			result = Result{}
		}
	}()

	result = s.Resolve(ctx, req)
	if result.Empty() {
		return Result{}
	}
	result.Strategy = s.Name()
	return result
}
