// Package pipeline composes the crawl stages into the end-to-end
// product acquisition flow: normalize, cache, fetch, extract,
// categorize, validate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/cache"
	"github.com/arview/product-crawler/internal/categorize"
	"github.com/arview/product-crawler/internal/extract"
	"github.com/arview/product-crawler/internal/fetch/headless"
	"github.com/arview/product-crawler/internal/metrics"
	"github.com/arview/product-crawler/internal/product"
	"github.com/arview/product-crawler/internal/urlnorm"
	"github.com/arview/product-crawler/internal/validate"
)

// Orchestrator owns one crawl pipeline. All stage dependencies are
// injected; the orchestrator itself holds no mutable state beyond what
// the cache and breakers already guard.
type Orchestrator struct {
	normalizer  *urlnorm.Normalizer
	cache       *cache.Cache
	fetcher     product.Fetcher
	detector    product.Detector
	renderer    product.Renderer
	extractor   product.Extractor
	categorizer *categorize.Categorizer
	validator   *validate.Validator
	sink        product.Sink
	clock       product.Clock
	logger      *zap.Logger
	ttl         time.Duration
}

// Options bundles the orchestrator's dependencies. Renderer and Sink
// are optional; everything else is required.
type Options struct {
	Normalizer  *urlnorm.Normalizer
	Cache       *cache.Cache
	Fetcher     product.Fetcher
	Detector    product.Detector
	Renderer    product.Renderer
	Extractor   product.Extractor
	Categorizer *categorize.Categorizer
	Validator   *validate.Validator
	Sink        product.Sink
	Clock       product.Clock
	Logger      *zap.Logger
	TTL         time.Duration
}

// New builds an Orchestrator from opts.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Normalizer == nil:
		return nil, fmt.Errorf("pipeline: normalizer is required")
	case opts.Cache == nil:
		return nil, fmt.Errorf("pipeline: cache is required")
	case opts.Fetcher == nil:
		return nil, fmt.Errorf("pipeline: fetcher is required")
	case opts.Extractor == nil:
		return nil, fmt.Errorf("pipeline: extractor is required")
	case opts.Categorizer == nil:
		return nil, fmt.Errorf("pipeline: categorizer is required")
	case opts.Validator == nil:
		return nil, fmt.Errorf("pipeline: validator is required")
	case opts.Clock == nil:
		return nil, fmt.Errorf("pipeline: clock is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = opts.Cache.DefaultTTL()
	}
	return &Orchestrator{
		normalizer:  opts.Normalizer,
		cache:       opts.Cache,
		fetcher:     opts.Fetcher,
		detector:    opts.Detector,
		renderer:    opts.Renderer,
		extractor:   opts.Extractor,
		categorizer: opts.Categorizer,
		validator:   opts.Validator,
		sink:        opts.Sink,
		clock:       opts.Clock,
		logger:      logger,
		ttl:         ttl,
	}, nil
}

// Crawl runs the full pipeline for one URL. Repeated calls within the
// cache TTL return the cached record without touching the network.
func (o *Orchestrator) Crawl(ctx context.Context, rawURL string) (*product.Record, error) {
	norm, err := o.normalizer.Normalize(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	v, err := o.cache.GetOrCompute(ctx, norm.CacheKey(), o.ttl, func(ctx context.Context) (any, error) {
		return o.process(ctx, norm)
	})
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*product.Record)
	if !ok {
		return nil, fmt.Errorf("pipeline: unexpected cache entry type %T for %q", v, norm.CacheKey())
	}
	return rec, nil
}

// Refresh drops any cached record for the URL and crawls it again.
func (o *Orchestrator) Refresh(ctx context.Context, rawURL string) (*product.Record, error) {
	norm, err := o.normalizer.Normalize(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	o.cache.Invalidate(norm.CacheKey())
	return o.Crawl(ctx, rawURL)
}

func (o *Orchestrator) process(ctx context.Context, norm product.NormalizedURL) (*product.Record, error) {
	page, err := o.fetcher.Fetch(ctx, norm.Canonical)
	if err != nil {
		return nil, err
	}
	page = o.maybeRender(ctx, norm, page)

	content, err := extract.ParsePage(page.Body, norm.Platform, norm.Canonical)
	if err != nil {
		return nil, product.NewError(product.KindValidationFailed, "page could not be parsed", err)
	}

	rec := &product.Record{
		Title:        content.Title,
		Brand:        content.Brand,
		Category:     content.Category,
		Price:        content.Price,
		Description:  content.Description,
		Materials:    content.Materials,
		Colors:       content.Colors,
		Images:       content.Images,
		Platform:     norm.Platform,
		SourceURL:    norm.Canonical,
		FetchedAt:    o.clock.Now(),
		UsedHeadless: page.UsedHeadless,
	}

	dims, err := o.extractor.Extract(ctx, content)
	switch {
	case err == nil:
		rec.Dimensions = dims
	case product.KindOf(err) == product.KindExtractionNotFound:
		// Missing dimensions are a data gap, not a crawl failure. The
		// validator downgrades the record instead.
		o.logger.Debug("no dimensions found", zap.String("url", norm.Canonical))
	default:
		return nil, err
	}

	o.categorizer.Apply(rec)

	if err := o.validator.Validate(rec); err != nil {
		o.logger.Debug("strict validation failed, trying partial",
			zap.String("url", norm.Canonical),
			zap.Error(err),
		)
		rec.Status = ""
		if perr := o.validator.ValidatePartial(rec); perr != nil {
			return nil, perr
		}
	}

	o.store(ctx, rec)

	o.logger.Info("product crawled",
		zap.String("url", norm.Canonical),
		zap.String("platform", string(norm.Platform)),
		zap.String("status", string(rec.Status)),
		zap.Bool("ar_ready", rec.ARReady),
		zap.Float64("size_relevance", rec.SizeRelevance),
	)
	return rec, nil
}

// maybeRender promotes a thin or script-walled page to a headless
// render. Render failures keep the static page.
func (o *Orchestrator) maybeRender(ctx context.Context, norm product.NormalizedURL, page product.Page) product.Page {
	if o.renderer == nil || o.detector == nil || !o.detector.NeedsJS(page) {
		return page
	}
	rendered, err := o.renderer.Render(ctx, norm.Canonical)
	if err != nil {
		if !errors.Is(err, headless.ErrDisabled) {
			o.logger.Warn("headless render failed, keeping static page",
				zap.String("url", norm.Canonical),
				zap.Error(err),
			)
		}
		return page
	}
	metrics.HeadlessPromotionsTotal.Inc()
	o.logger.Debug("page promoted to headless render", zap.String("url", norm.Canonical))
	return rendered
}

func (o *Orchestrator) store(ctx context.Context, rec *product.Record) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Store(ctx, rec); err != nil {
		// Persistence is best-effort from the pipeline's side.
		o.logger.Warn("record sink failed",
			zap.String("url", rec.SourceURL),
			zap.Error(err),
		)
	}
}
