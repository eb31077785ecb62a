package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/product"
)

// Result is the outcome of one URL within a batch.
type Result struct {
	URL    string          `json:"url"`
	Record *product.Record `json:"record,omitempty"`
	Err    error           `json:"-"`
	Error  string          `json:"error,omitempty"`
}

// CrawlAll fans out one task per URL and waits for all of them.
// Results keep the input order. Per-URL failures land in their Result;
// the only shared state between tasks is the cache and the breakers.
func (o *Orchestrator) CrawlAll(ctx context.Context, urls []string, force bool) []Result {
	batchID := uuid.New().String()
	logger := o.logger.With(zap.String("batch_id", batchID))
	logger.Info("batch started", zap.Int("urls", len(urls)))

	results := make([]Result, len(urls))
	var wg sync.WaitGroup
	for i, rawURL := range urls {
		wg.Add(1)
		go func(i int, rawURL string) {
			defer wg.Done()
			var rec *product.Record
			var err error
			if force {
				rec, err = o.Refresh(ctx, rawURL)
			} else {
				rec, err = o.Crawl(ctx, rawURL)
			}
			results[i] = Result{URL: rawURL, Record: rec, Err: err}
			if err != nil {
				results[i].Error = err.Error()
				logger.Warn("batch url failed", zap.String("url", rawURL), zap.Error(err))
			}
		}(i, rawURL)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		}
	}
	logger.Info("batch finished",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(urls)-succeeded),
	)
	return results
}
