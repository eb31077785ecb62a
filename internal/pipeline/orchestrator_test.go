package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/cache"
	"github.com/arview/product-crawler/internal/categorize"
	"github.com/arview/product-crawler/internal/extract"
	"github.com/arview/product-crawler/internal/fetch/headless"
	"github.com/arview/product-crawler/internal/product"
	"github.com/arview/product-crawler/internal/urlnorm"
	"github.com/arview/product-crawler/internal/validate"
)

const productPageHTML = `<html><head>
<title>Arview Oak Desk</title>
<meta name="description" content="Solid oak standing desk with steel frame.">
<meta property="og:image" content="https://images.example.com/desk-1.jpg">
<meta property="og:image" content="https://images.example.com/desk-2-hires.jpg">
<meta property="og:image" content="https://images.example.com/desk-3.jpg">
</head><body>
<h1>Arview Oak Standing Desk</h1>
<div id="wayfinding-breadcrumbs_feature_div"><ul><li><a href="/f">Furniture</a></li><li><a href="/d">Desks</a></li></ul></div>
<table><tr><th>Product Dimensions</th><td>120 x 60 x 75 cm</td></tr></table>
</body></html>`

const bareTitleHTML = `<html><head><title>Mystery Widget</title></head><body><h1>Mystery Widget</h1></body></html>`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (product.Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(product.Page), args.Error(1)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, rawURL string) (product.Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(product.Page), args.Error(1)
}

func (m *mockRenderer) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Store(ctx context.Context, rec *product.Record) error {
	return m.Called(ctx, rec).Error(0)
}

type staticDetector struct{ needs bool }

func (d staticDetector) NeedsJS(product.Page) bool { return d.needs }

type fakeResolver struct{}

func (fakeResolver) Resolve(context.Context, string) (string, error) { return "", nil }

type testEnv struct {
	orch    *Orchestrator
	fetcher *mockFetcher
	cache   *cache.Cache
	clock   *fakeClock
}

func newTestEnv(t *testing.T, opts func(*Options)) *testEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.New(cache.Config{DefaultTTL: time.Hour, SweepInterval: time.Hour}, clock, zap.NewNop())
	t.Cleanup(store.Close)

	fetcher := new(mockFetcher)
	o := Options{
		Normalizer:  urlnorm.New(fakeResolver{}, 5, zap.NewNop()),
		Cache:       store,
		Fetcher:     fetcher,
		Detector:    staticDetector{},
		Extractor:   extract.DefaultChain(nil, zap.NewNop()),
		Categorizer: categorize.New(zap.NewNop()),
		Validator:   validate.New(zap.NewNop()),
		Clock:       clock,
		Logger:      zap.NewNop(),
	}
	if opts != nil {
		opts(&o)
	}
	orch, err := New(o)
	require.NoError(t, err)
	return &testEnv{orch: orch, fetcher: fetcher, cache: store, clock: clock}
}

func page(body string) product.Page {
	return product.Page{StatusCode: 200, Body: []byte(body)}
}

func TestCrawl_FullPipeline(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.On("Fetch", mock.Anything, "https://www.amazon.com/dp/B0ABCDEFGH").
		Return(page(productPageHTML), nil).Once()

	rec, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH?utm_source=mail")
	require.NoError(t, err)

	assert.Equal(t, "Arview Oak Standing Desk", rec.Title)
	assert.Equal(t, product.PlatformAmazon, rec.Platform)
	assert.Equal(t, "https://www.amazon.com/dp/B0ABCDEFGH", rec.SourceURL)
	require.NotNil(t, rec.Dimensions)
	assert.Equal(t, 1200.0, rec.Dimensions.LengthMM)
	assert.Equal(t, "furniture", rec.ProductType)
	assert.True(t, rec.ARSuitable)
	assert.Equal(t, product.ValidationPassed, rec.Status)
	assert.True(t, rec.ARReady)
	assert.Equal(t, env.clock.Now(), rec.FetchedAt)
	env.fetcher.AssertExpectations(t)
}

func TestCrawl_SecondCallHitsCache(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(productPageHTML), nil).Once()

	first, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)
	// Equivalent raw URLs normalize to the same cache key.
	second, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH?ref=sr_1_1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	env.fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestCrawl_FetchFailureIsNotCached(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(product.Page{}, product.NewError(product.KindNetwork, "connection refused", nil)).Once()
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(productPageHTML), nil).Once()

	_, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.Error(t, err)
	assert.Equal(t, product.KindNetwork, product.KindOf(err))

	rec, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	env.fetcher.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestCrawl_InvalidURLNeverFetches(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.orch.Crawl(context.Background(), "not a url")
	require.Error(t, err)
	assert.Equal(t, product.KindInvalidURL, product.KindOf(err))
	env.fetcher.AssertNumberOfCalls(t, "Fetch", 0)
}

func TestCrawl_MissingDimensionsFallsBackToPartial(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(bareTitleHTML), nil).Once()

	rec, err := env.orch.Crawl(context.Background(), "https://shop.example.com/widget/42")
	require.NoError(t, err)

	assert.Equal(t, product.ValidationPartial, rec.Status)
	assert.Nil(t, rec.Dimensions)
	assert.NotEmpty(t, rec.Warnings)
	assert.False(t, rec.ARReady, "bare title page carries three warning classes")
}

func TestCrawl_HeadlessPromotion(t *testing.T) {
	renderer := new(mockRenderer)
	env := newTestEnv(t, func(o *Options) {
		o.Detector = staticDetector{needs: true}
		o.Renderer = renderer
	})
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page("<html><body></body></html>"), nil).Once()
	rendered := page(productPageHTML)
	rendered.UsedHeadless = true
	renderer.On("Render", mock.Anything, "https://www.amazon.com/dp/B0ABCDEFGH").
		Return(rendered, nil).Once()

	rec, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)
	assert.True(t, rec.UsedHeadless)
	assert.Equal(t, "Arview Oak Standing Desk", rec.Title)
	renderer.AssertExpectations(t)
}

func TestCrawl_RenderFailureKeepsStaticPage(t *testing.T) {
	renderer := new(mockRenderer)
	env := newTestEnv(t, func(o *Options) {
		o.Detector = staticDetector{needs: true}
		o.Renderer = renderer
	})
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(bareTitleHTML), nil).Once()
	renderer.On("Render", mock.Anything, mock.Anything).
		Return(product.Page{}, errors.New("browser crashed")).Once()

	rec, err := env.orch.Crawl(context.Background(), "https://shop.example.com/widget/42")
	require.NoError(t, err)
	assert.False(t, rec.UsedHeadless)
	assert.Equal(t, "Mystery Widget", rec.Title)
}

func TestCrawl_DisabledRendererIsQuietlySkipped(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Detector = staticDetector{needs: true}
		o.Renderer = headless.NoopRenderer{}
	})
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(bareTitleHTML), nil).Once()

	rec, err := env.orch.Crawl(context.Background(), "https://shop.example.com/widget/42")
	require.NoError(t, err)
	assert.False(t, rec.UsedHeadless)
}

func TestRefresh_BypassesCache(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(productPageHTML), nil).Twice()

	_, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)
	_, err = env.orch.Refresh(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)

	env.fetcher.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestCrawl_SinkReceivesRecord(t *testing.T) {
	sink := new(mockSink)
	env := newTestEnv(t, func(o *Options) { o.Sink = sink })
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(productPageHTML), nil).Once()
	sink.On("Store", mock.Anything, mock.AnythingOfType("*product.Record")).Return(nil).Once()

	_, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestCrawl_SinkFailureDoesNotFailCrawl(t *testing.T) {
	sink := new(mockSink)
	env := newTestEnv(t, func(o *Options) { o.Sink = sink })
	env.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(page(productPageHTML), nil).Once()
	sink.On("Store", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	rec, err := env.orch.Crawl(context.Background(), "https://www.amazon.com/dp/B0ABCDEFGH")
	require.NoError(t, err)
	assert.Equal(t, product.ValidationPassed, rec.Status)
}

func TestCrawlAll_PreservesOrderAndIsolatesFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.On("Fetch", mock.Anything, "https://www.amazon.com/dp/B0ABCDEFGH").
		Return(page(productPageHTML), nil).Once()
	env.fetcher.On("Fetch", mock.Anything, "https://shop.example.com/widget/42").
		Return(product.Page{}, product.NewError(product.KindTimeout, "deadline exceeded", nil)).Once()

	results := env.orch.CrawlAll(context.Background(), []string{
		"https://www.amazon.com/dp/B0ABCDEFGH",
		"not a url",
		"https://shop.example.com/widget/42",
	}, false)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Record)
	assert.Equal(t, product.KindInvalidURL, product.KindOf(results[1].Err))
	assert.Equal(t, product.KindTimeout, product.KindOf(results[2].Err))
	assert.NotEmpty(t, results[2].Error)
}

func TestNew_RequiresCoreDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
