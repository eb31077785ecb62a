package product

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer fetches a page with JavaScript execution enabled.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
	Close(ctx context.Context) error
}

// Detector decides whether a static fetch should be promoted to a
// headless render.
type Detector interface {
	NeedsJS(page Page) bool
}

// Extractor attempts to pull dimensions out of parsed page content.
type Extractor interface {
	Extract(ctx context.Context, content *PageContent) (*ExtractedDimensions, error)
}

// Clock returns the current time (swappable for testing).
type Clock interface {
	Now() time.Time
}

// Sink receives finished records. Persistence lives behind this
// interface and outside the pipeline.
type Sink interface {
	Store(ctx context.Context, record *Record) error
}

// PageContent is the parsed representation of a product page handed to
// the extractor chain and the categorizer.
type PageContent struct {
	Platform    Platform
	URL         string
	Title       string
	Brand       string
	Price       string
	Description string
	Category    string
	Images      []string
	Materials   []string
	Colors      []string
	SpecRows    map[string]string
	Bullets     []string
	Text        string
}
