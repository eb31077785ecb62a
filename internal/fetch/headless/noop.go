package headless

import (
	"context"

	"github.com/arview/product-crawler/internal/product"
)

// NoopRenderer satisfies product.Renderer when headless rendering is
// disabled.
type NoopRenderer struct{}

// Render always reports that rendering is disabled.
func (NoopRenderer) Render(context.Context, string) (product.Page, error) {
	return product.Page{}, ErrDisabled
}

// Close is a no-op.
func (NoopRenderer) Close(context.Context) error {
	return nil
}
