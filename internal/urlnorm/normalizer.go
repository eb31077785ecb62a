// Package urlnorm canonicalizes raw product URLs: platform detection,
// tracking parameter removal and short-link resolution.
package urlnorm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/product"
)

// RedirectResolver returns the redirect target of rawURL, or "" when the
// URL does not redirect. Implementations own their timeout and circuit
// protection.
type RedirectResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Normalizer converts raw URLs to their canonical platform-tagged form.
type Normalizer struct {
	resolver     RedirectResolver
	maxRedirects int
	logger       *zap.Logger
}

// New builds a Normalizer. resolver may be nil, in which case short-link
// input is rejected instead of resolved.
func New(resolver RedirectResolver, maxRedirects int, logger *zap.Logger) *Normalizer {
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		resolver:     resolver,
		maxRedirects: maxRedirects,
		logger:       logger,
	}
}

// Normalize canonicalizes rawURL. Pure except for short-link redirect
// resolution, which is network bound.
func (n *Normalizer) Normalize(ctx context.Context, rawURL string) (product.NormalizedURL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return product.NormalizedURL{}, product.NewError(product.KindInvalidURL, "empty URL", nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return product.NormalizedURL{}, product.NewError(product.KindInvalidURL, "unparseable URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return product.NormalizedURL{}, product.NewError(
			product.KindInvalidURL,
			fmt.Sprintf("unsupported scheme %q", u.Scheme),
			nil,
		)
	}
	if u.Host == "" {
		return product.NormalizedURL{}, product.NewError(product.KindInvalidURL, "missing host", nil)
	}

	if isShortLinkHost(u.Host) {
		resolved, err := n.resolveChain(ctx, u.String())
		if err != nil {
			return product.NormalizedURL{}, err
		}
		u, err = url.Parse(resolved)
		if err != nil {
			return product.NormalizedURL{}, product.NewError(product.KindInvalidURL, "unparseable redirect target", err)
		}
	}

	canonicalizeHost(u)

	norm := product.NormalizedURL{Raw: rawURL}
	spec, matched := specForHost(u.Host)
	if matched {
		norm.Platform = spec.platform
		id, err := applyPlatformShape(u, spec)
		if err != nil {
			return product.NormalizedURL{}, err
		}
		norm.ProductID = id
	} else {
		norm.Platform = product.PlatformGeneric
		if err := applyGenericShape(u); err != nil {
			return product.NormalizedURL{}, err
		}
	}

	norm.Canonical = u.String()
	return norm, nil
}

// resolveChain follows short-link redirects up to the budget, rejecting
// cycles. A URL seen twice in the chain is an error, not a loop.
func (n *Normalizer) resolveChain(ctx context.Context, start string) (string, error) {
	if n.resolver == nil {
		return "", product.NewError(product.KindInvalidURL, "short link resolution not configured", nil)
	}

	seen := map[string]struct{}{start: {}}
	current := start
	for hop := 0; hop < n.maxRedirects; hop++ {
		location, err := n.resolver.Resolve(ctx, current)
		if err != nil {
			return "", product.NewError(
				product.KindInvalidURL,
				fmt.Sprintf("short link %s could not be resolved", start),
				err,
			)
		}
		if location == "" {
			break
		}
		next, err := absoluteLocation(current, location)
		if err != nil {
			return "", product.NewError(product.KindInvalidURL, "invalid redirect target", err)
		}
		if _, looped := seen[next]; looped {
			return "", product.NewError(
				product.KindInvalidURL,
				fmt.Sprintf("redirect cycle detected resolving %s", start),
				nil,
			)
		}
		seen[next] = struct{}{}
		current = next

		parsed, err := url.Parse(current)
		if err != nil {
			return "", product.NewError(product.KindInvalidURL, "unparseable redirect target", err)
		}
		if !isShortLinkHost(parsed.Host) {
			n.logger.Debug("short link resolved",
				zap.String("from", start),
				zap.String("to", current),
				zap.Int("hops", hop+1),
			)
			return current, nil
		}
	}

	parsed, err := url.Parse(current)
	if err == nil && !isShortLinkHost(parsed.Host) {
		return current, nil
	}
	return "", product.NewError(
		product.KindInvalidURL,
		fmt.Sprintf("redirect chain for %s did not resolve within %d hops", start, n.maxRedirects),
		nil,
	)
}

func absoluteLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func canonicalizeHost(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
}

// applyPlatformShape validates the path shape for the matched platform,
// extracts the product identifier and drops every query parameter except
// the platform's essential ones.
func applyPlatformShape(u *url.URL, spec platformSpec) (string, error) {
	path := u.Path
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, listing := range spec.listingSegments {
		for _, seg := range segments {
			if strings.EqualFold(seg, listing) {
				return "", product.NewError(
					product.KindInvalidURL,
					fmt.Sprintf("%s is a search or category page, not a product page", u.String()),
					nil,
				)
			}
		}
	}

	isProduct := false
	for _, marker := range spec.productMarkers {
		if strings.Contains(path, marker) {
			isProduct = true
			break
		}
	}
	if !isProduct {
		return "", product.NewError(
			product.KindInvalidURL,
			fmt.Sprintf("%s does not look like a %s product page", u.String(), spec.platform),
			nil,
		)
	}

	var id string
	if spec.idPattern != nil {
		if m := spec.idPattern.FindStringSubmatch(path); len(m) > 1 {
			id = m[1]
		}
	}

	kept := url.Values{}
	query := u.Query()
	for _, key := range spec.essentialQuery {
		if vs, ok := query[key]; ok {
			kept[key] = vs
		}
	}
	u.RawQuery = kept.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return id, nil
}

// applyGenericShape strips tracking parameters from an unmatched host.
// Downstream extraction is heuristic, so the path is kept as-is apart
// from obvious listing pages.
func applyGenericShape(u *url.URL) error {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 {
		if _, listing := genericListingSegments[strings.ToLower(segments[0])]; listing {
			return product.NewError(
				product.KindInvalidURL,
				fmt.Sprintf("%s is a search or category page, not a product page", u.String()),
				nil,
			)
		}
	}

	query := u.Query()
	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return nil
}
