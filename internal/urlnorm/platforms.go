package urlnorm

import (
	"regexp"
	"strings"

	"github.com/arview/product-crawler/internal/product"
)

// platformSpec describes how one platform's URLs are shaped: which path
// segments mark a product page, which mark search/category listings, how
// the product identifier is found, and which query keys survive
// canonicalization.
type platformSpec struct {
	platform        product.Platform
	hostLabel       string
	productMarkers  []string
	listingSegments []string
	idPattern       *regexp.Regexp
	essentialQuery  []string
}

// Checked in priority order; first hostname match wins.
var platformSpecs = []platformSpec{
	{
		platform:        product.PlatformAmazon,
		hostLabel:       "amazon",
		productMarkers:  []string{"/dp/", "/gp/product/"},
		listingSegments: []string{"s", "b", "bestsellers"},
		idPattern:       regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})(?:[/?]|$)`),
	},
	{
		platform:        product.PlatformIkea,
		hostLabel:       "ikea",
		productMarkers:  []string{"/p/"},
		listingSegments: []string{"search", "cat", "rooms"},
		idPattern:       regexp.MustCompile(`-(s?\d{8})/?$`),
	},
	{
		platform:        product.PlatformWalmart,
		hostLabel:       "walmart",
		productMarkers:  []string{"/ip/"},
		listingSegments: []string{"search", "browse", "cp"},
		idPattern:       regexp.MustCompile(`/ip/(?:[^/]+/)?(\d+)(?:[/?]|$)`),
		essentialQuery:  []string{"selected"},
	},
	{
		platform:        product.PlatformTarget,
		hostLabel:       "target",
		productMarkers:  []string{"/p/"},
		listingSegments: []string{"s", "c", "b"},
		idPattern:       regexp.MustCompile(`/[aA]-(\d+)(?:[/?]|$)`),
		essentialQuery:  []string{"preselect"},
	},
}

// trackingParams are stripped from generic URLs. Platform URLs keep only
// their essential query keys, so the list applies to generic hosts.
var trackingParams = map[string]struct{}{
	"ref":      {},
	"ref_":     {},
	"tag":      {},
	"fbclid":   {},
	"gclid":    {},
	"msclkid":  {},
	"mc_cid":   {},
	"mc_eid":   {},
	"cmpid":    {},
	"affid":    {},
	"icid":     {},
	"spm":      {},
	"_ga":      {},
	"linkcode": {},
	"linkid":   {},
	"psc":      {},
}

// shortLinkHosts are known URL shorteners whose redirect chains are
// resolved before platform detection.
var shortLinkHosts = map[string]struct{}{
	"bit.ly":      {},
	"tinyurl.com": {},
	"t.co":        {},
	"goo.gl":      {},
	"ow.ly":       {},
	"buff.ly":     {},
	"is.gd":       {},
	"rb.gy":       {},
	"amzn.to":     {},
	"amzn.eu":     {},
	"a.co":        {},
}

// genericListingSegments disqualify generic URLs that are plainly
// search or category pages.
var genericListingSegments = map[string]struct{}{
	"search":   {},
	"browse":   {},
	"category": {},
	"cat":      {},
}

func isShortLinkHost(host string) bool {
	_, ok := shortLinkHosts[strings.ToLower(stripPort(host))]
	return ok
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// specForHost matches the hostname against platform patterns in priority
// order. Matching is by whole host label so "supertarget.example" does
// not match target.
func specForHost(host string) (platformSpec, bool) {
	labels := strings.Split(strings.ToLower(stripPort(host)), ".")
	for _, spec := range platformSpecs {
		for _, label := range labels {
			if label == spec.hostLabel {
				return spec, true
			}
		}
	}
	return platformSpec{}, false
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
