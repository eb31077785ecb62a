package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/arview/product-crawler/internal/product"
)

// pageSelectors holds the per-platform CSS selectors consulted before
// the generic fallbacks. Validated at startup by virtue of being a
// closed table keyed on the platform enum.
type pageSelectors struct {
	title      []string
	bullets    []string
	specTables []string
}

var selectorsByPlatform = map[product.Platform]pageSelectors{
	product.PlatformAmazon: {
		title:      []string{"#productTitle", "#title"},
		bullets:    []string{"#feature-bullets li", "#productFactsDesktopExpander li"},
		specTables: []string{"#productDetails_techSpec_section_1 tr", "#productDetails_detailBullets_sections1 tr", ".prodDetTable tr"},
	},
	product.PlatformIkea: {
		title:      []string{".pip-header-section h1", "h1"},
		bullets:    []string{".pip-product-details li"},
		specTables: []string{".pip-product-dimensions__measurement-wrapper"},
	},
	product.PlatformWalmart: {
		title:      []string{"h1[itemprop=name]", "h1"},
		specTables: []string{".product-specification-table tr"},
	},
	product.PlatformTarget: {
		title: []string{"h1[data-test=product-title]", "h1"},
	},
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

var knownMaterials = []string{
	"wood", "oak", "pine", "walnut", "bamboo", "rattan",
	"metal", "steel", "aluminum", "iron", "brass",
	"plastic", "glass", "fabric", "leather", "velvet",
	"marble", "ceramic", "concrete", "wicker",
}

var knownColors = []string{
	"black", "white", "gray", "grey", "brown", "beige",
	"red", "blue", "green", "yellow", "orange", "pink",
	"purple", "gold", "silver", "natural", "walnut", "oak",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// maxBodyText bounds the free-text blob handed to the pattern scanner.
const maxBodyText = 20000

// ParsePage turns raw HTML into the structured content consumed by the
// extractor chain and the categorizer.
func ParsePage(body []byte, platform product.Platform, pageURL string) (*product.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	sel := selectorsByPlatform[platform]
	content := &product.PageContent{
		Platform: platform,
		URL:      pageURL,
		SpecRows: map[string]string{},
	}

	content.Title = firstText(doc, append(sel.title, "h1")...)
	if content.Title == "" {
		content.Title = metaContent(doc, `meta[property="og:title"]`)
	}
	if content.Title == "" {
		content.Title = squeeze(doc.Find("title").First().Text())
	}

	content.Brand = firstText(doc, "#bylineInfo", `[itemprop="brand"]`)
	if content.Brand == "" {
		content.Brand = metaContent(doc, `meta[property="product:brand"]`, `meta[property="og:brand"]`)
	}
	content.Brand = stripBrandPrefix(content.Brand)

	content.Price = metaContent(doc, `meta[property="product:price:amount"]`, `meta[itemprop="price"]`)
	if content.Price == "" {
		content.Price = firstText(doc, ".a-price .a-offscreen", `[itemprop="price"]`, ".price")
	}

	content.Description = metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`)
	if longDesc := firstText(doc, "#productDescription", ".product-description", `[itemprop="description"]`); longDesc != "" {
		if content.Description == "" {
			content.Description = longDesc
		} else {
			content.Description += " " + longDesc
		}
	}

	content.Category = collectBreadcrumbs(doc)
	content.Images = collectImages(doc, pageURL)
	collectSpecRows(doc, sel, content)
	collectBullets(doc, sel, content)

	content.Materials = harvestKeywords(content, knownMaterials, "material")
	content.Colors = harvestKeywords(content, knownColors, "color", "colour", "farbe")

	text := squeeze(doc.Find("body").Text())
	if len(text) > maxBodyText {
		text = text[:maxBodyText]
	}
	content.Text = text

	return content, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if s == "" {
			continue
		}
		if text := squeeze(doc.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if v, ok := doc.Find(s).First().Attr("content"); ok {
			if trimmed := squeeze(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func collectBreadcrumbs(doc *goquery.Document) string {
	for _, s := range []string{
		"#wayfinding-breadcrumbs_feature_div li a",
		`[itemtype$="BreadcrumbList"] a`,
		"nav.breadcrumb a",
		".breadcrumbs a",
		".breadcrumb a",
	} {
		var parts []string
		doc.Find(s).Each(func(_ int, node *goquery.Selection) {
			if t := squeeze(node.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, " > ")
		}
	}
	return ""
}

func collectImages(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := map[string]struct{}{}
	var images []string

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if base != nil {
			if ref, err := url.Parse(raw); err == nil {
				raw = base.ResolveReference(ref).String()
			}
		}
		if !isImageURL(raw) {
			return
		}
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		images = append(images, raw)
	}

	doc.Find(`meta[property="og:image"]`).Each(func(_ int, node *goquery.Selection) {
		if v, ok := node.Attr("content"); ok {
			add(v)
		}
	})
	doc.Find("img").Each(func(_ int, node *goquery.Selection) {
		if v, ok := node.Attr("src"); ok {
			add(v)
		}
		if v, ok := node.Attr("data-old-hires"); ok {
			add(v)
		}
	})

	return images
}

func isImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func collectSpecRows(doc *goquery.Document, sel pageSelectors, content *product.PageContent) {
	rowSelectors := append([]string{}, sel.specTables...)
	rowSelectors = append(rowSelectors, "table tr")
	for _, s := range rowSelectors {
		doc.Find(s).Each(func(_ int, row *goquery.Selection) {
			label := squeeze(row.Find("th").First().Text())
			value := squeeze(row.Find("td").First().Text())
			if label == "" {
				cells := row.Find("td")
				if cells.Length() >= 2 {
					label = squeeze(cells.Eq(0).Text())
					value = squeeze(cells.Eq(1).Text())
				}
			}
			if label != "" && value != "" {
				if _, exists := content.SpecRows[label]; !exists {
					content.SpecRows[label] = value
				}
			}
		})
	}

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		terms := dl.Find("dt")
		values := dl.Find("dd")
		terms.Each(func(i int, term *goquery.Selection) {
			if i >= values.Length() {
				return
			}
			label := squeeze(term.Text())
			value := squeeze(values.Eq(i).Text())
			if label != "" && value != "" {
				if _, exists := content.SpecRows[label]; !exists {
					content.SpecRows[label] = value
				}
			}
		})
	})
}

// maxBullets caps bullet harvesting on pages with giant nav lists.
const maxBullets = 80

func collectBullets(doc *goquery.Document, sel pageSelectors, content *product.PageContent) {
	selectors := append([]string{}, sel.bullets...)
	selectors = append(selectors, "ul li")
	for _, s := range selectors {
		doc.Find(s).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			if text := squeeze(node.Text()); text != "" {
				content.Bullets = append(content.Bullets, text)
			}
			return len(content.Bullets) < maxBullets
		})
		if len(content.Bullets) >= maxBullets {
			break
		}
	}
}

func harvestKeywords(content *product.PageContent, known []string, rowLabels ...string) []string {
	found := map[string]struct{}{}

	for label, value := range content.SpecRows {
		lowerLabel := strings.ToLower(label)
		for _, want := range rowLabels {
			if strings.Contains(lowerLabel, want) {
				for _, kw := range known {
					if strings.Contains(strings.ToLower(value), kw) {
						found[kw] = struct{}{}
					}
				}
			}
		}
	}

	haystack := strings.ToLower(content.Title + " " + content.Description)
	for _, kw := range known {
		if strings.Contains(haystack, kw) {
			found[kw] = struct{}{}
		}
	}

	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for kw := range found {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

func stripBrandPrefix(brand string) string {
	brand = strings.TrimSpace(brand)
	for _, prefix := range []string{"Brand:", "Visit the", "by "} {
		brand = strings.TrimSpace(strings.TrimPrefix(brand, prefix))
	}
	brand = strings.TrimSuffix(brand, " Store")
	return brand
}

func squeeze(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
