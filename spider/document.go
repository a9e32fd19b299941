package spider

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Document is a parsed HTML page together with the URL it was fetched from,
// which anchors relative link resolution.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// Element is one matched node of a document.
type Element struct {
	sel  *goquery.Selection
	base *url.URL
}

func ParseDocument(body []byte, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, base: base}, nil
}

func (d *Document) URL() string {
	return d.base.String()
}

// Select evaluates a CSS locator against the document. A syntactically
// invalid locator returns an error; callers treat it as zero matches.
func (d *Document) Select(locator string) ([]*Element, error) {
	matcher, err := cascadia.Compile(locator)
	if err != nil {
		return nil, err
	}
	var out []*Element
	d.doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s, base: d.base})
	})
	return out, nil
}

// Text returns the element's trimmed text content.
func (e *Element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Href returns the element's link target resolved against the page URL.
func (e *Element) Href() (string, bool) {
	return e.resolveAttr("href")
}

// ImageSrc returns the element's src attribute resolved against the page URL.
func (e *Element) ImageSrc() (string, bool) {
	return e.resolveAttr("src")
}

func (e *Element) resolveAttr(name string) (string, bool) {
	raw, ok := e.sel.Attr(name)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", false
	}
	return ResolveURL(e.base, raw), true
}

// ResolveURL resolves a possibly relative reference against base. Unparsable
// references come back unchanged.
func ResolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
