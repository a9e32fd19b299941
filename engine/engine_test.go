package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyofumi/opendata/spider"
)

// fakeFetch serves canned pages from a map and counts requests.
type fakeFetch struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetch) Get(url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("error status code:%d", 404)
	}
	return []byte(body), nil
}

func newTestCrawler(f spider.Fetcher) *Crawler {
	return NewCrawler(WithFetcher(f))
}

func mustParse(t *testing.T, raw string) *spider.ScrapeConfig {
	t.Helper()
	cfg, err := spider.ParseScrapeConfig([]byte(raw))
	require.NoError(t, err)
	return cfg
}

func TestRunListToDetail(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com/list": `<html><body>
			<a class="item" href="/items/1">one</a>
			<a class="item" href="/items/2">two</a>
		</body></html>`,
		"https://example.com/items/1": `<html><body><h1>Widget One</h1></body></html>`,
		"https://example.com/items/2": `<html><body><h1>Widget Two</h1></body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com/list",
		"selectors": [
			{"id": "item", "type": "SelectorLink", "selector": "a.item", "multiple": true, "parentSelectors": ["_root"]},
			{"id": "name", "type": "SelectorText", "selector": "h1", "parentSelectors": ["item"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	assert.Zero(t, report.Warnings)

	recs := report.Results.All()
	require.Len(t, recs, 2)

	url, _ := recs[0].Get(spider.FieldURL)
	name, _ := recs[0].Get("name")
	assert.Equal(t, "https://example.com/items/1", url)
	assert.Equal(t, "Widget One", name)

	url, _ = recs[1].Get(spider.FieldURL)
	name, _ = recs[1].Get("name")
	assert.Equal(t, "https://example.com/items/2", url)
	assert.Equal(t, "Widget Two", name)
}

func TestRunRangeExpansion(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com/list?page=1": `<html><body><h1>Page One</h1></body></html>`,
		"https://example.com/list?page=2": `<html><body><h1>Page Two</h1></body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com/list?page=[1-2]",
		"selectors": [
			{"id": "title", "type": "SelectorText", "selector": "h1", "parentSelectors": ["_root"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	require.Equal(t, 2, report.Results.Len())

	titles := make([]string, 0, 2)
	for _, rec := range report.Results.All() {
		v, _ := rec.Get("title")
		titles = append(titles, v)
	}
	assert.Equal(t, []string{"Page One", "Page Two"}, titles)
}

func TestRunFetchFailureIsolation(t *testing.T) {
	// page 2 is missing; page 1 and 3 still produce records
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com/list?page=1": `<html><body><h1>One</h1></body></html>`,
		"https://example.com/list?page=3": `<html><body><h1>Three</h1></body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com/list?page=[1-3]",
		"selectors": [
			{"id": "title", "type": "SelectorText", "selector": "h1", "parentSelectors": ["_root"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Results.Len())
	assert.Equal(t, 1, report.Warnings)
	assert.Len(t, fetch.calls, 3)
}

func TestRunValidationAbortsBeforeFetch(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{}}
	cfg := &spider.ScrapeConfig{StartURLs: []string{"https://example.com"}}

	_, err := newTestCrawler(fetch).Run(cfg)
	require.ErrorIs(t, err, spider.ErrNoSelectors)
	assert.Empty(t, fetch.calls)
}

func TestRunSingleVersusMultiple(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com": `<html><body>
			<p class="tag">a</p><p class="tag">b</p><p class="tag">c</p>
		</body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com",
		"selectors": [
			{"id": "first", "type": "SelectorText", "selector": "p.tag", "parentSelectors": ["_root"]},
			{"id": "all", "type": "SelectorText", "selector": "p.tag", "multiple": true, "parentSelectors": ["_root"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, report.Results.Len())

	rec := report.Results.All()[0]
	v, _ := rec.Get("first")
	assert.Equal(t, "a", v)
	assert.Equal(t, []string{"a", "b", "c"}, rec.GetAll("all"))
}

func TestRunMissingMatchSkipsField(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com": `<html><body><h1>Title</h1></body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com",
		"selectors": [
			{"id": "title", "type": "SelectorText", "selector": "h1", "parentSelectors": ["_root"]},
			{"id": "subtitle", "type": "SelectorText", "selector": "h2", "parentSelectors": ["_root"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	assert.Zero(t, report.Warnings)
	require.Equal(t, 1, report.Results.Len())

	rec := report.Results.All()[0]
	assert.True(t, rec.Has("title"))
	assert.False(t, rec.Has("subtitle"))
}

func TestRunInvalidLocatorWarns(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com": `<html><body><h1>Title</h1></body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com",
		"selectors": [
			{"id": "broken", "type": "SelectorText", "selector": "div[", "parentSelectors": ["_root"]},
			{"id": "title", "type": "SelectorText", "selector": "h1", "parentSelectors": ["_root"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Warnings)
	require.Equal(t, 1, report.Results.Len())
	assert.True(t, report.Results.All()[0].Has("title"))
}

func TestRunLinkLoopGuard(t *testing.T) {
	// the detail page links back to the list
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com/list": `<html><body>
			<a class="item" href="/items/1">one</a>
		</body></html>`,
		"https://example.com/items/1": `<html><body>
			<h1>One</h1>
			<a class="item" href="/list">back</a>
		</body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com/list",
		"selectors": [
			{"id": "item", "type": "SelectorLink", "selector": "a.item", "multiple": true, "parentSelectors": ["_root", "item"]},
			{"id": "name", "type": "SelectorText", "selector": "h1", "parentSelectors": ["item"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Warnings)
	// each page fetched exactly once
	assert.Len(t, fetch.calls, 2)
}

func TestRunMaxDepthGuard(t *testing.T) {
	// an infinite chain of pages, each linking one level deeper
	pages := map[string]string{"https://example.com/p/0": ""}
	for i := 0; i < 20; i++ {
		pages[fmt.Sprintf("https://example.com/p/%d", i)] = fmt.Sprintf(
			`<html><body><h1>Page %d</h1><a class="next" href="/p/%d">next</a></body></html>`, i, i+1)
	}
	fetch := &fakeFetch{pages: pages}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com/p/0",
		"selectors": [
			{"id": "next", "type": "SelectorLink", "selector": "a.next", "parentSelectors": ["_root", "next"]},
			{"id": "title", "type": "SelectorText", "selector": "h1", "parentSelectors": ["next"]}
		]
	}`)

	crawler := NewCrawler(WithFetcher(fetch), WithMaxDepth(3))
	report, err := crawler.Run(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Warnings)
	// start page plus three levels
	assert.Len(t, fetch.calls, 4)
}

func TestRunLeafInheritsAncestorCaptures(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com/list": `<html><body>
			<p class="category">Tools</p>
			<a class="item" href="/items/1">one</a>
		</body></html>`,
		"https://example.com/items/1": `<html><body><h1>Widget One</h1></body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com/list",
		"selectors": [
			{"id": "category", "type": "SelectorText", "selector": "p.category", "parentSelectors": ["_root"]},
			{"id": "item", "type": "SelectorLink", "selector": "a.item", "multiple": true, "parentSelectors": ["_root"]},
			{"id": "name", "type": "SelectorText", "selector": "h1", "parentSelectors": ["item"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	// the detail record plus the start page record carrying its own capture
	require.Equal(t, 2, report.Results.Len())

	rec := report.Results.All()[0]
	cat, _ := rec.Get("category")
	name, _ := rec.Get("name")
	url, _ := rec.Get(spider.FieldURL)
	assert.Equal(t, "Tools", cat)
	assert.Equal(t, "Widget One", name)
	assert.Equal(t, "https://example.com/items/1", url)

	root := report.Results.All()[1]
	url, _ = root.Get(spider.FieldURL)
	assert.Equal(t, "https://example.com/list", url)
	assert.False(t, root.Has("name"))
}

func TestRunTransformApplied(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com": `<html><body><span class="price">12.50 EUR</span></body></html>`,
	}}

	cfg := mustParse(t, `{
		"startUrl": "https://example.com",
		"selectors": [
			{"id": "price", "type": "SelectorText", "selector": "span.price",
			 "transform": "value.replace(\" EUR\", \"\")", "parentSelectors": ["_root"]}
		]
	}`)

	report, err := newTestCrawler(fetch).Run(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, report.Results.Len())

	v, _ := report.Results.All()[0].Get("price")
	assert.Equal(t, "12.50", v)
}
