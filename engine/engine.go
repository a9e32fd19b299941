package engine

import (
	"github.com/toyofumi/opendata/spider"
	"go.uber.org/zap"
)

// Crawler walks a selector tree depth-first from each start URL, following
// Navigate selectors to new pages and accumulating captured values into
// records. One crawl of one configuration is fully synchronous; run
// independent configurations on independent Crawler instances for
// parallelism.
type Crawler struct {
	options
}

func NewCrawler(opts ...Option) *Crawler {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.Fetcher == nil {
		options.Fetcher = &spider.BaseFetch{}
	}
	return &Crawler{options: options}
}

// Report is the outcome of one crawl. Warnings counts recoverable errors
// seen along the way (failed fetches, invalid locators, cycle guard trips);
// a crawl with warnings still carries its partial results.
type Report struct {
	Results  *spider.Results
	Warnings int
}

// crawl is the per-run state: one configuration, one sink, one visited set.
type crawl struct {
	*Crawler
	cfg      *spider.ScrapeConfig
	sink     *spider.Results
	visited  map[string]bool
	warnings int
}

// pageContext travels down the recursion: the parsed page, its URL, the
// selector whose children are about to be evaluated and the open record.
// It is owned exclusively by the current recursive call.
type pageContext struct {
	doc    *spider.Document
	url    string
	parent string
	depth  int
	record *spider.Record
}

// Run validates the configuration, expands templated start URLs and crawls
// each one. A validation failure aborts before any network activity; fetch
// and parse failures only abandon the affected branch.
func (c *Crawler) Run(cfg *spider.ScrapeConfig) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	run := &crawl{Crawler: c, cfg: cfg, sink: spider.NewResults()}
	for _, tmpl := range cfg.StartURLs {
		for _, u := range spider.ExpandURLRange(tmpl) {
			// The visited set guards against link loops within one
			// traversal; it resets per start URL so range-expanded
			// URLs never shadow each other.
			run.visited = map[string]bool{u: true}
			run.rootDispatch(u)
		}
	}
	return &Report{Results: run.sink, Warnings: run.warnings}, nil
}

func (r *crawl) rootDispatch(u string) {
	body, err := r.Fetcher.Get(u)
	if err != nil {
		r.warn("fetch start url failed", zap.String("url", u), zap.Error(err))
		return
	}
	doc, err := spider.ParseDocument(body, u)
	if err != nil {
		r.warn("parse start url failed", zap.String("url", u), zap.Error(err))
		return
	}

	rec := spider.NewRecord()
	rec.Set(spider.FieldURL, u)
	r.processPage(&pageContext{doc: doc, url: u, parent: spider.RootID, record: rec})
	r.close(rec)
}

// processPage evaluates, in configuration order, every selector whose
// parents include ctx.parent. Zero matches is not an error: the selector is
// skipped and its siblings still run.
func (r *crawl) processPage(ctx *pageContext) {
	for _, node := range r.cfg.Children(ctx.parent) {
		matches, err := ctx.doc.Select(node.Locator)
		if err != nil {
			r.warn("invalid locator",
				zap.String("selector", node.ID),
				zap.String("locator", node.Locator),
				zap.Error(err))
			continue
		}
		if len(matches) == 0 {
			continue
		}
		if !node.Multiple {
			matches = matches[:1]
		}

		switch node.Kind {
		case spider.KindNavigate:
			r.navigate(ctx, node, matches)
		case spider.KindCaptureText, spider.KindCaptureImage:
			r.capture(ctx, node, matches)
		}
	}
}

// navigate fetches each matched link. Descent happens only when other
// selectors declare this node as parent; a new record opens when the target
// page is a true leaf of the link tree, inheriting captures from ancestor
// contexts.
func (r *crawl) navigate(ctx *pageContext, node *spider.SelectorNode, matches []*spider.Element) {
	recurse := r.cfg.HasChildren(node.ID)
	leaf := r.cfg.IsLeaf(node.ID)

	for _, el := range matches {
		target, ok := el.Href()
		if !ok {
			continue
		}
		if ctx.depth+1 > r.MaxDepth {
			r.warn("max depth reached, abandoning branch",
				zap.String("url", target), zap.Int("depth", ctx.depth+1))
			continue
		}
		if r.visited[target] {
			r.warn("link loop detected, abandoning branch", zap.String("url", target))
			continue
		}
		r.visited[target] = true

		body, err := r.Fetcher.Get(target)
		if err != nil {
			r.warn("fetch failed", zap.String("url", target), zap.Error(err))
			continue
		}
		if !recurse {
			// Dead end: the page was fetched but no selector evaluates under it.
			continue
		}
		doc, err := spider.ParseDocument(body, target)
		if err != nil {
			r.warn("parse failed", zap.String("url", target), zap.Error(err))
			continue
		}

		child := &pageContext{doc: doc, url: target, parent: node.ID, depth: ctx.depth + 1}
		if leaf {
			rec := ctx.record.Clone()
			rec.Set(spider.FieldURL, target)
			child.record = rec
			r.processPage(child)
			r.close(rec)
		} else {
			child.record = ctx.record
			r.processPage(child)
		}
	}
}

// capture extracts the matched values, applies the optional transform and
// writes the field into the open record.
func (r *crawl) capture(ctx *pageContext, node *spider.SelectorNode, matches []*spider.Element) {
	values := make([]string, 0, len(matches))
	for _, el := range matches {
		var v string
		var ok bool
		switch node.Kind {
		case spider.KindCaptureImage:
			v, ok = el.ImageSrc()
		default:
			v, ok = el.Text(), true
		}
		if !ok {
			continue
		}
		if node.Transform != "" {
			tv, err := spider.ApplyTransform(node.Transform, v)
			if err != nil {
				r.warn("transform failed", zap.String("selector", node.ID), zap.Error(err))
			} else {
				v = tv
			}
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return
	}
	if node.Multiple {
		ctx.record.SetAll(node.ID, values)
	} else {
		ctx.record.Set(node.ID, values[0])
	}
}

// close appends a record that captured anything beyond the page URL.
func (r *crawl) close(rec *spider.Record) {
	if rec.Len() > 1 {
		r.sink.Append(rec)
	}
}

func (r *crawl) warn(msg string, fields ...zap.Field) {
	r.warnings++
	r.Logger.Warn(msg, fields...)
}
