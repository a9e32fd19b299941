package collector

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toyofumi/opendata/api"
	"github.com/toyofumi/opendata/engine"
	"github.com/toyofumi/opendata/htmltable"
	"github.com/toyofumi/opendata/spider"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func (c *Collector) processSource(src Source, configPath string) ([]*spider.Record, error) {
	switch strings.ToLower(src.Type) {
	case "scraper":
		return c.processScraper(src, configPath)
	case "html":
		return c.processHTML(src)
	case "csv":
		return c.processCSV(src)
	case "api":
		return c.processAPI(src, configPath)
	case "pdf", "excel":
		// handled by external readers, not wired into this binary
		return nil, fmt.Errorf("source type %q requires an external reader", src.Type)
	default:
		return nil, fmt.Errorf("unsupported source type: %q", src.Type)
	}
}

// processScraper runs a full selector-tree crawl from the referenced scrape
// configuration. Each source gets its own engine and sink.
func (c *Collector) processScraper(src Source, configPath string) ([]*spider.Record, error) {
	if src.Config == "" {
		return nil, errors.New("scraper source missing config field")
	}
	scfg, err := spider.LoadScrapeConfig(filepath.Join(filepath.Dir(configPath), src.Config))
	if err != nil {
		return nil, err
	}

	crawler := engine.NewCrawler(
		engine.WithFetcher(c.fetcher),
		engine.WithLogger(c.logger.Named("engine")),
		engine.WithMaxDepth(c.maxDepth),
	)
	report, err := crawler.Run(scfg)
	if err != nil {
		return nil, err
	}
	if report.Warnings > 0 {
		c.logger.Warn("crawl finished with warnings",
			zap.String("source", src.Label()),
			zap.Int("warnings", report.Warnings))
	}
	return report.Results.All(), nil
}

func (c *Collector) processHTML(src Source) ([]*spider.Record, error) {
	opts := htmltable.Options{
		TableXPath: src.Extraction.TableSelector,
		HeaderRow:  src.Extraction.HeaderRow,
	}
	for _, s := range src.Extraction.Selectors {
		opts.Metrics = append(opts.Metrics, htmltable.Metric{Name: s.Name, Selector: s.Selector})
	}
	return htmltable.Extract(c.fetcher, src.URL, opts)
}

func (c *Collector) processCSV(src Source) ([]*spider.Record, error) {
	body, err := c.fetcher.Get(src.URL)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1 // tolerate ragged rows
	if d := src.Extraction.CSVOptions.Delimiter; d != "" {
		r.Comma = rune(d[0])
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headerRow := 0
	if src.Extraction.CSVOptions.HeaderRow != nil {
		headerRow = *src.Extraction.CSVOptions.HeaderRow
	}
	if headerRow >= len(rows) {
		return nil, fmt.Errorf("csv header row %d out of range", headerRow)
	}
	headers := rows[headerRow]

	var out []*spider.Record
	for _, row := range rows[headerRow+1:] {
		rec := spider.NewRecord()
		for i, value := range row {
			name := fmt.Sprintf("Column%d", i)
			if i < len(headers) && headers[i] != "" {
				name = headers[i]
			}
			rec.Set(name, value)
		}
		rec.Set("URL", src.URL)
		out = append(out, rec)
	}
	return out, nil
}

func (c *Collector) processAPI(src Source, configPath string) ([]*spider.Record, error) {
	cfg := api.Config{URL: src.URL}
	if src.Config != "" {
		data, err := os.ReadFile(filepath.Join(filepath.Dir(configPath), src.Config))
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	if cfg.URL == "" {
		return nil, errors.New("api source missing url")
	}

	data, err := c.apiClient.Fetch(cfg)
	if err != nil {
		return nil, err
	}
	recs := c.apiClient.Records(data, cfg.Extraction)
	for _, rec := range recs {
		if !rec.Has("URL") {
			rec.Set("URL", cfg.URL)
		}
	}
	return recs, nil
}
