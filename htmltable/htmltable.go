package htmltable

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/toyofumi/opendata/spider"
)

// Metric names a single page value located by a CSS selector.
type Metric struct {
	Name     string
	Selector string
}

// Options configures extraction from one HTML page: named metrics, and
// optionally a table addressed by XPath whose rows become records.
type Options struct {
	Metrics    []Metric
	TableXPath string
	HeaderRow  int // row index holding the column names
}

// Extract fetches one HTML page and flattens the configured metrics and
// table rows into records. Metrics yield one {Metric, Value, URL} record
// each; table rows yield one record per row keyed by the header row's cells.
func Extract(fetcher spider.Fetcher, pageURL string, opts Options) ([]*spider.Record, error) {
	body, err := fetcher.Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	var records []*spider.Record

	if len(opts.Metrics) > 0 {
		doc, err := spider.ParseDocument(body, pageURL)
		if err != nil {
			return nil, err
		}
		for _, m := range opts.Metrics {
			matches, err := doc.Select(m.Selector)
			if err != nil {
				return records, fmt.Errorf("metric %q: %w", m.Name, err)
			}
			value := ""
			if len(matches) > 0 {
				value = matches[0].Text()
			}
			rec := spider.NewRecord()
			rec.Set("Metric", m.Name)
			rec.Set("Value", value)
			rec.Set("URL", pageURL)
			records = append(records, rec)
		}
	}

	if opts.TableXPath != "" {
		rows, err := extractTable(body, opts.TableXPath)
		if err != nil {
			return records, err
		}
		records = append(records, tableRecords(rows, opts.HeaderRow, pageURL)...)
	}

	return records, nil
}

func extractTable(body []byte, xpath string) ([][]string, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	table, err := htmlquery.Query(doc, xpath)
	if err != nil {
		return nil, fmt.Errorf("table xpath: %w", err)
	}
	if table == nil {
		return nil, fmt.Errorf("table not found: %s", xpath)
	}

	var rows [][]string
	for _, tr := range htmlquery.Find(table, ".//tr") {
		var row []string
		for _, cell := range htmlquery.Find(tr, "./td|./th") {
			row = append(row, strings.TrimSpace(htmlquery.InnerText(cell)))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func tableRecords(rows [][]string, headerRow int, pageURL string) []*spider.Record {
	if headerRow >= len(rows) {
		return nil
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
		rec.Set("URL", pageURL)
		out = append(out, rec)
	}
	return out
}
