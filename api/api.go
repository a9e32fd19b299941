package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/toyofumi/opendata/spider"
	"go.uber.org/zap"
)

// Config describes one REST API source: endpoint, authentication and how to
// flatten the response into records.
type Config struct {
	URL        string     `yaml:"url" json:"url"`
	APIKey     string     `yaml:"api_key" json:"api_key"`
	Method     string     `yaml:"method" json:"method"`
	Extraction Extraction `yaml:"extraction" json:"extraction"`
}

type Extraction struct {
	Headers  map[string]string      `yaml:"headers" json:"headers"`
	Params   map[string]string      `yaml:"params" json:"params"`
	Payload  map[string]interface{} `yaml:"payload" json:"payload"`
	DataPath string                 `yaml:"data_path" json:"data_path"` // dotted path into the response
	Columns  []string               `yaml:"columns" json:"columns"`
	Filters  []Filter               `yaml:"filters" json:"filters"`
}

type Filter struct {
	Column   string `yaml:"column" json:"column"`
	Operator string `yaml:"operator" json:"operator"`
	Value    string `yaml:"value" json:"value"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client talks to REST API sources. Unlike the crawl engine's fetcher it
// retries: rate limits and server errors are attempted again with backoff
// before the source is given up.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func New(opts ...Option) *Client {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := resty.New().
		SetTimeout(options.timeout).
		SetRetryCount(options.retryCount).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("User-Agent", defaultUserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})

	return &Client{http: httpClient, logger: options.logger}
}

// Fetch performs the configured request and decodes the JSON response.
func (c *Client) Fetch(cfg Config) (interface{}, error) {
	req := c.http.R()
	if len(cfg.Extraction.Headers) > 0 {
		req.SetHeaders(cfg.Extraction.Headers)
	}
	if len(cfg.Extraction.Params) > 0 {
		req.SetQueryParams(cfg.Extraction.Params)
	}
	if cfg.APIKey != "" {
		if _, ok := cfg.Extraction.Headers["X-API-Key"]; !ok {
			req.SetHeader("X-API-Key", cfg.APIKey)
		}
		if _, ok := cfg.Extraction.Headers["Authorization"]; !ok {
			req.SetHeader("Authorization", "Bearer "+cfg.APIKey)
		}
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = "GET"
	}

	c.logger.Info("api request", zap.String("method", method), zap.String("url", cfg.URL))

	var resp *resty.Response
	var err error
	switch method {
	case "GET":
		resp, err = req.Get(cfg.URL)
	case "POST":
		if cfg.Extraction.Payload != nil {
			req.SetBody(cfg.Extraction.Payload)
		}
		resp, err = req.Post(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", cfg.Method)
	}
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("api request failed: status %d", resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		c.logger.Warn("empty api response", zap.String("url", cfg.URL))
		return nil, nil
	}

	var data interface{}
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("decode api response: %w", err)
	}
	return data, nil
}

// Records navigates the configured data path into the response and flattens
// it into records, applying filters and column projection. Field names are
// sorted so record layout stays deterministic.
func (c *Client) Records(data interface{}, ext Extraction) []*spider.Record {
	data = c.navigate(data, ext.DataPath)

	var out []*spider.Record
	for _, row := range rowsOf(data) {
		if !matchFilters(row, ext.Filters) {
			continue
		}
		rec := spider.NewRecord()
		if len(ext.Columns) > 0 {
			for _, k := range ext.Columns {
				if v, ok := row[k]; ok {
					rec.Set(k, stringify(v))
				}
			}
		} else {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				rec.Set(k, stringify(row[k]))
			}
		}
		if rec.Len() > 0 {
			out = append(out, rec)
		}
	}
	return out
}

// navigate follows a dotted key path. A path that does not exist falls back
// to the full response, which helps with APIs returning arrays directly.
func (c *Client) navigate(data interface{}, path string) interface{} {
	if path == "" {
		return data
	}
	cur := data
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			c.logger.Warn("data path not found, using full response", zap.String("path", path))
			return data
		}
		v, ok := m[key]
		if !ok {
			c.logger.Warn("data path not found, using full response", zap.String("path", path))
			return data
		}
		cur = v
	}
	return cur
}

func rowsOf(data interface{}) []map[string]interface{} {
	switch v := data.(type) {
	case nil:
		return nil
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				rows = append(rows, m)
			} else {
				rows = append(rows, map[string]interface{}{"value": item})
			}
		}
		return rows
	case map[string]interface{}:
		return []map[string]interface{}{v}
	default:
		return []map[string]interface{}{{"value": v}}
	}
}

func matchFilters(row map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if f.Column == "" {
			continue
		}
		v, ok := row[f.Column]
		if !ok {
			return false
		}
		s := stringify(v)
		switch f.Operator {
		case "", "==":
			if s != f.Value {
				return false
			}
		case "!=":
			if s == f.Value {
				return false
			}
		case "contains":
			if !strings.Contains(s, f.Value) {
				return false
			}
		case ">", "<":
			a, err1 := strconv.ParseFloat(s, 64)
			b, err2 := strconv.ParseFloat(f.Value, 64)
			if err1 != nil || err2 != nil {
				return false
			}
			if f.Operator == ">" && a <= b {
				return false
			}
			if f.Operator == "<" && a >= b {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		j, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(j)
	}
}
