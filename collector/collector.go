package collector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toyofumi/opendata/api"
	"github.com/toyofumi/opendata/spider"
	"github.com/toyofumi/opendata/storage/csvstore"
	"go.uber.org/zap"
)

const indexFile = "index.yaml"

// Collector discovers per-topic per-country YAML configurations, runs their
// sources and saves the combined results under the data directory.
type Collector struct {
	options
}

func New(opts ...Option) *Collector {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.fetcher == nil {
		options.fetcher = &spider.BaseFetch{}
	}
	if options.apiClient == nil {
		options.apiClient = api.New(api.WithLogger(options.logger))
	}
	return &Collector{options: options}
}

// Discover returns the index.yaml paths matching the optional topic and
// country filters, sorted for determinism.
func (c *Collector) Discover(topic, country string) ([]string, error) {
	if topic != "" && country != "" {
		p := filepath.Join(c.configDir, topic, strings.ToLower(country), indexFile)
		if _, err := os.Stat(p); err != nil {
			return nil, nil
		}
		return []string{p}, nil
	}

	var topics []string
	if topic != "" {
		topics = []string{topic}
	} else {
		entries, err := os.ReadDir(c.configDir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				topics = append(topics, e.Name())
			}
		}
	}

	var paths []string
	for _, t := range topics {
		topicDir := filepath.Join(c.configDir, t)
		entries, err := os.ReadDir(topicDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if country != "" && !strings.EqualFold(e.Name(), country) {
				continue
			}
			p := filepath.Join(topicDir, e.Name(), indexFile)
			if _, err := os.Stat(p); err == nil {
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SourceResult carries the records one source produced.
type SourceResult struct {
	Source  Source
	Records []*spider.Record
}

// Outcome is the result of processing one configuration: per-source records
// in configuration order and a per-source success map.
type Outcome struct {
	ConfigPath string
	Config     *Config
	Results    []SourceResult
	Status     map[string]bool
}

// ProcessConfig loads a configuration and runs every enabled source. A
// failing source is reported in Status and skipped; it never aborts the
// remaining sources.
func (c *Collector) ProcessConfig(path string) (*Outcome, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	out := &Outcome{ConfigPath: path, Config: cfg, Status: make(map[string]bool)}

	// metadata keys are stamped in sorted order so record layout is stable
	metaKeys := make([]string, 0, len(cfg.Metadata))
	for k := range cfg.Metadata {
		metaKeys = append(metaKeys, k)
	}
	sort.Strings(metaKeys)

	for _, src := range cfg.Sources {
		if !src.IsEnabled() {
			c.logger.Info("source disabled, skipping", zap.String("source", src.Label()))
			continue
		}

		recs, err := c.processSource(src, path)
		if err != nil {
			c.logger.Error("process source failed",
				zap.String("source", src.Label()), zap.Error(err))
			out.Status[src.Label()] = false
			continue
		}
		if len(recs) == 0 {
			c.logger.Warn("source produced no records", zap.String("source", src.Label()))
			out.Status[src.Label()] = false
			continue
		}

		for _, rec := range recs {
			for _, k := range metaKeys {
				if !rec.Has(k) {
					rec.Set(k, cfg.Metadata[k])
				}
			}
			if !rec.Has("Source") {
				rec.Set("Source", src.Label())
			}
			rec.Set("source_name", src.Label())
		}

		out.Results = append(out.Results, SourceResult{Source: src, Records: recs})
		out.Status[src.Label()] = true
	}
	return out, nil
}

// Save writes the combined CSV, and per-source files when a configuration
// has several sources, under dataDir/<topic>/<yyyy>/<mm>/<dd>/<country>.csv.
func (c *Collector) Save(out *Outcome) ([]string, error) {
	if len(out.Results) == 0 {
		return nil, errors.New("no results to save")
	}
	topic, country, err := c.identify(out.Config, out.ConfigPath)
	if err != nil {
		return nil, err
	}

	now := c.now()
	dir := filepath.Join(c.dataDir, topic,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		fmt.Sprintf("%02d", now.Day()))

	var saved []string
	write := func(path string, results []SourceResult) error {
		store, err := csvstore.New(
			csvstore.WithPath(path),
			csvstore.WithIDColumn(true),
			csvstore.WithLogger(c.logger),
		)
		if err != nil {
			return err
		}
		for _, sr := range results {
			if err := store.Save(sr.Records...); err != nil {
				return err
			}
		}
		if err := store.Flush(); err != nil {
			return err
		}
		saved = append(saved, path)
		return nil
	}

	if err := write(filepath.Join(dir, country+".csv"), out.Results); err != nil {
		return saved, err
	}

	if len(out.Results) > 1 {
		for _, sr := range out.Results {
			id := sr.Source.ID
			if id == "" {
				id = sanitize(sr.Source.Label())
			}
			path := filepath.Join(dir, country+"_"+id+".csv")
			if err := write(path, []SourceResult{sr}); err != nil {
				return saved, err
			}
		}
	}
	return saved, nil
}

// identify resolves topic and country from the config metadata, falling back
// to the topics/<topic>/<country>/index.yaml path layout.
func (c *Collector) identify(cfg *Config, configPath string) (string, string, error) {
	topic := cfg.Metadata["topic"]
	country := strings.ToLower(cfg.Metadata["country_code"])

	dir := filepath.Dir(configPath)
	if country == "" {
		country = strings.ToLower(filepath.Base(dir))
	}
	if topic == "" {
		topic = filepath.Base(filepath.Dir(dir))
	}
	if topic == "" || country == "" || topic == "." || country == "." {
		return "", "", fmt.Errorf("cannot determine topic and country for %s", configPath)
	}
	return topic, country, nil
}

func sanitize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// Collect discovers, processes and saves every configuration matching the
// filters. It returns the saved file paths per configuration.
func (c *Collector) Collect(topic, country string) (map[string][]string, error) {
	paths, err := c.Discover(topic, country)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no configuration files found for topic=%q country=%q", topic, country)
	}

	results := make(map[string][]string)
	for _, p := range paths {
		c.logger.Info("processing configuration", zap.String("config", p))
		out, err := c.ProcessConfig(p)
		if err != nil {
			c.logger.Error("process config failed", zap.String("config", p), zap.Error(err))
			continue
		}
		saved, err := c.Save(out)
		if err != nil {
			c.logger.Error("save results failed", zap.String("config", p), zap.Error(err))
			continue
		}
		results[p] = saved
	}
	return results, nil
}
