package collector

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is one topics/<topic>/<country>/index.yaml: shared metadata stamped
// onto every record plus the list of sources to collect.
type Config struct {
	Metadata map[string]string `yaml:"metadata"`
	Sources  []Source          `yaml:"sources"`
}

type Source struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"`
	URL        string     `yaml:"url"`
	Enabled    *bool      `yaml:"enabled"` // nil means enabled
	Config     string     `yaml:"config"`  // sibling config file for scraper and api sources
	Extraction Extraction `yaml:"extraction"`
}

func (s *Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Label is the name a source is reported under.
func (s *Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	return s.URL
}

type Extraction struct {
	Selectors     []MetricSelector `yaml:"selectors"`
	TableSelector string           `yaml:"table_selector"` // XPath of the target table
	HeaderRow     int              `yaml:"header_row"`
	CSVOptions    CSVOptions       `yaml:"csv_options"`
}

type MetricSelector struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

type CSVOptions struct {
	Delimiter string `yaml:"delimiter"`
	HeaderRow *int   `yaml:"header"` // row index of the header, nil means 0
}

var ErrNoSources = errors.New("collector: no sources defined")

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Sources) == 0 {
		return nil, ErrNoSources
	}
	return &cfg, nil
}

// LoadCountries reads the country code table (code -> name) used to validate
// the --country flag.
func LoadCountries(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	countries := make(map[string]string)
	if err := yaml.Unmarshal(data, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}
