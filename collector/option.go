package collector

import (
	"time"

	"github.com/toyofumi/opendata/api"
	"github.com/toyofumi/opendata/spider"
	"go.uber.org/zap"
)

type Option func(opts *options)

type options struct {
	configDir string
	dataDir   string
	fetcher   spider.Fetcher
	apiClient *api.Client
	logger    *zap.Logger
	maxDepth  int
	now       func() time.Time
}

var defaultOptions = options{
	configDir: "topics",
	dataDir:   "data",
	logger:    zap.NewNop(),
	maxDepth:  5,
	now:       time.Now,
}

func WithConfigDir(dir string) Option {
	return func(opts *options) {
		opts.configDir = dir
	}
}

func WithDataDir(dir string) Option {
	return func(opts *options) {
		opts.dataDir = dir
	}
}

func WithFetcher(fetcher spider.Fetcher) Option {
	return func(opts *options) {
		opts.fetcher = fetcher
	}
}

func WithAPIClient(client *api.Client) Option {
	return func(opts *options) {
		opts.apiClient = client
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithMaxDepth(maxDepth int) Option {
	return func(opts *options) {
		opts.maxDepth = maxDepth
	}
}
