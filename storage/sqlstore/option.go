package sqlstore

import "go.uber.org/zap"

type Option func(opts *options)

type options struct {
	logger     *zap.Logger
	sqlURL     string
	table      string
	BatchCount int
}

var defaultOptions = options{
	logger:     zap.NewNop(),
	table:      "crawl_records",
	BatchCount: 64,
}

func WithSQLURL(sqlURL string) Option {
	return func(opts *options) {
		opts.sqlURL = sqlURL
	}
}

func WithTable(table string) Option {
	return func(opts *options) {
		opts.table = table
	}
}

func WithBatchCount(batchCount int) Option {
	return func(opts *options) {
		opts.BatchCount = batchCount
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}
