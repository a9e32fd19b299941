package sqldb

import "go.uber.org/zap"

type Option func(opts *options)

type options struct {
	logger  *zap.Logger
	connURL string
}

var defaultOptions = options{
	logger: zap.NewNop(),
}

func WithConnURL(connURL string) Option {
	return func(opts *options) {
		opts.connURL = connURL
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}
