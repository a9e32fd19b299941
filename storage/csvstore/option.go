package csvstore

import "go.uber.org/zap"

type Option func(opts *options)

type options struct {
	path     string
	idColumn bool
	logger   *zap.Logger
}

var defaultOptions = options{
	logger: zap.NewNop(),
}

func WithPath(path string) Option {
	return func(opts *options) {
		opts.path = path
	}
}

// WithIDColumn prefixes every row with a sequential id column.
func WithIDColumn(on bool) Option {
	return func(opts *options) {
		opts.idColumn = on
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}
