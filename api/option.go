package api

import (
	"time"

	"go.uber.org/zap"
)

type Option func(opts *options)

type options struct {
	timeout    time.Duration
	retryCount int
	logger     *zap.Logger
}

var defaultOptions = options{
	timeout:    30 * time.Second,
	retryCount: 3,
	logger:     zap.NewNop(),
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

func WithRetryCount(retryCount int) Option {
	return func(opts *options) {
		opts.retryCount = retryCount
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}
