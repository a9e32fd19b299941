package engine

import (
	"github.com/toyofumi/opendata/spider"
	"go.uber.org/zap"
)

type Option func(opts *options)

type options struct {
	Fetcher  spider.Fetcher
	Logger   *zap.Logger
	MaxDepth int // recursion bound per branch, part of the cycle guard
}

var defaultOptions = options{
	Logger:   zap.NewNop(),
	MaxDepth: 5,
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.Logger = logger
	}
}

func WithFetcher(fetcher spider.Fetcher) Option {
	return func(opts *options) {
		opts.Fetcher = fetcher
	}
}

func WithMaxDepth(maxDepth int) Option {
	return func(opts *options) {
		opts.MaxDepth = maxDepth
	}
}
