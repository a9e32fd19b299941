package storage

import "github.com/toyofumi/opendata/spider"

// Store is the persistence contract for completed crawl records. Save may
// buffer; Flush forces everything out.
type Store interface {
	Save(recs ...*spider.Record) error
	Flush() error
}
