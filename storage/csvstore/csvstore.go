package csvstore

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/toyofumi/opendata/spider"
	"github.com/toyofumi/opendata/storage"
	"go.uber.org/zap"
)

var _ storage.Store = (*CSVStore)(nil)

// CSVStore buffers records and writes them out as one CSV file. The header
// is the lexicographically sorted union of field names across every buffered
// record, so different selector branches can populate different fields and
// the output still stays deterministic; fields a record lacks are written as
// empty strings. The whole buffer is needed to compute the union, so rows
// are only written on Flush.
type CSVStore struct {
	buf []*spider.Record
	options
}

func New(opts ...Option) (*CSVStore, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.path == "" {
		return nil, errors.New("csvstore: output path is empty")
	}
	return &CSVStore{options: options}, nil
}

func (s *CSVStore) Save(recs ...*spider.Record) error {
	s.buf = append(s.buf, recs...)
	return nil
}

func (s *CSVStore) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	defer func() {
		s.buf = nil
	}()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	results := spider.NewResults()
	results.Append(s.buf...)
	fields := results.Fields()

	w := csv.NewWriter(f)
	header := fields
	if s.idColumn {
		header = append([]string{"id"}, fields...)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, rec := range s.buf {
		row := make([]string, 0, len(header))
		if s.idColumn {
			row = append(row, strconv.Itoa(i+1))
		}
		for _, k := range fields {
			row = append(row, rec.CSVCell(k))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	s.logger.Info("wrote csv",
		zap.String("path", s.path),
		zap.Int("records", len(s.buf)))
	return nil
}
