package sqlstore

import (
	"github.com/toyofumi/opendata/spider"
	"github.com/toyofumi/opendata/sqldb"
	"github.com/toyofumi/opendata/storage"
	"go.uber.org/zap"
)

var _ storage.Store = (*SQLStore)(nil)

// SQLStore persists crawl records into a MySQL table, batching inserts. The
// table is created on first flush from the sorted union of field names, one
// MEDIUMTEXT column per field plus an auto-increment id; multi-value fields
// are stored JSON-encoded, exactly like the CSV output.
type SQLStore struct {
	buf     []*spider.Record
	db      sqldb.DBer
	created bool
	columns []sqldb.Field
	options
}

func New(opts ...Option) (*SQLStore, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	s := &SQLStore{}
	s.options = options
	var err error
	s.db, err = sqldb.New(
		sqldb.WithConnURL(s.sqlURL),
		sqldb.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Save(recs ...*spider.Record) error {
	for _, rec := range recs {
		if len(s.buf) >= s.BatchCount {
			if err := s.Flush(); err != nil {
				s.logger.Error("insert data failed", zap.Error(err))
			}
		}
		s.buf = append(s.buf, rec)
	}
	return nil
}

func (s *SQLStore) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	defer func() {
		s.buf = nil
	}()

	if !s.created {
		s.columns = s.fields()
		if err := s.db.CreateTable(sqldb.TableData{
			TableName:   s.table,
			ColumnNames: s.columns,
			AutoKey:     true,
		}); err != nil {
			return err
		}
		s.created = true
	}

	args := make([]interface{}, 0, len(s.buf)*len(s.columns))
	for _, rec := range s.buf {
		for _, col := range s.columns {
			args = append(args, rec.CSVCell(col.Title))
		}
	}
	return s.db.Insert(sqldb.TableData{
		TableName:   s.table,
		ColumnNames: s.columns,
		Args:        args,
		DataCount:   len(s.buf),
	})
}

// fields maps the buffered records' field union onto table columns. Columns
// are fixed after the first flush; later records with new fields only fill
// the known columns.
func (s *SQLStore) fields() []sqldb.Field {
	results := spider.NewResults()
	results.Append(s.buf...)

	var columns []sqldb.Field
	for _, name := range results.Fields() {
		columns = append(columns, sqldb.Field{
			Title: name,
			Type:  "MEDIUMTEXT",
		})
	}
	return columns
}
