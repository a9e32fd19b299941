package spider

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
)

// Record is one assembled row of captured fields. Field order is first-write
// order; a field holds a single string, or an ordered list of strings for
// multiple-cardinality selectors. Records are never mutated after being
// appended to a Results sink.
type Record struct {
	keys   []string
	fields map[string]*Field
}

type Field struct {
	Values   []string
	Multiple bool
}

func NewRecord() *Record {
	return &Record{fields: make(map[string]*Field)}
}

// Set stores a single-value field. Rewriting an existing key keeps its
// original position.
func (r *Record) Set(key, value string) {
	r.put(key, &Field{Values: []string{value}})
}

// SetAll stores a multiple-value field in document order.
func (r *Record) SetAll(key string, values []string) {
	r.put(key, &Field{Values: values, Multiple: true})
}

func (r *Record) put(key string, f *Field) {
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = f
}

func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Get returns a field's first value.
func (r *Record) Get(key string) (string, bool) {
	f, ok := r.fields[key]
	if !ok || len(f.Values) == 0 {
		return "", false
	}
	return f.Values[0], true
}

func (r *Record) GetAll(key string) []string {
	f, ok := r.fields[key]
	if !ok {
		return nil
	}
	return f.Values
}

// Keys returns the field names in first-write order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Len() int {
	return len(r.keys)
}

// Clone deep-copies the record, preserving field order. Used when a leaf page
// inherits captures from its ancestor contexts.
func (r *Record) Clone() *Record {
	c := NewRecord()
	for _, k := range r.keys {
		f := r.fields[k]
		values := make([]string, len(f.Values))
		copy(values, f.Values)
		c.put(k, &Field{Values: values, Multiple: f.Multiple})
	}
	return c
}

// CSVCell renders a field for CSV output: the value itself for single
// fields, a JSON array for multiple fields and the empty string when missing.
func (r *Record) CSVCell(key string) string {
	f, ok := r.fields[key]
	if !ok || len(f.Values) == 0 {
		return ""
	}
	if !f.Multiple {
		return f.Values[0]
	}
	j, err := json.Marshal(f.Values)
	if err != nil {
		return ""
	}
	return string(j)
}

// jsonValue returns the field as it should appear in JSON output.
func (r *Record) jsonValue(key string) interface{} {
	f := r.fields[key]
	if f.Multiple {
		return f.Values
	}
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// Results is the ordered sink of completed records. Nothing is deduplicated;
// duplicate pages produce duplicate records.
type Results struct {
	records []*Record
}

func NewResults() *Results {
	return &Results{}
}

func (rs *Results) Append(recs ...*Record) {
	rs.records = append(rs.records, recs...)
}

func (rs *Results) All() []*Record {
	return rs.records
}

func (rs *Results) Len() int {
	return len(rs.records)
}

// Fields returns the union of field names across all records, sorted so
// serialized output stays deterministic across runs.
func (rs *Results) Fields() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range rs.records {
		for _, k := range rec.keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// WriteCSV writes all records with the union of columns; fields a record
// lacks are written as empty strings.
func (rs *Results) WriteCSV(w io.Writer) error {
	fields := rs.Fields()
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return err
	}
	row := make([]string, len(fields))
	for _, rec := range rs.records {
		for i, k := range fields {
			row[i] = rec.CSVCell(k)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the records as a JSON array of flat objects.
func (rs *Results) WriteJSON(w io.Writer) error {
	out := make([]map[string]interface{}, 0, len(rs.records))
	for _, rec := range rs.records {
		m := make(map[string]interface{}, len(rec.keys))
		for _, k := range rec.keys {
			m[k] = rec.jsonValue(k)
		}
		out = append(out, m)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
