package model

// Record is a loosely-structured row keyed by field name. Scrapers emit records
// with scalar, nested-mapping or list values; canonical records hold scalars only.
type Record map[string]any

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the field is present, even if blank
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns the field as a string, or "" if it is missing or not a string
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// AsRecord converts a nested mapping value into a Record.
// Decoders hand back map[string]any, callers may also pass Record directly.
func AsRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	default:
		return nil, false
	}
}

// Row is one (table, record) pair produced by a scraper
type Row struct {
	Table  string `json:"table" yaml:"table"`
	Record Record `json:"record" yaml:"record"`
}
