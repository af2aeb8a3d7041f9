// Package harness turns the loosely-structured rows emitted by scrapers into
// canonical, deduplicated records, one accumulator per run.
package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/srs/internal/logging"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/norm"
	"github.com/ppiankov/srs/internal/rating"
	"github.com/sirupsen/logrus"
)

// TMSymbols are stripped off the end of brand names. U+2120 is the
// service mark.
const TMSymbols = "®℠™"

// identityFields may never be passed as the empty string
var identityFields = []string{"company", "brand", "category"}

// Expander decomposes source records into canonical records
type Expander struct {
	acc *Accumulator
	log logrus.FieldLogger
}

// NewExpander creates an expander writing into acc. log may be nil.
func NewExpander(acc *Accumulator, log logrus.FieldLogger) *Expander {
	if log == nil {
		log = logging.Discard()
	}
	return &Expander{acc: acc, log: log}
}

// AddRecord is a convenience wrapper for a one-off expansion into acc
func AddRecord(table string, rec model.Record, acc *Accumulator) error {
	return NewExpander(acc, nil).Add(table, rec)
}

// pending is a (table, record) expansion waiting on the worklist
type pending struct {
	table  string
	record model.Record
}

// write is a finalized canonical record ready for the accumulator
type write struct {
	table  string
	key    []string
	record model.Record
}

// frame is one record being expanded. Its children are expanded, in
// order, before its own write is staged.
type frame struct {
	children []pending
	next     int
	write    write
}

func (f *frame) spawn(table string, rec model.Record) {
	f.children = append(f.children, pending{table: table, record: rec})
}

// Add expands rec, destined for table, into the accumulator. Either every
// resulting canonical record is written or, on error, none is.
func (e *Expander) Add(table string, rec model.Record) error {
	root, err := e.prepare(table, rec)
	if err != nil {
		return err
	}

	var staged []write
	stack := []*frame{root}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.children) {
			child := top.children[top.next]
			top.next++

			f, err := e.prepare(child.table, child.record)
			if err != nil {
				return err
			}
			stack = append(stack, f)
			continue
		}

		staged = append(staged, top.write)
		stack = stack[:len(stack)-1]
	}

	for _, w := range staged {
		merged := e.acc.Put(w.table, w.key, w.record)
		e.log.WithFields(logrus.Fields{
			"table":  w.table,
			"key":    w.key,
			"merged": merged,
		}).Debugf("`%s` %q: %v", w.table, w.key, map[string]any(w.record))
	}
	return nil
}

// prepare applies the expansion rules to one record. It returns the child
// expansions the record implies and its finalized canonical form.
func (e *Expander) prepare(table string, in model.Record) (*frame, error) {
	schema, ok := model.LookupTable(table)
	if !ok {
		return nil, &UnsupportedTableError{Table: table}
	}

	r := in.Clone()
	f := &frame{}

	// catch empty identity fields up front
	for _, k := range identityFields {
		if s, isStr := r[k].(string); isStr && s == "" {
			return nil, invalid(table, k, "empty", nil, in)
		}
	}

	// company may be a mapping with company info
	if nested, ok := model.AsRecord(r["company"]); ok {
		name, ok := identity(nested, "company")
		if !ok {
			return nil, invalid(table, "company", "nested mapping has no", nil, in)
		}
		f.spawn(model.TableCompany, nested)
		r["company"] = name
	}

	// brand may be a mapping with brand info, possibly naming its own company
	if nested, ok := model.AsRecord(r["brand"]); ok {
		child := nested.Clone()
		if _, has := child["company"]; !has {
			if c, ok := r["company"]; ok {
				child["company"] = c
			}
		}
		name, ok := identity(child, "brand")
		if !ok {
			return nil, invalid(table, "brand", "nested mapping has no", nil, in)
		}
		f.spawn(model.TableBrand, child)
		r["brand"] = name
		if company, ok := identity(child, "company"); ok {
			r["company"] = company
		}
	}

	// list of brands, as names or mappings
	if v, ok := r["brands"]; ok {
		delete(r, "brands")
		items, ok := asList(v)
		if !ok {
			return nil, invalid(table, "brands", "unsupported value in", nil, in)
		}
		for _, item := range items {
			var child model.Record
			if nested, ok := model.AsRecord(item); ok {
				child = nested.Clone()
			} else if isScalar(item) {
				child = model.Record{"brand": item}
			} else {
				return nil, invalid(table, "brands", "unsupported element in", nil, in)
			}
			if _, has := child["company"]; !has {
				if c, ok := r["company"]; ok {
					child["company"] = c
				}
			}
			f.spawn(model.TableBrand, child)
		}
	}

	// strip TM etc. off the brand name
	if brand, ok := r["brand"].(string); ok && brand != "" {
		if idx, glyph := findTM(brand); idx >= 0 {
			r["brand"] = brand[:idx]
			r["tm"] = glyph
		}
	}

	// single category becomes a category list, except on category tables
	if v, ok := r["category"]; ok && table != model.TableCategory && !strings.HasSuffix(table, "category") {
		delete(r, "category")
		r["categories"] = []any{v}
	}

	// category list fans out into category membership rows
	if v, ok := r["categories"]; ok {
		delete(r, "categories")
		items, ok := asList(v)
		if !ok {
			return nil, invalid(table, "categories", "unsupported value in", nil, in)
		}
		brand, _ := r["brand"].(string)
		for _, c := range items {
			child := model.Record{"category": c}
			if company, ok := r["company"]; ok {
				child["company"] = company
			}
			if brand != "" {
				child["brand"] = brand
			}
			f.spawn(model.TableCategory, child)
		}
	}

	// assume min_score of 0 if not specified
	if _, ok := r["score"]; ok {
		if _, has := r["min_score"]; !has {
			r["min_score"] = rating.DefaultMinScore
		}
	}

	// automatic brand entries
	if brand, ok := r["brand"]; ok && table != model.TableBrand {
		child := model.Record{"brand": brand}
		if company, ok := r["company"]; ok {
			child["company"] = company
		}
		f.spawn(model.TableBrand, child)
	}

	// automatic category nodes
	if category, ok := r["category"]; ok && table != model.TableCategory {
		f.spawn(model.TableCategory, model.Record{"category": category})
	}
	if parent, ok := r["parent_category"]; ok && !norm.IsBlank(parent) {
		f.spawn(model.TableCategory, model.Record{"category": parent})
	}

	// automatic company entries
	if company, ok := r["company"]; ok && table != model.TableCompany {
		f.spawn(model.TableCompany, model.Record{"company": company})
	}

	w, err := e.finalize(schema, r)
	if err != nil {
		return nil, err
	}
	f.write = w
	return f, nil
}

// finalize cleans strings, checks URL fields and key fields, and computes
// the composite key
func (e *Expander) finalize(schema model.Table, r model.Record) (write, error) {
	fields := make([]string, 0, len(r))
	for k, v := range r {
		if v == nil {
			delete(r, k)
			continue
		}
		r[k] = norm.CleanValue(v)
		fields = append(fields, k)
	}
	sort.Strings(fields)

	if field, bad := norm.FindRelativeURL(r, fields); bad {
		return write{}, invalid(schema.Name, field, "no scheme in", partialKey(schema, r), r)
	}

	for _, k := range schema.KeyFields {
		if model.IsRunIDField(k) && norm.IsBlank(r[k]) && e.acc.RunID() != "" {
			r[k] = e.acc.RunID()
		}
	}

	key := make([]string, 0, len(schema.KeyFields))
	for _, k := range schema.KeyFields {
		s, ok := keyString(r[k])
		if !ok {
			return write{}, invalid(schema.Name, k, "non-text value in", partialKey(schema, r), r)
		}
		if s == "" && k != "scope" && !schema.IsOptional(k) {
			return write{}, invalid(schema.Name, k, "empty", partialKey(schema, r), r)
		}
		r[k] = s
		key = append(key, s)
	}

	return write{table: schema.Name, key: key, record: r}, nil
}

// findTM returns the byte index and glyph of the earliest trademark symbol
func findTM(s string) (int, string) {
	for i, c := range s {
		if strings.ContainsRune(TMSymbols, c) {
			return i, string(c)
		}
	}
	return -1, ""
}

// identity resolves a name that may itself be a nested mapping
func identity(r model.Record, field string) (string, bool) {
	switch v := r[field].(type) {
	case string:
		return v, v != ""
	default:
		if nested, ok := model.AsRecord(v); ok {
			return identity(nested, field)
		}
		return "", false
	}
}

// partialKey renders as much of the key as is resolvable, for error messages
func partialKey(schema model.Table, r model.Record) []string {
	key := make([]string, 0, len(schema.KeyFields))
	for _, k := range schema.KeyFields {
		s, _ := keyString(r[k])
		key = append(key, s)
	}
	return key
}

// keyString converts a key value to text. Missing values are "".
func keyString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(x), true
	default:
		return "", false
	}
}

func isScalar(v any) bool {
	_, ok := keyString(v)
	return ok && v != nil
}

// asList accepts the list shapes decoders produce; a lone scalar counts as
// a one-element list
func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, true
	case []model.Record:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, true
	case string:
		return []any{x}, true
	default:
		return nil, false
	}
}
