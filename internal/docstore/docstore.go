// Package docstore describes the per-user remote document store the sync
// engine mirrors into. Documents live at <collection>/<id> and hold a flat map
// of JSON-compatible fields.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophjournal/internal/common"
)

// Reserved document fields.
const (
	FieldDeleted   = "_deleted"
	FieldUpdatedAt = "updatedAt"
)

// Collections known to the store. Anything else is rejected.
const (
	CollectionEntries     = "entries"
	CollectionGoals       = "goals"
	CollectionCheckIns    = "checkins"
	CollectionReminders   = "reminders"
	CollectionPreferences = "preferences"
	CollectionMeta        = "meta"
)

// SyncableCollections are the families that carry tombstones, in restore order.
var SyncableCollections = []string{
	CollectionEntries,
	CollectionGoals,
	CollectionCheckIns,
	CollectionReminders,
}

var knownCollections = map[string]struct{}{
	CollectionEntries:     {},
	CollectionGoals:       {},
	CollectionCheckIns:    {},
	CollectionReminders:   {},
	CollectionPreferences: {},
	CollectionMeta:        {},
}

// Store is the remote document store as seen by one signed-in user.
type Store interface {
	// Set writes fields to ref. With merge, fields not named survive.
	Set(ctx context.Context, ref Ref, fields map[string]any, merge bool) error
	// Update merges fields into an existing document, failing with
	// common.ErrNotFound when there is none.
	Update(ctx context.Context, ref Ref, fields map[string]any) error
	Get(ctx context.Context, ref Ref) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	ListDocuments(ctx context.Context, collection string) ([]string, error)
	Count(ctx context.Context, collection string, filters []Filter) (int64, error)
}

// Ref addresses one document.
type Ref struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

// Validate checks that the collection is known and the id is a single path
// segment.
func (r Ref) Validate() error {
	if err := ValidateCollection(r.Collection); err != nil {
		return err
	}
	if r.ID == "" || strings.ContainsAny(r.ID, "/\x00") || len(r.ID) > 128 {
		return fmt.Errorf("%w: bad document id %q", common.ErrInvalidArgument, r.ID)
	}
	return nil
}

func ValidateCollection(c string) error {
	if _, ok := knownCollections[c]; !ok {
		return fmt.Errorf("%w: unknown collection %q", common.ErrInvalidArgument, c)
	}
	return nil
}

// Document is a stored document together with its id.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Deleted reports whether the document is a tombstone.
func (d Document) Deleted() bool {
	b, _ := d.Data[FieldDeleted].(bool)
	return b
}

type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// NotDeleted matches live documents.
func NotDeleted() Filter {
	return Where(FieldDeleted, OpEq, false)
}

type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	OrderBy    string   `json:"order_by,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Validate checks the collection, the filter operators and the limit.
func (q Query) Validate() error {
	if err := ValidateCollection(q.Collection); err != nil {
		return err
	}
	if err := ValidateFilters(q.Filters); err != nil {
		return err
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", common.ErrInvalidArgument)
	}
	return nil
}

func ValidateFilters(filters []Filter) error {
	for _, f := range filters {
		if f.Field == "" {
			return fmt.Errorf("%w: empty filter field", common.ErrInvalidArgument)
		}
		if !f.Op.Valid() {
			return fmt.Errorf("%w: unsupported operator %q", common.ErrInvalidArgument, f.Op)
		}
	}
	return nil
}

// Number converts the numeric shapes a field may arrive in (native ints,
// float64 from JSON/structpb, json.Number) to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Int64 is Number truncated to an integer. json.Number is parsed exactly when
// it holds an integer literal.
func Int64(v any) (int64, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	f, ok := Number(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Compare orders two field values: numbers numerically, strings lexically,
// booleans false<true. ok is false when the values are not comparable.
func Compare(a, b any) (c int, ok bool) {
	if fa, okA := Number(a); okA {
		fb, okB := Number(b)
		if !okB {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

// Matches evaluates filters against a document's fields. A missing field
// only matches != filters. A missing _deleted counts as false.
func Matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, present := data[f.Field]
		if !present && f.Field == FieldDeleted {
			v, present = false, true
		}
		if !present {
			if f.Op != OpNe {
				return false
			}
			continue
		}
		c, ok := Compare(v, f.Value)
		if !ok {
			if f.Op != OpNe {
				return false
			}
			continue
		}
		var hit bool
		switch f.Op {
		case OpEq:
			hit = c == 0
		case OpNe:
			hit = c != 0
		case OpLt:
			hit = c < 0
		case OpLte:
			hit = c <= 0
		case OpGt:
			hit = c > 0
		case OpGte:
			hit = c >= 0
		}
		if !hit {
			return false
		}
	}
	return true
}
