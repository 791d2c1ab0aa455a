package puffing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is a runtime value. The dynamic type is one of:
// nil, bool, float64, string, *List, *Function, *Builtin.
type Value = any

// List is a mutable, ordered collection.
type List struct {
	Elems []Value
}

// Function is a user-defined function closed over its defining environment.
type Function struct {
	Name    string
	Params  []string
	Body    *BlockStmt
	Closure *Env
}

// Builtin is a function implemented in Go.
type Builtin struct {
	Name  string
	Arity int // -1 for variadic
	Fn    func(in *Interpreter, pos Position, args []Value) (Value, error)
}

// typeName returns the Puffing name of v's type.
func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case *List:
		return "list"
	case *Function, *Builtin:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Elems) > 0
	default:
		return true
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// errStringTooLong stops a formatter once its output would pass its limit.
var errStringTooLong = errors.New("string too long")

// formatter renders values into a capped buffer. Lists already on the
// current path render as [...], so a list that contains itself terminates.
type formatter struct {
	b     strings.Builder
	limit int // <= 0 means unlimited
	path  map[*List]bool
}

func newFormatter(limit int) *formatter {
	return &formatter{limit: limit, path: make(map[*List]bool)}
}

func (f *formatter) write(s string) error {
	if f.limit > 0 && f.b.Len()+len(s) > f.limit {
		return errStringTooLong
	}
	f.b.WriteString(s)
	return nil
}

func (f *formatter) value(v Value, nested bool) error {
	switch x := v.(type) {
	case string:
		if nested {
			return f.write(strconv.Quote(x))
		}
		return f.write(x)
	case *List:
		if f.path[x] {
			return f.write("[...]")
		}
		f.path[x] = true
		defer delete(f.path, x)

		if err := f.write("["); err != nil {
			return err
		}
		for i, e := range x.Elems {
			if i > 0 {
				if err := f.write(", "); err != nil {
					return err
				}
			}
			if err := f.value(e, true); err != nil {
				return err
			}
		}
		return f.write("]")
	default:
		return f.write(formatScalar(v))
	}
}

func (f *formatter) String() string { return f.b.String() }

// Format renders v the way print does: strings are written raw at the top
// level and quoted inside lists. Output past MaxStringLength is cut off and
// ends in "...".
func Format(v Value) string {
	f := newFormatter(MaxStringLength)
	if err := f.value(v, false); err != nil {
		return f.String() + "..."
	}
	return f.String()
}

func formatScalar(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case *Function:
		if x.Name == "" {
			return "<fn>"
		}
		return "<fn " + x.Name + ">"
	case *Builtin:
		return "<builtin " + x.Name + ">"
	default:
		return fmt.Sprint(x)
	}
}

type listPair struct{ a, b *List }

// equal compares structurally. Each pair of lists is compared at most once:
// a pair met again is either still in progress (a cycle) or already known
// equal, since any mismatch ends the whole comparison.
func equal(a, b Value) bool {
	return equalSeen(a, b, make(map[listPair]bool))
}

func equalSeen(a, b Value, seen map[listPair]bool) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		if x == y {
			return true
		}
		pair := listPair{x, y}
		if seen[pair] {
			return true
		}
		seen[pair] = true
		for i := range x.Elems {
			if !equalSeen(x.Elems[i], y.Elems[i], seen) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// FromHost converts a decoded JSON value (or plain Go value) into a Puffing
// value. Objects become lists of [key, value] pairs sorted by key.
func FromHost(v any) Value {
	switch x := v.(type) {
	case nil, bool, float64, string:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			elems[i] = FromHost(e)
		}
		return &List{Elems: elems}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]Value, len(keys))
		for i, k := range keys {
			pairs[i] = &List{Elems: []Value{k, FromHost(x[k])}}
		}
		return &List{Elems: pairs}
	default:
		return fmt.Sprint(x)
	}
}
