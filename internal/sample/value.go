// Package sample holds the per-cycle value representation and the ordered
// buffer that accumulates one sample per tag.
package sample

import (
	"fmt"
	"strconv"
)

// Kind identifies which field of Value is populated. Value is a tagged
// variant rather than interface{} so a null reading is representable
// without reflection at every sink.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindFloat64
	KindString
)

// Value is a decoded tag reading for one cycle. Exactly one of the typed
// fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	U    uint64
	F    float64
	S    string
}

// Null is the explicit representation of a missing read.
var Null = Value{Kind: KindNull}

func Bool(b bool) Value       { return Value{Kind: KindBool, B: b} }
func Int64(i int64) Value     { return Value{Kind: KindInt64, I: i} }
func Uint64(u uint64) Value   { return Value{Kind: KindUint64, U: u} }
func Float64(f float64) Value { return Value{Kind: KindFloat64, F: f} }
func String(s string) Value   { return Value{Kind: KindString, S: s} }

// IsNull reports whether the value represents a missing read.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// CSVField renders the value the way the CSV sink wants it: empty for null,
// True/False (capitalized) for booleans, and the underlying Go formatting
// for everything else, with floats keeping at least 6 significant digits.
func (v Value) CSVField() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.B {
			return "True"
		}
		return "False"
	case KindInt64:
		return fmt.Sprintf("%d", v.I)
	case KindUint64:
		return fmt.Sprintf("%d", v.U)
	case KindFloat64:
		return strconv.FormatFloat(v.F, 'g', 6, 64)
	case KindString:
		return v.S
	default:
		return ""
	}
}
