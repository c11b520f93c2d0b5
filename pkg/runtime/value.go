// Package runtime implements the stack-based bytecode virtual machine (C1):
// opcode interpreter, hybrid interpreter/JIT execution, the FFI bridge, and
// the suspension semantics used by asynchronous agent/LLM flow blocks.
package runtime

import "fmt"

// Kind tags the variant held by a Value.
type Kind int

const (
	KindInteger Kind = iota
	KindBoolean
	KindString
	KindNull
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindBoolean:
		return "Boolean"
	case KindString:
		return "String"
	case KindNull:
		return "Null"
	case KindJSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

// Value is the tagged-union runtime value that flows through the operand
// stack and the variable map. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Int  int64
	Bool bool
	Str  string
	JSON any
}

// Null is the canonical Null value.
var Null = Value{Kind: KindNull}

// Integer constructs an Integer value.
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// Boolean constructs a Boolean value.
func Boolean(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// String constructs a String value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// JSONHandle wraps an arbitrary decoded JSON value (map[string]any, []any,
// float64, string, bool, nil) as an opaque runtime handle.
func JSONHandle(v any) Value { return Value{Kind: KindJSON, JSON: v} }

// IsTruthy reports whether the value counts as true for JumpIfTrue/
// JumpIfFalse. Only Boolean values are valid operands for those opcodes;
// callers that need a truthiness coercion for other kinds must do it
// explicitly — the VM does not guess.
func (v Value) IsTruthy() (bool, bool) {
	if v.Kind != KindBoolean {
		return false, false
	}
	return v.Bool, true
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", v.Int)
	case KindBoolean:
		return fmt.Sprintf("Boolean(%t)", v.Bool)
	case KindString:
		return fmt.Sprintf("String(%q)", v.Str)
	case KindNull:
		return "Null"
	case KindJSON:
		return fmt.Sprintf("JSON(%v)", v.JSON)
	default:
		return "Invalid"
	}
}

// Equal reports deep equality between two values of the same kind.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindInteger:
		return v.Int == other.Int
	case KindBoolean:
		return v.Bool == other.Bool
	case KindString:
		return v.Str == other.Str
	case KindNull:
		return true
	case KindJSON:
		return fmt.Sprint(v.JSON) == fmt.Sprint(other.JSON)
	default:
		return false
	}
}

// AsInt64 extracts the Integer payload, coercing Boolean to 0/1 and every
// other kind to 0; vm.go's executeComputationalSegment uses it to marshal
// the interpreter stack into a JIT-compiled segment.
func (v Value) AsInt64() int64 {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindBoolean:
		if v.Bool {
			return 1
		}
		return 0
	default:
		return 0
	}
}
