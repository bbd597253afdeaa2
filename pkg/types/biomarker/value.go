package biomarker

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	// ValueUnset is a missing or null value.
	ValueUnset ValueKind = iota
	// ValueString holds text such as "positivo" or "< 0,5".
	ValueString
	// ValueNumber holds a numeric reading.
	ValueNumber
	// ValueInvalid is any other JSON type (bool, object, array).
	ValueInvalid
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueInvalid:
		return "invalid"
	default:
		return "unset"
	}
}

// Value is a measured value: either a string or a number.
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

// StringValue returns a string-variant Value.
func StringValue(s string) Value { return Value{kind: ValueString, str: s} }

// NumberValue returns a number-variant Value.
func NumberValue(f float64) Value { return Value{kind: ValueNumber, num: f} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string variant, or "" for other kinds.
func (v Value) Str() string { return v.str }

// Number returns the number variant, or 0 for other kinds.
func (v Value) Number() float64 { return v.num }

// Text renders the value for display.
func (v Value) Text() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON emits a JSON string, number or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON tags the decoded value.  Unsupported JSON types decode
// without error into ValueInvalid so the validator can reject the entry
// instead of failing the whole payload.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*v = Value{}
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9'):
		f, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return err
		}
		*v = NumberValue(f)
	default:
		*v = Value{kind: ValueInvalid}
	}
	return nil
}

// IsBlank reports whether the value is unset or an empty string.  Whitespace
// only strings are blank as well.
func (v Value) IsBlank() bool {
	switch v.kind {
	case ValueUnset:
		return true
	case ValueString:
		return strings.TrimSpace(v.str) == ""
	default:
		return false
	}
}
