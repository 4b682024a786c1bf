package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ebu/mcma-projects-sub000/pkg/locator"
)

// ValueKind discriminates the variants of a ParameterValue.
type ValueKind string

const (
	ValueString  ValueKind = "string"
	ValueNumber  ValueKind = "number"
	ValueBool    ValueKind = "bool"
	ValueLocator ValueKind = "locator"
)

// ErrValueKind is returned when a parameter value is read as the wrong kind.
var ErrValueKind = errors.New("parameter value kind mismatch")

// ParameterValue is a closed tagged union of the value types a job parameter
// may carry: string, number, bool, or a storage locator.
type ParameterValue struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	loc  locator.Locator
}

// String wraps a string value.
func String(s string) ParameterValue { return ParameterValue{kind: ValueString, str: s} }

// Number wraps a numeric value.
func Number(n float64) ParameterValue { return ParameterValue{kind: ValueNumber, num: n} }

// Bool wraps a boolean value.
func Bool(b bool) ParameterValue { return ParameterValue{kind: ValueBool, b: b} }

// LocatorValue wraps a storage locator.
func LocatorValue(l locator.Locator) ParameterValue {
	return ParameterValue{kind: ValueLocator, loc: l}
}

// Kind returns the variant discriminator.
func (v ParameterValue) Kind() ValueKind { return v.kind }

// AsString returns the string value.
func (v ParameterValue) AsString() (string, error) {
	if v.kind != ValueString {
		return "", fmt.Errorf("%w: want string, have %s", ErrValueKind, v.kind)
	}
	return v.str, nil
}

// AsNumber returns the numeric value.
func (v ParameterValue) AsNumber() (float64, error) {
	if v.kind != ValueNumber {
		return 0, fmt.Errorf("%w: want number, have %s", ErrValueKind, v.kind)
	}
	return v.num, nil
}

// AsBool returns the boolean value.
func (v ParameterValue) AsBool() (bool, error) {
	if v.kind != ValueBool {
		return false, fmt.Errorf("%w: want bool, have %s", ErrValueKind, v.kind)
	}
	return v.b, nil
}

// AsLocator returns the locator value.
func (v ParameterValue) AsLocator() (locator.Locator, error) {
	if v.kind != ValueLocator {
		return nil, fmt.Errorf("%w: want locator, have %s", ErrValueKind, v.kind)
	}
	return v.loc, nil
}

// MarshalJSON encodes the wrapped value in its natural JSON form. Locators
// carry an @type discriminator.
func (v ParameterValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueBool:
		return json.Marshal(v.b)
	case ValueLocator:
		return locator.Marshal(v.loc)
	default:
		return nil, fmt.Errorf("%w: unset value", ErrValueKind)
	}
}

// UnmarshalJSON decodes a value by inspecting its JSON shape: strings,
// numbers and bools map directly; objects decode as locators.
func (v *ParameterValue) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty value", ErrValueKind)
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '{':
		l, err := locator.Decode(trimmed)
		if err != nil {
			return err
		}
		*v = LocatorValue(l)
		return nil
	default:
		n, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return fmt.Errorf("%w: unsupported value %s", ErrValueKind, trimmed)
		}
		*v = Number(n)
		return nil
	}
}

// Parameter is one named entry in a parameter bag.
type Parameter struct {
	Name  string
	Value ParameterValue
}

// ParameterBag is an ordered mapping from parameter name to tagged value.
//
// Order is insertion order and is preserved through (de)serialization so
// documents round-trip byte-stable. The zero value is an empty bag.
type ParameterBag struct {
	params []Parameter
}

// NewParameterBag builds a bag from parameters in order. Duplicate names keep
// the last value.
func NewParameterBag(params ...Parameter) ParameterBag {
	var bag ParameterBag
	for _, p := range params {
		bag.Set(p.Name, p.Value)
	}
	return bag
}

// Len returns the number of parameters in the bag.
func (b ParameterBag) Len() int { return len(b.params) }

// IsEmpty reports whether the bag holds no parameters.
func (b ParameterBag) IsEmpty() bool { return len(b.params) == 0 }

// Has reports whether the bag contains the named parameter.
func (b ParameterBag) Has(name string) bool {
	_, ok := b.Get(name)
	return ok
}

// Get returns the named parameter value.
func (b ParameterBag) Get(name string) (ParameterValue, bool) {
	for _, p := range b.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return ParameterValue{}, false
}

// Set inserts or replaces the named parameter, preserving position on
// replacement.
func (b *ParameterBag) Set(name string, v ParameterValue) {
	for i, p := range b.params {
		if p.Name == name {
			b.params[i].Value = v
			return
		}
	}
	b.params = append(b.params, Parameter{Name: name, Value: v})
}

// Parameters returns the entries in order.
func (b ParameterBag) Parameters() []Parameter {
	out := make([]Parameter, len(b.params))
	copy(out, b.params)
	return out
}

// MarshalJSON encodes the bag as a JSON object in insertion order.
func (b ParameterBag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range b.params {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := p.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal parameter %s: %w", p.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (b *ParameterBag) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("parameter bag must be a JSON object")
	}

	b.params = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("parameter bag key is not a string")
		}

		var rawVal json.RawMessage
		if err := dec.Decode(&rawVal); err != nil {
			return fmt.Errorf("decode parameter %s: %w", name, err)
		}
		var val ParameterValue
		if err := val.UnmarshalJSON(rawVal); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		b.Set(name, val)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
