package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
	KindObject
	// KindInvalid is reported for a nil node.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a node of a referral payload tree. Exactly one of the scalar
// fields is meaningful, selected by Kind; objects own their children.
type Value struct {
	kind   Kind
	text   string
	number float64
	flag   bool
	fields map[string]*Value
}

func String(s string) *Value { return &Value{kind: KindText, text: s} }
func Float(f float64) *Value { return &Value{kind: KindNumber, number: f} }
func Boolean(b bool) *Value  { return &Value{kind: KindBool, flag: b} }
func NewObject() *Value      { return &Value{kind: KindObject, fields: map[string]*Value{}} }

func (v *Value) Kind() Kind {
	if v == nil {
		return KindInvalid
	}
	return v.kind
}

func (v *Value) IsObject() bool { return v != nil && v.kind == KindObject }

// Text returns the string payload and whether the node is text.
func (v *Value) Text() (string, bool) {
	if v == nil || v.kind != KindText {
		return "", false
	}
	return v.text, true
}

func (v *Value) Number() (float64, bool) {
	if v == nil || v.kind != KindNumber {
		return 0, false
	}
	return v.number, true
}

func (v *Value) Bool() (bool, bool) {
	if v == nil || v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

// Field returns a direct child of an object node.
func (v *Value) Field(key string) (*Value, bool) {
	if !v.IsObject() {
		return nil, false
	}
	child, ok := v.fields[key]
	return child, ok
}

// Keys returns the sorted child keys of an object node.
func (v *Value) Keys() []string {
	if !v.IsObject() {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := *v
	if v.kind == KindObject {
		out.fields = make(map[string]*Value, len(v.fields))
		for k, child := range v.fields {
			out.fields[k] = child.Clone()
		}
	}
	return &out
}

// Equal compares two trees structurally.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.number == o.number
	case KindBool:
		return v.flag == o.flag
	default:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for k, child := range v.fields {
			if !child.Equal(o.fields[k]) {
				return false
			}
		}
		return true
	}
}

// Interface converts the tree into plain Go values (map[string]interface{},
// string, float64, bool), the shape gorm's JSONMap and the schema validator expect.
func (v *Value) Interface() interface{} {
	if v == nil {
		return nil
	}
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.number
	case KindBool:
		return v.flag
	default:
		out := make(map[string]interface{}, len(v.fields))
		for k, child := range v.fields {
			out[k] = child.Interface()
		}
		return out
	}
}

// FromInterface builds a tree from decoded JSON. Arrays and nulls are rejected.
func FromInterface(in interface{}) (*Value, error) {
	switch val := in.(type) {
	case string:
		return String(val), nil
	case float64:
		return Float(val), nil
	case int:
		return Float(float64(val)), nil
	case bool:
		return Boolean(val), nil
	case map[string]interface{}:
		obj := NewObject()
		for k, nested := range val {
			child, err := FromInterface(nested)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj.fields[k] = child
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported payload value %T", in)
	}
}

func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.number)
	case KindBool:
		return json.Marshal(v.flag)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		child, err := v.fields[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(child)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("payload value cannot be null")
	}
	decoded, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = *decoded
	return nil
}
