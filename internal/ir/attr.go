package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"

	"gopkg.in/yaml.v3"
)

// AttrValue is a sealed interface over node attribute values.
// Only AttrString, AttrInt, AttrBool, AttrList and AttrMap implement it.
// There is no float and no null: fingerprints must be byte-stable.
type AttrValue interface {
	attrValue()
	// Clone returns a deep copy.
	Clone() AttrValue
}

// AttrString is a string attribute, also used for type names ("DT_FLOAT").
type AttrString string

// AttrInt is an integer attribute.
type AttrInt int64

// AttrBool is a boolean attribute.
type AttrBool bool

// AttrList is an ordered list of attribute values.
type AttrList []AttrValue

// AttrMap maps attribute names to values. Use SortedKeys for deterministic
// iteration.
type AttrMap map[string]AttrValue

func (AttrString) attrValue() {}
func (AttrInt) attrValue()    {}
func (AttrBool) attrValue()   {}
func (AttrList) attrValue()   {}
func (AttrMap) attrValue()    {}

func (v AttrString) Clone() AttrValue { return v }
func (v AttrInt) Clone() AttrValue    { return v }
func (v AttrBool) Clone() AttrValue   { return v }

func (v AttrList) Clone() AttrValue {
	if v == nil {
		return AttrList(nil)
	}
	out := make(AttrList, len(v))
	for i, e := range v {
		out[i] = e.Clone()
	}
	return out
}

func (v AttrMap) Clone() AttrValue {
	if v == nil {
		return AttrMap(nil)
	}
	out := make(AttrMap, len(v))
	for k, e := range v {
		out[k] = e.Clone()
	}
	return out
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units). Go string
// comparison works on UTF-8 bytes and orders supplementary characters
// differently.
func (m AttrMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// MarshalJSON emits keys in sorted order.
func (m AttrMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalAttr(m[k])
		if err != nil {
			return nil, fmt.Errorf("attr %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON emits the list with each element encoded by type.
func (l AttrList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalAttr(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalAttr(v AttrValue) ([]byte, error) {
	switch val := v.(type) {
	case AttrString:
		return json.Marshal(string(val))
	case AttrInt:
		return json.Marshal(int64(val))
	case AttrBool:
		return json.Marshal(bool(val))
	case AttrList:
		return val.MarshalJSON()
	case AttrMap:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown attr value type: %T", v)
	}
}

// UnmarshalJSON decodes an attribute object, rejecting floats and nulls.
func (m *AttrMap) UnmarshalJSON(data []byte) error {
	v, err := decodeAttrJSON(data)
	if err != nil {
		return err
	}
	am, ok := v.(AttrMap)
	if !ok {
		return fmt.Errorf("attr: expected object, got %T", v)
	}
	*m = am
	return nil
}

// UnmarshalJSON decodes an attribute list, rejecting floats and nulls.
func (l *AttrList) UnmarshalJSON(data []byte) error {
	v, err := decodeAttrJSON(data)
	if err != nil {
		return err
	}
	al, ok := v.(AttrList)
	if !ok {
		return fmt.Errorf("attr: expected list, got %T", v)
	}
	*l = al
	return nil
}

func decodeAttrJSON(data []byte) (AttrValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ToAttrValue(raw)
}

// UnmarshalYAML decodes an attribute mapping from YAML.
func (m *AttrMap) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := ToAttrValue(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = v.(AttrMap)
	return nil
}

// MarshalYAML converts the map to plain Go values.
func (m AttrMap) MarshalYAML() (any, error) {
	return FromAttrValue(m), nil
}

// ToAttrValue converts decoded JSON/YAML values to an AttrValue.
// Null and non-integral numbers are rejected.
func ToAttrValue(v any) (AttrValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a valid attr value")
	case AttrValue:
		return val, nil
	case string:
		return AttrString(val), nil
	case bool:
		return AttrBool(val), nil
	case int:
		return AttrInt(val), nil
	case int64:
		return AttrInt(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return AttrInt(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not valid attr values: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer out of int64 range: %s", s)
		}
		return AttrInt(n), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not valid attr values: %v", val)
	case []any:
		out := make(AttrList, len(val))
		for i, e := range val {
			av, err := ToAttrValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = av
		}
		return out, nil
	case map[string]any:
		out := make(AttrMap, len(val))
		for k, e := range val {
			av, err := ToAttrValue(e)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = av
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported attr value type: %T", v)
	}
}

// FromAttrValue converts an AttrValue back to plain Go values.
func FromAttrValue(v AttrValue) any {
	switch val := v.(type) {
	case AttrString:
		return string(val)
	case AttrInt:
		return int64(val)
	case AttrBool:
		return bool(val)
	case AttrList:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = FromAttrValue(e)
		}
		return out
	case AttrMap:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = FromAttrValue(e)
		}
		return out
	default:
		return nil
	}
}
