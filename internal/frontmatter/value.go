package frontmatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindBool
	KindNumber
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field is one entry of a nested string-to-string mapping.
type Field struct {
	Key   string
	Value string
}

// Value is a frontmatter value: String | Bool | Number | Null | List<String> |
// FlatMap<String,String>. The zero Value is Null.
type Value struct {
	kind   Kind
	str    string
	b      bool
	num    float64
	list   []string
	fields []Field
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value. NaN and the infinities have no frontmatter
// spelling and become null.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, num: f}
}

func List(items ...string) Value { return Value{kind: KindList, list: slices.Clone(items)} }
func Map(fields ...Field) Value { return Value{kind: KindMap, fields: slices.Clone(fields)} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// BoolValue returns the boolean and whether v is a boolean.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// Num returns the number and whether v is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Items returns a copy of the list items, or nil when v is not a list.
func (v Value) Items() []string {
	if v.kind != KindList {
		return nil
	}
	return slices.Clone(v.list)
}

// Fields returns a copy of the nested mapping, or nil when v is not a map.
func (v Value) Fields() []Field {
	if v.kind != KindMap {
		return nil
	}
	return slices.Clone(v.fields)
}

// Text renders scalars the way they appear unquoted in a document. Lists and
// maps render as their JSON form.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.num)
	}
	data, _ := json.Marshal(v)
	return string(data)
}

// Equal reports whether v and o hold the same variant and content. Nested map
// fields compare in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindList:
		return slices.Equal(v.list, o.list)
	case KindMap:
		return slices.Equal(v.fields, o.fields)
	}
	return false
}

// MarshalJSON encodes the value as its natural JSON form; maps keep field order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.num)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(f.Key)
			val, _ := json.Marshal(f.Value)
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("frontmatter: unknown kind %v", v.kind)
}

// UnmarshalJSON decodes a JSON value into the closest variant. Array elements
// and object values that are not strings are stringified.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := decodeJSONValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("frontmatter: number %s: %w", t, err)
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '[':
			items := []string{}
			for dec.More() {
				s, err := decodeJSONScalarText(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, s)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindList, list: items}, nil
		case '{':
			fields := []Field{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := kt.(string)
				s, err := decodeJSONScalarText(dec)
				if err != nil {
					return Value{}, err
				}
				fields = append(fields, Field{Key: key, Value: s})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindMap, fields: fields}, nil
		}
	}
	return Value{}, fmt.Errorf("frontmatter: unexpected JSON token %v", tok)
}

// decodeJSONScalarText reads one element inside a list or map and returns its
// text. Nested containers are kept as compact JSON.
func decodeJSONScalarText(dec *json.Decoder) (string, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Metadata is an insertion-ordered mapping of frontmatter keys to values.
// The zero value is an empty mapping ready to use.
type Metadata struct {
	keys   []string
	values map[string]Value
}

// NewMetadata builds a mapping from key/value pairs in order.
func NewMetadata(pairs ...Pair) Metadata {
	var m Metadata
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// Pair is a key with its value, used to build Metadata literals.
type Pair struct {
	Key   string
	Value Value
}

func (m *Metadata) Len() int { return len(m.keys) }

// Keys returns the keys in order.
func (m *Metadata) Keys() []string { return slices.Clone(m.keys) }

func (m *Metadata) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set replaces the value of an existing key in place or appends a new key.
func (m *Metadata) Set(key string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *Metadata) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// All iterates the mapping in key order.
func (m *Metadata) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (m *Metadata) Clone() Metadata {
	var out Metadata
	for k, v := range m.All() {
		out.Set(k, v)
	}
	return out
}

// Equal compares key sets and values; key order is ignored.
func (m *Metadata) Equal(o Metadata) bool {
	if m.Len() != o.Len() {
		return false
	}
	for k, v := range m.All() {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Text returns the value of key when it holds a string, else "".
func (m *Metadata) Text(key string) string {
	v, ok := m.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.Str()
	return s
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := m.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = Metadata{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("frontmatter: metadata must be a JSON object")
	}
	var out Metadata
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		v, err := decodeJSONValue(dec)
		if err != nil {
			return fmt.Errorf("frontmatter: key %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// FromInput interprets text typed into a field editor: a [..] or {..}
// literal is read as JSON, several lines become a list of the non-blank
// lines, anything else is a string. Invalid JSON falls back to the string.
func FromInput(text string) Value {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v Value
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
		return String(s)
	}
	if strings.Contains(s, "\n") {
		var items []string
		for _, line := range strings.Split(s, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				items = append(items, line)
			}
		}
		return List(items...)
	}
	return String(s)
}
