// Package jsontree decodes JSON into an ordered tree so that traversals over
// gateway payloads see fields in document order on every run.
package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Node.
type Kind int

const (
	Null Kind = iota
	String
	Number
	Bool
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	}
	return "unknown"
}

// Field is one key/value pair of a Mapping, kept in document order.
type Field struct {
	Key   string
	Value *Node
}

// Node is a JSON value. Scalars keep their literal text; containers keep
// their children in the order they appeared.
type Node struct {
	Kind   Kind
	Items  []*Node
	Fields []Field
	text   string
}

// Parse decodes a single JSON document.
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("jsontree: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("jsontree: trailing data after document")
	}
	return n, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &Node{Kind: Mapping}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				n.Fields = append(n.Fields, Field{Key: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &Node{Kind: Sequence}
			for dec.More() {
				v, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				n.Items = append(n.Items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return &Node{Kind: String, text: t}, nil
	case json.Number:
		return &Node{Kind: Number, text: t.String()}, nil
	case bool:
		return &Node{Kind: Bool, text: strconv.FormatBool(t)}, nil
	case nil:
		return &Node{Kind: Null}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// IsScalar reports whether n is a non-null string, number or bool.
func (n *Node) IsScalar() bool {
	return n != nil && (n.Kind == String || n.Kind == Number || n.Kind == Bool)
}

// IsContainer reports whether n is a Sequence or Mapping.
func (n *Node) IsContainer() bool {
	return n != nil && (n.Kind == Sequence || n.Kind == Mapping)
}

// Text returns the literal text of a scalar, or "" for anything else.
func (n *Node) Text() string {
	if !n.IsScalar() {
		return ""
	}
	return n.text
}

// Float parses a numeric scalar. Numeric strings such as "45.5" are accepted.
func (n *Node) Float() (float64, bool) {
	if n == nil || (n.Kind != Number && n.Kind != String) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(n.text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int parses an integral numeric scalar.
func (n *Node) Int() (int64, bool) {
	if n == nil || (n.Kind != Number && n.Kind != String) {
		return 0, false
	}
	s := strings.TrimSpace(n.text)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, ok := n.Float()
	if !ok || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Truthy follows JSON-ish truthiness: true, non-zero numbers and non-empty
// strings are true; null, containers and everything else are false.
func (n *Node) Truthy() bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case Bool:
		return n.text == "true"
	case Number:
		f, ok := n.Float()
		return ok && f != 0
	case String:
		return n.text != ""
	}
	return false
}

// Get returns the value stored under key in a Mapping, or nil.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != Mapping {
		return nil
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Len returns the number of children of a container.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case Sequence:
		return len(n.Items)
	case Mapping:
		return len(n.Fields)
	}
	return 0
}

// ToValue converts the tree into plain Go values (map[string]any, []any,
// string, json.Number, bool, nil) for re-encoding.
func (n *Node) ToValue() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case String:
		return n.text
	case Number:
		return json.Number(n.text)
	case Bool:
		return n.text == "true"
	case Sequence:
		out := make([]any, 0, len(n.Items))
		for _, it := range n.Items {
			out = append(out, it.ToValue())
		}
		return out
	case Mapping:
		out := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			out[f.Key] = f.Value.ToValue()
		}
		return out
	}
	return nil
}

// MarshalJSON re-encodes the node preserving field order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Kind {
	case Null:
		buf.WriteString("null")
	case Number, Bool:
		buf.WriteString(n.text)
	case String:
		b, err := json.Marshal(n.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Sequence:
		buf.WriteByte('[')
		for i, it := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Mapping:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
