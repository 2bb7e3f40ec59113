// Package canvas reads and writes the JSON canvas document format.
//
// Fields the reconciliation engine interprets are decoded into typed
// struct fields. Anything else on a node or on the document is kept as raw
// JSON and written back unchanged, in the key order it was read.
package canvas

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/starford/cardsync/internal/apperr"
)

// NodeType discriminates canvas nodes.
type NodeType string

const (
	TypeFile  NodeType = "file"
	TypeText  NodeType = "text"
	TypeGroup NodeType = "group"
)

// Node is one element of a canvas.
type Node struct {
	ID     string
	Type   NodeType
	X      float64
	Y      float64
	Width  float64
	Height float64
	File   string
	Text   string
	Label  string

	// Extra holds fields the engine does not interpret.
	Extra map[string]json.RawMessage

	keys []string
}

// Document is a parsed canvas file.
type Document struct {
	Nodes []*Node
	// Edges is passed through verbatim. Nil when the file had no edges key.
	Edges json.RawMessage

	extra map[string]json.RawMessage
	keys  []string
}

// ParseError reports a canvas that is not valid canvas JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "canvas: parse: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, apperr.ErrParse) hold for every ParseError.
func (e *ParseError) Is(target error) bool { return target == apperr.ErrParse }

const (
	keyID     = "id"
	keyType   = "type"
	keyX      = "x"
	keyY      = "y"
	keyWidth  = "width"
	keyHeight = "height"
	keyFile   = "file"
	keyText   = "text"
	keyLabel  = "label"

	keyNodes = "nodes"
	keyEdges = "edges"
)

// canonicalKeys is the order used for keys a node did not carry when read.
var canonicalKeys = []string{keyID, keyType, keyText, keyFile, keyLabel, keyX, keyY, keyWidth, keyHeight}

// New returns an empty document with empty node and edge lists.
func New() *Document {
	return &Document{Edges: json.RawMessage("[]")}
}

// Parse decodes canvas JSON. A missing or null nodes field yields an empty
// node list. Blank input is treated as a freshly created, empty canvas.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	keys, fields, err := decodeObject(data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	doc := &Document{extra: make(map[string]json.RawMessage), keys: keys}
	for _, k := range keys {
		raw := fields[k]
		switch k {
		case keyNodes:
			nodes, err := parseNodes(raw)
			if err != nil {
				return nil, &ParseError{Err: err}
			}
			doc.Nodes = nodes
		case keyEdges:
			doc.Edges = raw
		default:
			doc.extra[k] = raw
		}
	}
	return doc, nil
}

func parseNodes(raw json.RawMessage) ([]*Node, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	nodes := make([]*Node, 0, len(items))
	for i, item := range items {
		n, err := parseNode(item)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func parseNode(raw json.RawMessage) (*Node, error) {
	keys, fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	n := &Node{keys: keys}
	for _, k := range keys {
		v := fields[k]
		var target any
		switch k {
		case keyID:
			target = &n.ID
		case keyType:
			target = &n.Type
		case keyX:
			target = &n.X
		case keyY:
			target = &n.Y
		case keyWidth:
			target = &n.Width
		case keyHeight:
			target = &n.Height
		case keyFile:
			target = &n.File
		case keyText:
			target = &n.Text
		case keyLabel:
			target = &n.Label
		default:
			if n.Extra == nil {
				n.Extra = make(map[string]json.RawMessage)
			}
			n.Extra[k] = v
			continue
		}
		if isNull(v) {
			continue
		}
		if err := json.Unmarshal(v, target); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
	}
	return n, nil
}

// decodeObject reads a single JSON object and returns its keys in order of
// first appearance with their raw values. A repeated key keeps its last value.
func decodeObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected JSON object")
	}

	var keys []string
	fields := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, errors.New("expected object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, seen := fields[key]; !seen {
			keys = append(keys, key)
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, errors.New("trailing data after object")
	}
	return keys, fields, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// Serialize encodes the document with tab indentation. Output is
// deterministic for a given document, so unchanged documents produce
// identical bytes.
func (d *Document) Serialize() ([]byte, error) {
	var obj orderedObject
	for _, k := range d.keys {
		switch k {
		case keyNodes:
			if err := obj.addNodes(d.Nodes); err != nil {
				return nil, err
			}
		case keyEdges:
			if d.Edges != nil {
				obj.add(k, d.Edges)
			}
		default:
			if raw, ok := d.extra[k]; ok {
				obj.add(k, raw)
			}
		}
	}
	if !obj.has(keyNodes) {
		if err := obj.addNodes(d.Nodes); err != nil {
			return nil, err
		}
	}
	if d.Edges != nil && !obj.has(keyEdges) {
		obj.add(keyEdges, d.Edges)
	}

	compact, err := obj.bytes()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "\t"); err != nil {
		return nil, fmt.Errorf("canvas: serialize: %w", err)
	}
	return out.Bytes(), nil
}

// MarshalJSON encodes the node as a compact object preserving the original
// key order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var obj orderedObject
	emitted := make(map[string]struct{}, len(n.keys)+len(canonicalKeys))

	emit := func(k string) error {
		if _, done := emitted[k]; done {
			return nil
		}
		raw, ok, err := n.field(k)
		if err != nil {
			return err
		}
		if ok {
			obj.add(k, raw)
			emitted[k] = struct{}{}
		}
		return nil
	}

	for _, k := range n.keys {
		if err := emit(k); err != nil {
			return nil, err
		}
	}
	for _, k := range canonicalKeys {
		if err := emit(k); err != nil {
			return nil, err
		}
	}
	rest := make([]string, 0, len(n.Extra))
	for k := range n.Extra {
		if _, done := emitted[k]; !done {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		obj.add(k, n.Extra[k])
	}
	return obj.bytes()
}

// field returns the encoded value for key k and whether it should be written.
// Geometry, id and type are always written; file, text and label only when
// present on read or set since.
func (n *Node) field(k string) (json.RawMessage, bool, error) {
	var v any
	switch k {
	case keyID:
		v = n.ID
	case keyType:
		v = n.Type
	case keyX:
		v = n.X
	case keyY:
		v = n.Y
	case keyWidth:
		v = n.Width
	case keyHeight:
		v = n.Height
	case keyFile, keyText, keyLabel:
		s := n.stringField(k)
		if s == "" && !n.hadKey(k) {
			return nil, false, nil
		}
		v = s
	default:
		raw, ok := n.Extra[k]
		return raw, ok, nil
	}
	raw, err := encodeValue(v)
	return raw, err == nil, err
}

func (n *Node) stringField(k string) string {
	switch k {
	case keyFile:
		return n.File
	case keyText:
		return n.Text
	case keyLabel:
		return n.Label
	}
	return ""
}

func (n *Node) hadKey(k string) bool {
	for _, have := range n.keys {
		if have == k {
			return true
		}
	}
	return false
}

// orderedObject accumulates key/value pairs for a JSON object in insertion
// order.
type orderedObject struct {
	keys   []string
	values []json.RawMessage
}

func (o *orderedObject) add(k string, v json.RawMessage) {
	o.keys = append(o.keys, k)
	o.values = append(o.values, v)
}

func (o *orderedObject) has(k string) bool {
	for _, have := range o.keys {
		if have == k {
			return true
		}
	}
	return false
}

func (o *orderedObject) addNodes(nodes []*Node) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, n := range nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		raw, err := n.MarshalJSON()
		if err != nil {
			return fmt.Errorf("canvas: serialize node %q: %w", n.ID, err)
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	o.add(keyNodes, buf.Bytes())
	return nil
}

func (o *orderedObject) bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeValue(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var val bytes.Buffer
		if err := json.Compact(&val, o.values[i]); err != nil {
			return nil, fmt.Errorf("canvas: field %q: %w", k, err)
		}
		buf.Write(val.Bytes())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeValue marshals v without HTML escaping so card markdown stays
// readable in the file.
func encodeValue(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
