package ctxparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Kind is the structural type of a Node.
type Kind int

const (
	Scalar Kind = iota
	Map
	Seq
)

func (k Kind) String() string {
	switch k {
	case Map:
		return "map"
	case Seq:
		return "seq"
	}
	return "scalar"
}

// maxAliasDepth bounds alias expansion so self-referencing anchors terminate.
const maxAliasDepth = 32

// minNodeBudget is the expanded node count always allowed for a document.
// Beyond it a document may expand to at most nodeBudgetRatio times its
// written node count.
const (
	minNodeBudget   = 1 << 16
	nodeBudgetRatio = 8
)

// ErrTooManyNodes is returned when alias expansion exceeds the node budget.
var ErrTooManyNodes = errors.New("document expands to too many nodes")

// Node is one YAML value. Mapping values carry the key that led to them.
type Node struct {
	Kind      Kind
	Key       string
	KeyLine   int
	KeyColumn int
	Value     string
	Tag       string
	Line      int
	Column    int
	Children  []*Node
}

// Document holds the roots of every YAML document in a file.
type Document struct {
	Roots []*Node
}

// Parse decodes every document in b. Empty documents are dropped.
func Parse(b []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	doc := &Document{}
	for {
		var root yaml.Node
		err := dec.Decode(&root)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
			continue
		}
		c := converter{budget: max(minNodeBudget, nodeBudgetRatio*written(root.Content[0]))}
		n := c.convert(root.Content[0], 0)
		if c.budget < 0 {
			return nil, fmt.Errorf("parse yaml: line %d: %w", root.Content[0].Line, ErrTooManyNodes)
		}
		doc.Roots = append(doc.Roots, n)
	}
	return doc, nil
}

// written counts the nodes as they appear in the source, without following aliases.
func written(y *yaml.Node) int {
	n := 1
	if y.Kind == yaml.AliasNode {
		return n
	}
	for _, c := range y.Content {
		n += written(c)
	}
	return n
}

// converter builds the Node tree, expanding aliases until its budget runs out.
// A negative budget means the result is incomplete and must be discarded.
type converter struct {
	budget int
}

func (c *converter) convert(y *yaml.Node, depth int) *Node {
	c.budget--
	if c.budget < 0 {
		return &Node{Kind: Scalar, Line: y.Line, Column: y.Column}
	}
	if y.Kind == yaml.AliasNode && y.Alias != nil && depth < maxAliasDepth {
		n := c.convert(y.Alias, depth+1)
		n.Line, n.Column = y.Line, y.Column
		return n
	}
	n := &Node{Tag: y.Tag, Line: y.Line, Column: y.Column}
	switch y.Kind {
	case yaml.MappingNode:
		n.Kind = Map
		var merges []*Node
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Value == "<<" && k.Tag == "!!merge" {
				merges = append(merges, c.convert(v, depth+1))
				continue
			}
			child := c.convert(v, depth+1)
			child.Key, child.KeyLine, child.KeyColumn = k.Value, k.Line, k.Column
			n.Children = append(n.Children, child)
		}
		for _, m := range merges {
			mergeInto(n, m)
		}
	case yaml.SequenceNode:
		n.Kind = Seq
		for _, v := range y.Content {
			n.Children = append(n.Children, c.convert(v, depth+1))
		}
	default:
		n.Kind = Scalar
		n.Value = y.Value
	}
	return n
}

// mergeInto applies a << merge: keys already present in dst win.
func mergeInto(dst, src *Node) {
	var sources []*Node
	switch src.Kind {
	case Map:
		sources = []*Node{src}
	case Seq:
		sources = src.Children
	}
	for _, s := range sources {
		if s.Kind != Map {
			continue
		}
		for _, c := range s.Children {
			if dst.Get(c.Key) == nil {
				dst.Children = append(dst.Children, c)
			}
		}
	}
}

// Get returns the value under key in a mapping, or nil.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != Map {
		return nil
	}
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// Has reports whether a mapping contains key.
func (n *Node) Has(key string) bool { return n.Get(key) != nil }

// Lookup resolves a dotted path. Numeric segments index sequences.
func (n *Node) Lookup(path string) (*Node, bool) {
	cur := n
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return nil, false
		}
		switch cur.Kind {
		case Map:
			cur = cur.Get(seg)
		case Seq:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur.Children) {
				return nil, false
			}
			cur = cur.Children[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// IsNull reports whether the node is an explicit or implicit YAML null.
func (n *Node) IsNull() bool {
	return n == nil || (n.Kind == Scalar && n.Tag == "!!null")
}

// Truthy interprets a scalar as a YAML boolean. ok is false when the scalar is
// not a recognisable boolean.
func (n *Node) Truthy() (value, ok bool) {
	if n == nil || n.Kind != Scalar {
		return false, false
	}
	return ParseBool(n.Value)
}

// ParseBool accepts the YAML 1.1 boolean spellings Ansible understands.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "y":
		return true, true
	case "false", "no", "off", "n":
		return false, true
	}
	return false, false
}

// Location returns where findings about this node should point: the key when
// the node is a mapping value, otherwise the node itself.
func (n *Node) Location() (line, col int) {
	if n.KeyLine > 0 {
		return n.KeyLine, n.KeyColumn
	}
	return n.Line, n.Column
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of the current node.
func (n *Node) Walk(fn func(path []string, n *Node) bool) {
	var rec func(path []string, cur *Node)
	rec = func(path []string, cur *Node) {
		if !fn(path, cur) {
			return
		}
		for i, c := range cur.Children {
			seg := c.Key
			if cur.Kind == Seq {
				seg = strconv.Itoa(i)
			}
			rec(append(path[:len(path):len(path)], seg), c)
		}
	}
	rec(nil, n)
}

// Field is a flattened key/value pair with the key path that reaches it.
type Field struct {
	Path string
	Key  string
	Node *Node
}

// Fields flattens every scalar mapping value in the document.
func (d *Document) Fields() []Field {
	var out []Field
	for _, r := range d.Roots {
		r.Walk(func(path []string, n *Node) bool {
			if n.Kind == Scalar && n.Key != "" {
				out = append(out, Field{Path: strings.Join(path, "."), Key: n.Key, Node: n})
			}
			return true
		})
	}
	return out
}
