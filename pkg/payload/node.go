// Package payload holds decoded, schema-less JSON as an ordered tree.
//
// Objects keep their keys in document order so every traversal over a given
// payload is deterministic, and nodes are addressed by pointer so callers can
// deduplicate by identity without comparing subtrees.
package payload

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// ErrInvalid is returned by Parse for text that is not a single JSON value.
var ErrInvalid = errors.New("payload: invalid JSON")

// Node is one value in a decoded payload.
type Node struct {
	Kind Kind
	// Offset is the byte position of the value in the parsed text.
	Offset int

	keys   []string
	fields map[string]*Node
	items  []*Node
	str    string
	num    float64
	raw    string
	truth  bool
}

// Parse validates text as JSON and builds its tree.
func Parse(text string) (*Node, error) {
	if !gjson.Valid(text) {
		return nil, ErrInvalid
	}
	return build(gjson.Parse(text)), nil
}

func build(r gjson.Result) *Node {
	n := &Node{Offset: r.Index, raw: r.Raw}
	switch {
	case r.IsObject():
		n.Kind = Object
		n.fields = make(map[string]*Node)
		r.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if _, dup := n.fields[k]; !dup {
				n.keys = append(n.keys, k)
			}
			// last duplicate wins, as with encoding/json
			n.fields[k] = build(value)
			return true
		})
	case r.IsArray():
		n.Kind = Array
		r.ForEach(func(_, value gjson.Result) bool {
			n.items = append(n.items, build(value))
			return true
		})
	case r.Type == gjson.String:
		n.Kind = String
		n.str = r.Str
	case r.Type == gjson.Number:
		n.Kind = Number
		n.num = r.Num
	case r.Type == gjson.True, r.Type == gjson.False:
		n.Kind = Bool
		n.truth = r.Type == gjson.True
	default:
		n.Kind = Null
	}
	return n
}

// IsObject reports whether n is a non-nil object node.
func (n *Node) IsObject() bool { return n != nil && n.Kind == Object }

// IsArray reports whether n is a non-nil array node.
func (n *Node) IsArray() bool { return n != nil && n.Kind == Array }

// Keys returns object keys in document order.
func (n *Node) Keys() []string {
	if !n.IsObject() {
		return nil
	}
	return n.keys
}

// Get returns the child under key, or nil.
func (n *Node) Get(key string) *Node {
	if !n.IsObject() {
		return nil
	}
	return n.fields[key]
}

// Has reports whether an object carries key.
func (n *Node) Has(key string) bool {
	return n.Get(key) != nil
}

// Path follows a dot-separated key path through nested objects.
func (n *Node) Path(path string) *Node {
	cur := n
	for _, key := range strings.Split(path, ".") {
		cur = cur.Get(key)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Items returns array elements in order.
func (n *Node) Items() []*Node {
	if !n.IsArray() {
		return nil
	}
	return n.items
}

// Children returns object values in key order, or array elements.
func (n *Node) Children() []*Node {
	switch {
	case n.IsObject():
		out := make([]*Node, 0, len(n.keys))
		for _, k := range n.keys {
			out = append(out, n.fields[k])
		}
		return out
	case n.IsArray():
		return n.items
	default:
		return nil
	}
}

// Str returns the string value and whether n is a string.
func (n *Node) Str() (string, bool) {
	if n == nil || n.Kind != String {
		return "", false
	}
	return n.str, true
}

// Truthy returns the boolean value; non-bool nodes are false.
func (n *Node) Truthy() bool {
	return n != nil && n.Kind == Bool && n.truth
}

// Float returns the numeric value and whether n is a number.
func (n *Node) Float() (float64, bool) {
	if n == nil || n.Kind != Number {
		return 0, false
	}
	return n.num, true
}

// Raw returns the source text of the node.
func (n *Node) Raw() string {
	if n == nil {
		return ""
	}
	return n.raw
}

// Len returns the number of keys or items.
func (n *Node) Len() int {
	switch {
	case n.IsObject():
		return len(n.keys)
	case n.IsArray():
		return len(n.items)
	default:
		return 0
	}
}
