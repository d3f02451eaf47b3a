package types

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a single YAML document into a Value.
// Mapping order is preserved by walking yaml.Node rather than decoding into
// Go maps. Non-string mapping keys, NaN and infinities are rejected because
// they have no JSON equivalent.
func ParseYAML(data []byte) (Value, error) {
	if len(data) > MaxDocumentSize {
		return Value{}, ErrDocumentTooLarge
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if doc.Kind == 0 {
		// empty input
		return Null(), nil
	}
	w := yamlWalker{budget: maxYAMLNodes}
	return w.node(&doc, 0)
}

// maxYAMLNodes bounds the expanded node count. Aliases are walked again for
// every reference, so the input size alone does not bound the work.
const maxYAMLNodes = MaxDocumentSize

type yamlWalker struct {
	budget int
}

func (w *yamlWalker) node(n *yaml.Node, depth int) (Value, error) {
	if w.budget <= 0 {
		return Value{}, fmt.Errorf("%w: expands to more than %d nodes", ErrDocumentTooLarge, maxYAMLNodes)
	}
	w.budget--
	if depth >= maxNesting {
		return Value{}, fmt.Errorf("%w: nesting exceeds %d levels", ErrInvalidJSON, maxNesting)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return w.node(n.Content[0], depth)
	case yaml.AliasNode:
		return w.node(n.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := w.node(c, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case yaml.MappingNode:
		members := make([]Member, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, vn := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("%w: line %d: mapping key must be a scalar", ErrInvalidJSON, k.Line)
			}
			v, err := w.node(vn, depth+1)
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: k.Value, Value: v})
		}
		return Object(members...), nil
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	default:
		return Value{}, fmt.Errorf("%w: line %d: unsupported YAML node", ErrInvalidJSON, n.Line)
	}
}

func fromYAMLScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("%w: line %d: %v", ErrInvalidJSON, n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Value{}, fmt.Errorf("%w: line %d: %v", ErrInvalidJSON, n.Line, err)
		}
		return Number(strconv.FormatInt(i, 10)), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("%w: line %d: %v", ErrInvalidJSON, n.Line, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("%w: line %d: %s is not representable in JSON", ErrInvalidJSON, n.Line, n.Value)
		}
		return Float(f), nil
	default:
		// !!str, !!timestamp, !!binary and custom tags keep their source text
		return String(n.Value), nil
	}
}
