package rules

import (
	"fmt"

	"github.com/solatis/hl7keeper/internal/types"
)

// MarshalNode renders a tree in its wire shape. Empty metadata is omitted;
// parsing treats a missing $description/$comment as "" so the round trip is
// lossless.
func MarshalNode(n Node) (types.Value, error) {
	switch v := n.(type) {
	case *TypeCheck:
		return predicateValue(KeyType, v.Path, types.String(v.Expected.String()), v.Description, v.Comment), nil
	case *ExistsCheck:
		return predicateValue(KeyExists, v.Path, types.Bool(v.Expected), v.Description, v.Comment), nil
	case *And:
		return combinatorValue(KeyAnd, v.Children)
	case *Or:
		return combinatorValue(KeyOr, v.Children)
	default:
		return types.Value{}, fmt.Errorf("cannot marshal schema node %T", n)
	}
}

// MarshalSchema renders s as JSON.
func MarshalSchema(s *Schema) ([]byte, error) {
	v, err := MarshalNode(s.Root())
	if err != nil {
		return nil, err
	}
	return v.MarshalJSON()
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return MarshalSchema(s)
}

// Document returns the wire document of s.
func (s *Schema) Document() types.Value {
	v, err := MarshalNode(s.root)
	if err != nil {
		// NewSchema only admits the four node variants
		panic(err)
	}
	return v
}

func predicateValue(op, path string, expected types.Value, description, comment string) types.Value {
	body := []types.Member{{Key: path, Value: expected}}
	if description != "" {
		body = append(body, types.Member{Key: KeyDescription, Value: types.String(description)})
	}
	if comment != "" {
		body = append(body, types.Member{Key: KeyComment, Value: types.String(comment)})
	}
	return types.Object(types.Member{Key: op, Value: types.Object(body...)})
}

func combinatorValue(op string, children []Node) (types.Value, error) {
	items := make([]types.Value, 0, len(children))
	for _, c := range children {
		v, err := MarshalNode(c)
		if err != nil {
			return types.Value{}, err
		}
		items = append(items, v)
	}
	return types.Object(types.Member{Key: op, Value: types.Array(items...)}), nil
}
