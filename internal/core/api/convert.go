package api

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/solatis/hl7keeper/internal/types"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// stringField returns a required string field of req.
func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", errMissingField, name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", errMissingField, name)
	}
	return s.StringValue, nil
}

// documentField returns a required JSON document field of req. A string is
// decoded as JSON text and keeps member order; any other value is converted
// with object keys sorted.
func documentField(req *structpb.Struct, name string) (types.Value, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return types.Value{}, fmt.Errorf("%w: %s", errMissingField, name)
	}
	if s, isString := v.GetKind().(*structpb.Value_StringValue); isString {
		doc, err := types.ParseJSON([]byte(s.StringValue))
		if err != nil {
			return types.Value{}, fmt.Errorf("%s: %w", name, err)
		}
		return doc, nil
	}
	return types.FromAny(v.AsInterface())
}

// toStruct renders any JSON-encodable response as a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

// toValue renders a document as a protobuf Value. Object order is not kept.
func toValue(doc types.Value) (*structpb.Value, error) {
	return structpb.NewValue(doc.ToAny())
}
