// internal/types/value_test.go
package types

import (
	"errors"
	"strings"
	"testing"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind Kind
	}{
		{name: "null", data: `null`, kind: KindNull},
		{name: "bool", data: `true`, kind: KindBool},
		{name: "number", data: `-1.5e10`, kind: KindNumber},
		{name: "string", data: `"hi"`, kind: KindString},
		{name: "array", data: `[1, "a", null]`, kind: KindArray},
		{name: "object", data: `{"a": {"b": []}}`, kind: KindObject},
		{name: "surrounding whitespace", data: "  \n{}\t ", kind: KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseJSON([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseJSON() error = %v, want nil", err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", v.Kind(), tt.kind)
			}
		})
	}
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		cause error
	}{
		{name: "empty", data: []byte(``), cause: ErrInvalidJSON},
		{name: "truncated object", data: []byte(`{"a": 1`), cause: ErrInvalidJSON},
		{name: "trailing data", data: []byte(`{} {}`), cause: ErrInvalidJSON},
		{name: "bare word", data: []byte(`nope`), cause: ErrInvalidJSON},
		{name: "missing colon", data: []byte(`{"a" 1}`), cause: ErrInvalidJSON},
		{name: "missing array comma", data: []byte(`[1 2]`), cause: ErrInvalidJSON},
		{name: "missing member comma", data: []byte(`{"a":1 "b":2}`), cause: ErrInvalidJSON},
		{name: "doubled comma", data: []byte(`[1,,2]`), cause: ErrInvalidJSON},
		{name: "leading zero", data: []byte(`01`), cause: ErrInvalidJSON},
		{name: "nested leading zero", data: []byte(`{"a":[-012]}`), cause: ErrInvalidJSON},
		{name: "too deep", data: []byte(strings.Repeat("[", 600) + strings.Repeat("]", 600)), cause: ErrInvalidJSON},
		{name: "too large", data: make([]byte, MaxDocumentSize+1), cause: ErrDocumentTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON(tt.data)
			if !errors.Is(err, tt.cause) {
				t.Errorf("ParseJSON() error = %v, want %v", err, tt.cause)
			}
		})
	}
}

func TestValidNumber(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"-0", true},
		{"12", true},
		{"1.5", true},
		{"-1.5e+10", true},
		{"2E3", true},
		{"01", false},
		{"-01", false},
		{"1.", false},
		{".5", false},
		{"1e", false},
		{"-", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := validNumber(tt.in); got != tt.want {
			t.Errorf("validNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseJSON_PreservesOrder(t *testing.T) {
	v, err := ParseJSON([]byte(`{"z": 1, "a": 2, "m": {"y": true, "b": false}}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want nil", err)
	}

	keys := v.Keys()
	want := []string{"z", "a", "m"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	out, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v, want nil", err)
	}
	if string(out) != `{"z":1,"a":2,"m":{"y":true,"b":false}}` {
		t.Errorf("MarshalJSON() = %s", out)
	}
}

func TestParseJSON_NumberLiteral(t *testing.T) {
	v, err := ParseJSON([]byte(`{"n": 12345678901234567890}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want nil", err)
	}
	n, _ := v.Get("n")
	lit, ok := n.NumberLiteral()
	if !ok || lit != "12345678901234567890" {
		t.Errorf("NumberLiteral() = %q, %v, want literal kept verbatim", lit, ok)
	}
}

func TestObject_DuplicateKeys(t *testing.T) {
	v, err := ParseJSON([]byte(`{"a": 1, "b": 2, "a": 3}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v, want nil", err)
	}
	if v.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", v.Len())
	}
	if keys := v.Keys(); keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
	a, _ := v.Get("a")
	if f, _ := a.Float64(); f != 3 {
		t.Errorf("Get(a) = %v, want 3", f)
	}
}

func TestValue_Immutable(t *testing.T) {
	v := Object(Member{Key: "a", Value: Number("1")})
	members := v.Members()
	members[0].Value = String("changed")

	got, _ := v.Get("a")
	if got.Kind() != KindNumber {
		t.Errorf("mutating Members() changed the value")
	}

	arr := Array(Bool(true))
	items := arr.Items()
	items[0] = Null()
	if arr.Items()[0].Kind() != KindBool {
		t.Errorf("mutating Items() changed the value")
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{name: "same object", a: `{"a": [1, 2]}`, b: `{"a": [1, 2]}`, equal: true},
		{name: "number spelling", a: `1.0`, b: `1`, equal: true},
		{name: "member order matters", a: `{"a": 1, "b": 2}`, b: `{"b": 2, "a": 1}`, equal: false},
		{name: "kind differs", a: `"1"`, b: `1`, equal: false},
		{name: "array length", a: `[1]`, b: `[1, 1]`, equal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseJSON([]byte(tt.a))
			if err != nil {
				t.Fatalf("ParseJSON(a) error = %v", err)
			}
			b, err := ParseJSON([]byte(tt.b))
			if err != nil {
				t.Fatalf("ParseJSON(b) error = %v", err)
			}
			if a.Equal(b) != tt.equal {
				t.Errorf("Equal() = %v, want %v", !tt.equal, tt.equal)
			}
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"b": []any{1, int64(2), 3.5, nil},
		"a": map[string]any{"x": true, "y": "s"},
	})
	if err != nil {
		t.Fatalf("FromAny() error = %v, want nil", err)
	}

	out, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v, want nil", err)
	}
	want := `{"a":{"x":true,"y":"s"},"b":[1,2,3.5,null]}`
	if string(out) != want {
		t.Errorf("MarshalJSON() = %s, want %s", out, want)
	}

	back, err := FromAny(v.ToAny())
	if err != nil {
		t.Fatalf("FromAny(ToAny()) error = %v, want nil", err)
	}
	if !back.Equal(v) {
		t.Errorf("FromAny(ToAny()) = %v, want %v", back, v)
	}

	if _, err := FromAny(struct{}{}); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("FromAny(struct) error = %v, want ErrInvalidJSON", err)
	}
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var v Value
	if err := v.UnmarshalJSON([]byte(`{"k": "v"}`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v, want nil", err)
	}
	got, ok := v.Get("k")
	if s, _ := got.AsString(); !ok || s != "v" {
		t.Errorf("Get(k) = %v, want v", got)
	}
}
