package datum

import "testing"

func TestFromJSONScalars(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		kind Kind
	}{
		{"null", nil, KindNull},
		{"bool", true, KindBool},
		{"number", 3.5, KindNumber},
		{"string", "hi", KindString},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := FromJSON(c.in)
			if err != nil {
				t.Fatalf("FromJSON(%v): %v", c.in, err)
			}
			if d.Kind() != c.kind {
				t.Fatalf("Kind() = %v, want %v", d.Kind(), c.kind)
			}
		})
	}
}

func TestFromJSONArrayAndObject(t *testing.T) {
	d, err := FromJSON([]interface{}{"a", 1.0, nil})
	if err != nil {
		t.Fatalf("FromJSON array: %v", err)
	}
	arr, ok := d.AsArray()
	if !ok || len(arr) != 3 {
		t.Fatalf("AsArray() = %v, %v", arr, ok)
	}

	obj := map[string]interface{}{"x": 1.0, "y": "z"}
	do, err := FromJSON(obj)
	if err != nil {
		t.Fatalf("FromJSON object: %v", err)
	}
	if do.Kind() != KindObject {
		t.Fatalf("Kind() = %v, want KindObject", do.Kind())
	}
	if v, ok := do.Get("x"); !ok || v.Kind() != KindNumber {
		t.Fatalf("Get(x) = %v, %v", v, ok)
	}
	if len(do.Keys()) != 2 {
		t.Fatalf("Keys() = %v, want 2 entries", do.Keys())
	}
}

func TestFromJSONUnsupportedType(t *testing.T) {
	_, err := FromJSON(complex(1, 1))
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestEqual(t *testing.T) {
	a, _ := FromJSON(map[string]interface{}{"a": 1.0, "b": []interface{}{1.0, "x"}})
	b, _ := FromJSON(map[string]interface{}{"a": 1.0, "b": []interface{}{1.0, "x"}})
	if !a.Equal(b) {
		t.Fatal("expected equal datums to compare equal")
	}

	c, _ := FromJSON(map[string]interface{}{"a": 1.0, "b": []interface{}{1.0, "y"}})
	if a.Equal(c) {
		t.Fatal("expected differing datums to compare unequal")
	}
}

func TestConstructors(t *testing.T) {
	if Null().Kind() != KindNull {
		t.Error("Null() kind mismatch")
	}
	if v, _ := Bool(true).AsBool(); !v {
		t.Error("Bool(true) round-trip failed")
	}
	if v, _ := Number(4.2).AsNumber(); v != 4.2 {
		t.Error("Number round-trip failed")
	}
	if v, _ := String("s").AsString(); v != "s" {
		t.Error("String round-trip failed")
	}
}
