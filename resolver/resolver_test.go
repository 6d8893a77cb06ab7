package resolver

import (
	"reflect"
	"testing"
)

func testData() map[string]interface{} {
	return map[string]interface{}{
		"count": 3,
		"user": map[string]interface{}{
			"name": "ada",
		},
		"items":   []interface{}{"a", "b", "c"},
		"flag":    true,
		"nothing": nil,
	}
}

func resolve(t *testing.T, config map[string]interface{}) map[string]interface{} {
	t.Helper()
	r := NewResolver()
	resolved, err := r.ResolveConfig(config, testData())
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	return resolved
}

func TestWholePlaceholderKeepsType(t *testing.T) {
	resolved := resolve(t, map[string]interface{}{
		"n":    "{{count}}",
		"name": "{{user.name}}",
		"list": "{{items}}",
		"on":   "{{flag}}",
		"nul":  "{{nothing}}",
	})

	if n, ok := resolved["n"].(float64); !ok || n != 3 {
		t.Errorf("n = %#v, want float64 3", resolved["n"])
	}
	if resolved["name"] != "ada" {
		t.Errorf("name = %#v, want ada", resolved["name"])
	}
	if list, ok := resolved["list"].([]interface{}); !ok || len(list) != 3 {
		t.Errorf("list = %#v, want 3-element slice", resolved["list"])
	}
	if resolved["on"] != true {
		t.Errorf("on = %#v, want true", resolved["on"])
	}
	if resolved["nul"] != nil {
		t.Errorf("nul = %#v, want nil", resolved["nul"])
	}
}

func TestInStringPlaceholdersStringify(t *testing.T) {
	resolved := resolve(t, map[string]interface{}{
		"greeting": "Hello {{user.name}}!",
		"total":    "total: {{count}}",
		"doc":      "cfg: {{user}}",
	})

	if resolved["greeting"] != "Hello ada!" {
		t.Errorf("greeting = %#v", resolved["greeting"])
	}
	if resolved["total"] != "total: 3" {
		t.Errorf("total = %#v", resolved["total"])
	}
	if resolved["doc"] != `cfg: {"name":"ada"}` {
		t.Errorf("doc = %#v", resolved["doc"])
	}
}

func TestUnresolvedStaysLiteral(t *testing.T) {
	resolved := resolve(t, map[string]interface{}{
		"whole": "{{missing.path}}",
		"mixed": "value: {{missing.path}}",
	})

	if resolved["whole"] != "{{missing.path}}" {
		t.Errorf("whole = %#v", resolved["whole"])
	}
	if resolved["mixed"] != "value: {{missing.path}}" {
		t.Errorf("mixed = %#v", resolved["mixed"])
	}
}

func TestPathForms(t *testing.T) {
	resolved := resolve(t, map[string]interface{}{
		"dotted":  "{{items.1}}",
		"bracket": "{{items[1]}}",
		"dollar":  "{{$.user.name}}",
		"quoted":  `{{user['name']}}`,
		"spaced":  "{{ user.name }}",
	})

	for key, want := range map[string]interface{}{
		"dotted":  "b",
		"bracket": "b",
		"dollar":  "ada",
		"quoted":  "ada",
		"spaced":  "ada",
	} {
		if resolved[key] != want {
			t.Errorf("%s = %#v, want %#v", key, resolved[key], want)
		}
	}
}

func TestRecursesIntoContainers(t *testing.T) {
	resolved := resolve(t, map[string]interface{}{
		"nested": map[string]interface{}{
			"who": "{{user.name}}",
			"arr": []interface{}{"{{count}}", "literal", 42},
		},
	})

	nested, ok := resolved["nested"].(map[string]interface{})
	if !ok {
		t.Fatalf("nested = %#v", resolved["nested"])
	}
	if nested["who"] != "ada" {
		t.Errorf("who = %#v", nested["who"])
	}
	arr, ok := nested["arr"].([]interface{})
	if !ok {
		t.Fatalf("arr = %#v", nested["arr"])
	}
	want := []interface{}{float64(3), "literal", 42}
	if !reflect.DeepEqual(arr, want) {
		t.Errorf("arr = %#v, want %#v", arr, want)
	}
}

func TestPrimitivesPassThrough(t *testing.T) {
	resolved := resolve(t, map[string]interface{}{
		"int":  7,
		"bool": false,
	})

	if resolved["int"] != 7 {
		t.Errorf("int = %#v", resolved["int"])
	}
	if resolved["bool"] != false {
		t.Errorf("bool = %#v", resolved["bool"])
	}
}

func TestToPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"user.name", "user.name"},
		{"$.user.name", "user.name"},
		{"items[0]", "items.0"},
		{`items["x"]`, "items.x"},
		{"[0]", "0"},
		{"$", ""},
	}
	for _, tc := range cases {
		if got := toPath(tc.in); got != tc.want {
			t.Errorf("toPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
