package state

import (
	"reflect"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New(nil)

	s.Set("user.name", "ada")
	s.Set("user.tags", []interface{}{"a", "b"})

	v, ok := s.Get("user.name")
	if !ok || v != "ada" {
		t.Fatalf("expected user.name=ada, got %v (ok=%v)", v, ok)
	}

	tags, ok := s.Get("user.tags")
	if !ok {
		t.Fatal("expected user.tags to exist")
	}
	if !reflect.DeepEqual(tags, []interface{}{"a", "b"}) {
		t.Errorf("unexpected tags: %v", tags)
	}
}

func TestGetReturnsDeepCopy(t *testing.T) {
	s := New(map[string]interface{}{
		"doc": map[string]interface{}{"count": float64(1)},
	})

	v, _ := s.Get("doc")
	v.(map[string]interface{})["count"] = float64(99)

	fresh, _ := s.Get("doc.count")
	if fresh != float64(1) {
		t.Errorf("mutating returned value leaked into store: %v", fresh)
	}
}

func TestSetDeepCopiesInput(t *testing.T) {
	s := New(nil)
	in := map[string]interface{}{"a": float64(1)}
	s.Set("doc", in)
	in["a"] = float64(2)

	v, _ := s.Get("doc.a")
	if v != float64(1) {
		t.Errorf("mutating input after Set leaked into store: %v", v)
	}
}

func TestPathVariants(t *testing.T) {
	s := New(map[string]interface{}{
		"items": []interface{}{"x", "y", "z"},
		"a":     map[string]interface{}{"b.c": "quoted"},
	})

	cases := []struct {
		path string
		want interface{}
	}{
		{"items.1", "y"},
		{"items[2]", "z"},
		{"$.items.0", "x"},
		{`a["b.c"]`, "quoted"},
		{"a['b.c']", "quoted"},
	}
	for _, c := range cases {
		got, ok := s.Get(c.path)
		if !ok || got != c.want {
			t.Errorf("Get(%q) = %v (ok=%v), want %v", c.path, got, ok, c.want)
		}
	}
}

func TestRootAddressing(t *testing.T) {
	s := New(map[string]interface{}{"x": float64(1)})

	for _, p := range []string{"", "$"} {
		v, ok := s.Get(p)
		if !ok {
			t.Fatalf("Get(%q) should always succeed", p)
		}
		if !reflect.DeepEqual(v, map[string]interface{}{"x": float64(1)}) {
			t.Errorf("Get(%q) = %v", p, v)
		}
		if !s.Has(p) {
			t.Errorf("Has(%q) should be true", p)
		}
	}
}

func TestIntermediateContainerCreation(t *testing.T) {
	s := New(nil)

	s.Set("a.b.c", "deep")
	if v, _ := s.Get("a.b.c"); v != "deep" {
		t.Errorf("expected map intermediates, got %v", s.Snapshot())
	}

	s.Set("list.0.name", "first")
	list, ok := s.Get("list")
	if !ok {
		t.Fatal("expected list to exist")
	}
	seq, ok := list.([]interface{})
	if !ok {
		t.Fatalf("expected sequence for all-digit segment, got %T", list)
	}
	if v, _ := s.Get("list.0.name"); v != "first" {
		t.Errorf("unexpected list contents: %v", seq)
	}
}

func TestSequenceGrowth(t *testing.T) {
	s := New(nil)
	s.Set("seq.2", "c")

	seq, _ := s.Get("seq")
	want := []interface{}{nil, nil, "c"}
	if !reflect.DeepEqual(seq, want) {
		t.Errorf("expected %v, got %v", want, seq)
	}
}

func TestDeleteSemantics(t *testing.T) {
	s := New(map[string]interface{}{
		"m":     map[string]interface{}{"a": float64(1), "b": float64(2)},
		"items": []interface{}{"x", "y", "z"},
	})

	if !s.Delete("m.a") {
		t.Error("expected delete of m.a to report true")
	}
	if s.Has("m.a") {
		t.Error("m.a should be gone")
	}

	if !s.Delete("items.1") {
		t.Error("expected delete of items.1 to report true")
	}
	items, _ := s.Get("items")
	if !reflect.DeepEqual(items, []interface{}{"x", "z"}) {
		t.Errorf("sequence deletion should shift: %v", items)
	}

	if s.Delete("missing.path") {
		t.Error("delete on absent path must be a no-op")
	}
}

func TestUpdateMergeRules(t *testing.T) {
	s := New(map[string]interface{}{
		"user": map[string]interface{}{
			"name": "ada",
			"prefs": map[string]interface{}{
				"theme": "dark",
			},
		},
		"tags":  []interface{}{"a", "b"},
		"count": float64(1),
	})

	s.Update(map[string]interface{}{
		"user": map[string]interface{}{
			"prefs": map[string]interface{}{"lang": "en"},
		},
		"tags":  []interface{}{"c"},
		"count": nil,
	})

	if v, _ := s.Get("user.name"); v != "ada" {
		t.Errorf("sibling keys must survive merge, got name=%v", v)
	}
	if v, _ := s.Get("user.prefs.theme"); v != "dark" {
		t.Errorf("nested maps must merge, got theme=%v", v)
	}
	if v, _ := s.Get("user.prefs.lang"); v != "en" {
		t.Errorf("merged key missing, got lang=%v", v)
	}
	tags, _ := s.Get("tags")
	if !reflect.DeepEqual(tags, []interface{}{"c"}) {
		t.Errorf("sequences must replace wholesale, got %v", tags)
	}
	if s.Has("count") {
		t.Error("nil in update must remove the key")
	}
}

func TestHooksFireOncePerMutation(t *testing.T) {
	s := New(nil)

	type call struct {
		kind string
		path string
	}
	var calls []call
	s.SetHooks(Hooks{
		Before: func(path string, _, _ interface{}) {
			calls = append(calls, call{"before", path})
		},
		After: func(path string, _ interface{}) {
			calls = append(calls, call{"after", path})
		},
	})

	s.Set("x", float64(1))
	s.Update(map[string]interface{}{"a": float64(1), "b": float64(2)})
	s.Delete("x")

	want := []call{
		{"before", "x"}, {"after", "x"},
		{"before", "$"}, {"after", "$"},
		{"before", "x"}, {"after", "x"},
	}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("hook calls = %v, want %v", calls, want)
	}
}

func TestHookReceivesOldAndNew(t *testing.T) {
	s := New(map[string]interface{}{"x": "old"})

	var gotOld, gotNew interface{}
	s.SetHooks(Hooks{
		Before: func(_ string, oldValue, newValue interface{}) {
			gotOld, gotNew = oldValue, newValue
		},
	})

	s.Set("x", "new")
	if gotOld != "old" || gotNew != "new" {
		t.Errorf("before hook saw old=%v new=%v", gotOld, gotNew)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New(map[string]interface{}{"x": map[string]interface{}{"y": float64(1)}})

	snap := s.Snapshot()
	snap["x"].(map[string]interface{})["y"] = float64(42)

	if v, _ := s.Get("x.y"); v != float64(1) {
		t.Errorf("snapshot mutation leaked into store: %v", v)
	}
}

func TestParsePath(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"$", nil},
		{"a", []string{"a"}},
		{"$.a.b", []string{"a", "b"}},
		{"a[0].b", []string{"a", "0", "b"}},
		{"$[0]", []string{"0"}},
		{`a["k.x"].b`, []string{"a", "k.x", "b"}},
	}
	for _, c := range cases {
		got := parsePath(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("parsePath(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
