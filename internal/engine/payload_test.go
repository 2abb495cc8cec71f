package engine

import "testing"

func TestPayloadClone_Deep(t *testing.T) {
	orig := Payload{
		"list":   []any{"a", map[string]any{"k": "v"}},
		"names":  []string{"x"},
		"labels": map[string]string{"team": "sec"},
		"nested": Payload{"n": 1},
	}
	c := orig.Clone()

	c["list"].([]any)[1].(map[string]any)["k"] = "changed"
	c["names"].([]string)[0] = "y"
	c["labels"].(map[string]string)["team"] = "ops"
	c["nested"].(Payload)["n"] = 2

	if orig["list"].([]any)[1].(map[string]any)["k"] != "v" {
		t.Error("nested map inside slice was shared")
	}
	if orig["names"].([]string)[0] != "x" {
		t.Error("[]string was shared")
	}
	if orig["labels"].(map[string]string)["team"] != "sec" {
		t.Error("map[string]string was shared")
	}
	if orig["nested"].(Payload)["n"] != 1 {
		t.Error("nested Payload was shared")
	}
}

func TestPayloadClone_Nil(t *testing.T) {
	var p Payload
	c := p.Clone()
	if c == nil {
		t.Fatal("Clone of nil must return an empty, writable payload")
	}
	c["k"] = "v"
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]string{"days=14", "filter = a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IntValue("days", 30) != 14 {
		t.Errorf("days = %d; want 14", p.IntValue("days", 30))
	}
	if p.StringValue("filter", "") != " a=b" {
		t.Errorf("filter = %q; want %q", p.StringValue("filter", ""), " a=b")
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := ParsePayload([]string{bad}); err == nil {
			t.Errorf("ParsePayload(%q) = nil error; want error", bad)
		}
	}
}

func TestPayloadAccessors_Defaults(t *testing.T) {
	p := Payload{"days": "soon", "f": float64(7)}
	if got := p.IntValue("days", 30); got != 30 {
		t.Errorf("unparsable int = %d; want default 30", got)
	}
	if got := p.IntValue("f", 0); got != 7 {
		t.Errorf("float value = %d; want 7", got)
	}
	if got := p.StringValue("missing", "def"); got != "def" {
		t.Errorf("missing string = %q; want def", got)
	}
}
