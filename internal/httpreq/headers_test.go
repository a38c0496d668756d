package httpreq

import (
	"net/url"
	"testing"
)

func TestHeaderMap_UpsertKeepsFirstPosition(t *testing.T) {
	h := NewHeaderMap()
	h.Set("Accept", "text/html")
	h.Set("X-One", "1")
	h.Set("Accept", "application/json")

	names := h.Names()
	if len(names) != 2 || names[0] != "Accept" || names[1] != "X-One" {
		t.Fatalf("unexpected order: %v", names)
	}
	if v, _ := h.Get("Accept"); v != "application/json" {
		t.Fatalf("last write should win, got %q", v)
	}
	if _, ok := h.Get("accept"); ok {
		t.Fatal("lookup is case-sensitive")
	}
	h.Del("Accept")
	if h.Len() != 1 {
		t.Fatalf("expected 1 field after Del, got %d", h.Len())
	}
}

func TestHeaderMap_CaptureHeaderLine(t *testing.T) {
	h := NewHeaderMap()
	for _, line := range []string{
		"HTTP/1.1 200 OK\r\n",
		"Content-Type: application/json\r\n",
		"X-Time:  12:30:00 \r\n",
		"no-colon-here\r\n",
		"X-Dup: a\r\n",
		"X-Dup: b\r\n",
		"\r\n",
	} {
		h.CaptureHeaderLine(line)
	}

	want := map[string]string{
		"Content-Type": "application/json",
		"X-Time":       "12:30:00",
		"X-Dup":        "b",
	}
	got := h.Map()
	if len(got) != len(want) {
		t.Fatalf("unexpected fields: %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestEncodeForm(t *testing.T) {
	tests := map[string]struct {
		data any
		want string
	}{
		"nil":          {data: nil, want: ""},
		"values":       {data: url.Values{"b": {"2"}, "a": {"1"}}, want: "a=1&b=2"},
		"string-map":   {data: map[string]string{"grant_type": "refresh_token"}, want: "grant_type=refresh_token"},
		"any-map":      {data: map[string]any{"n": 3}, want: "n=3"},
		"scalar":       {data: 42, want: "0=42"},
		"string":       {data: "a b", want: "0=a+b"},
		"bool":         {data: true, want: "0=true"},
		"string-slice": {data: []string{"x", "y"}, want: "0=x&1=y"},
		"any-slice":    {data: []any{"x", 2}, want: "0=x&1=2"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := encodeForm(tc.data)
			if err != nil {
				t.Fatalf("encodeForm: %v", err)
			}
			if got != tc.want {
				t.Fatalf("encodeForm = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEncodeForm_RejectsComposites(t *testing.T) {
	type shop struct{ Name string }
	for name, data := range map[string]any{
		"struct":    shop{Name: "a"},
		"int-slice": []int{1, 2},
		"int-map":   map[int]string{1: "a"},
	} {
		t.Run(name, func(t *testing.T) {
			if got, err := encodeForm(data); err == nil {
				t.Fatalf("expected error, got %q", got)
			}
		})
	}
}
