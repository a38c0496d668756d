package httpreq

import (
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// HeaderMap is an insertion ordered set of header fields. Setting an existing
// name replaces its value in place, so emission order is the order in which
// names were first seen. Names are matched literally (case-sensitive).
type HeaderMap struct {
	m *linkedhashmap.Map
}

// NewHeaderMap returns an empty HeaderMap.
func NewHeaderMap() *HeaderMap {
	return &HeaderMap{m: linkedhashmap.New()}
}

// Set upserts name with value.
func (h *HeaderMap) Set(name, value string) {
	h.m.Put(name, value)
}

// Get returns the value stored under name.
func (h *HeaderMap) Get(name string) (string, bool) {
	v, ok := h.m.Get(name)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Del removes name.
func (h *HeaderMap) Del(name string) {
	h.m.Remove(name)
}

// Len returns the number of distinct names.
func (h *HeaderMap) Len() int {
	return h.m.Size()
}

// Clear removes every field.
func (h *HeaderMap) Clear() {
	h.m.Clear()
}

// Each calls fn for every field in insertion order.
func (h *HeaderMap) Each(fn func(name, value string)) {
	h.m.Each(func(key, value interface{}) {
		fn(key.(string), value.(string))
	})
}

// Names returns the field names in insertion order.
func (h *HeaderMap) Names() []string {
	keys := h.m.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.(string))
	}
	return names
}

// Lines renders the fields as "Name: value" lines in insertion order.
func (h *HeaderMap) Lines() []string {
	lines := make([]string, 0, h.Len())
	h.Each(func(name, value string) {
		lines = append(lines, name+": "+value)
	})
	return lines
}

// Map returns a copy of the fields as a plain map.
func (h *HeaderMap) Map() map[string]string {
	out := make(map[string]string, h.Len())
	h.Each(func(name, value string) {
		out[name] = value
	})
	return out
}

// CaptureHeaderLine parses one raw response header line and upserts it.
// Status lines and the blank separator are ignored, as are lines without a
// colon. The name is everything before the first colon; the value is the
// remainder with surrounding whitespace removed.
func (h *HeaderMap) CaptureHeaderLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || strings.HasPrefix(line, "HTTP/") {
		return
	}
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return
	}
	name := strings.TrimSpace(line[:idx])
	if name == "" {
		return
	}
	h.Set(name, strings.TrimSpace(line[idx+1:]))
}
