package util

import (
	"testing"
)

func TestNormalizePatternPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./crates/core  ", expected: "crates/core"},
		{name: "Relative", input: "crates/../tools", expected: "tools"},
		{name: "Backslashes", input: `crates\core`, expected: "crates/core"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePatternPath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestHasPathPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{name: "Exact", path: "ws/.rusty-cache", prefix: "ws/.rusty-cache", expected: true},
		{name: "Nested", path: "ws/.rusty-cache/index.bin", prefix: "ws/.rusty-cache", expected: true},
		{name: "Neighbor", path: "ws/.rusty-cachex/a", prefix: "ws/.rusty-cache", expected: false},
		{name: "Shorter", path: "ws", prefix: "ws/.rusty-cache", expected: false},
		{name: "MixedSeparators", path: `ws\src\lib.rs`, prefix: "ws/src", expected: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasPathPrefix(tc.path, tc.prefix); got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSortedStringKeys(t *testing.T) {
	t.Parallel()

	m := map[string]int{"b": 2, "a": 1, "c": 3}
	keys := SortedStringKeys(m)
	expected := []string{"a", "b", "c"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("expected %q at %d, got %q", key, i, keys[i])
		}
	}
}

func TestPathFilter(t *testing.T) {
	t.Parallel()

	f, err := NewPathFilter([]string{"target", ".*"}, []string{"*_generated.rs"})
	if err != nil {
		t.Fatalf("NewPathFilter: %v", err)
	}

	if !f.SkipDir("/ws/target") {
		t.Error("expected target to be skipped")
	}
	if !f.SkipDir("/ws/.git") {
		t.Error("expected hidden dir to be skipped")
	}
	if f.SkipDir("/ws/src") {
		t.Error("src must not be skipped")
	}
	if !f.SkipFile("/ws/src/schema_generated.rs") {
		t.Error("expected generated file to be skipped")
	}
	if f.SkipFile("/ws/src/lib.rs") {
		t.Error("lib.rs must not be skipped")
	}

	var none *PathFilter
	if none.SkipDir("target") || none.SkipFile("x.rs") {
		t.Error("nil filter must skip nothing")
	}
}

func TestPathFilterInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewPathFilter([]string{"[abc"}, nil); err == nil {
		t.Fatal("expected invalid dir pattern to fail")
	}
	if _, err := NewPathFilter(nil, []string{"[abc"}); err == nil {
		t.Fatal("expected invalid file pattern to fail")
	}
}
