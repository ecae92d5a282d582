package data

import (
	"slices"
	"testing"
)

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"":          "/",
		"/":         "/",
		"a":         "/a",
		"/a/":       "/a",
		"//a//b/":   "/a/b",
		"/a/./b/..": "/a",
	}

	for input, want := range tests {
		if got := CleanPath(input); got != want {
			t.Errorf("CleanPath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		name   string
	}{
		{"/", "", ""},
		{"/a", "/", "a"},
		{"/a/b.txt", "/a", "b.txt"},
		{"a/b/c/", "/a/b", "c"},
	}

	for _, tc := range tests {
		parent, name := SplitPath(tc.path)
		if parent != tc.parent || name != tc.name {
			t.Errorf("SplitPath(%q) = (%q, %q), want (%q, %q)", tc.path, parent, name, tc.parent, tc.name)
		}
	}
}

func TestComponents(t *testing.T) {
	var got []string
	for parent, name := range Components("/a/b/c.txt") {
		got = append(got, parent+"|"+name)
	}

	want := []string{"/|a", "/a|b", "/a/b|c.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	for parent, name := range Components("/") {
		t.Errorf("Root should yield nothing, got (%q, %q)", parent, name)
	}
}

func TestComponents_StopsEarly(t *testing.T) {
	count := 0
	for range Components("/a/b/c/d") {
		count++
		if count == 2 {
			break
		}
	}

	if count != 2 {
		t.Errorf("Expected iteration to stop after 2, got %d", count)
	}
}

func TestSortEntries(t *testing.T) {
	entries := EntriesFromMap(map[string]uint64{"b": 10, "a": 10, "c": 300})

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}

	if want := []string{"c", "a", "b"}; !slices.Equal(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}
