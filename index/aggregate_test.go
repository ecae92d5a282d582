package index

import (
	"maps"
	"testing"

	"github.com/mwantia/snapdu/data"
)

func directories(a *Aggregate) map[string]map[string]uint64 {
	return maps.Collect(a.Directories())
}

func TestAggregate_TracksMaximaPerDirectory(t *testing.T) {
	a := NewAggregate()
	a.Add(data.File{Path: "/a/b.txt", Size: 100})
	a.Add(data.File{Path: "/a/c.txt", Size: 300})
	a.Add(data.File{Path: "/d.txt", Size: 50})
	a.Add(data.File{Path: "/a/b.txt", Size: 20})

	dirs := directories(a)
	root, ok := dirs["/"]
	if !ok {
		t.Fatal("Expected root directory")
	}
	if want := map[string]uint64{"a": 300, "d.txt": 50}; !maps.Equal(root, want) {
		t.Errorf("Expected %v, got %v", want, root)
	}

	dir := dirs["/a"]
	if want := map[string]uint64{"b.txt": 100, "c.txt": 300}; !maps.Equal(dir, want) {
		t.Errorf("Expected %v, got %v", want, dir)
	}

	if a.Files() != 4 || a.Nodes() != 4 {
		t.Errorf("Expected 4 files and 4 nodes, got %d and %d", a.Files(), a.Nodes())
	}
}

func TestAggregate_KeepsZeroSizedFiles(t *testing.T) {
	a := NewAggregate()
	a.Add(data.File{Path: "/empty", Size: 0})
	a.Add(data.File{Path: "/", Size: 10})

	root := directories(a)["/"]
	if size, ok := root["empty"]; !ok || size != 0 {
		t.Errorf("Expected empty file to be tracked, got %v", root)
	}
	if a.Files() != 1 {
		t.Errorf("Root path carries no node and must not count, got %d", a.Files())
	}
}

func TestMerge(t *testing.T) {
	sizes := map[string]uint64{"a": 100, "b": 5}
	Merge(sizes, map[string]uint64{"a": 500, "b": 1, "c": 0})

	if want := map[string]uint64{"a": 500, "b": 5, "c": 0}; !maps.Equal(sizes, want) {
		t.Errorf("Expected %v, got %v", want, sizes)
	}
}
