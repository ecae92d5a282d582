package index

import (
	"iter"
	"maps"

	"github.com/mwantia/snapdu/data"
)

// Aggregate folds file observations of one snapshot into per-directory child maxima.
type Aggregate struct {
	dirs  map[string]map[string]uint64
	files int
	nodes int
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		dirs: make(map[string]map[string]uint64),
	}
}

// Add records the file size on the file itself and every ancestor directory.
func (a *Aggregate) Add(file data.File) {
	recorded := false
	for parent, name := range data.Components(file.Path) {
		children, ok := a.dirs[parent]
		if !ok {
			children = make(map[string]uint64)
			a.dirs[parent] = children
		}

		size, exists := children[name]
		if !exists {
			a.nodes++
		}
		if !exists || file.Size > size {
			children[name] = file.Size
		}
		recorded = true
	}

	if recorded {
		a.files++
	}
}

// Directories yields every directory together with its child maxima.
func (a *Aggregate) Directories() iter.Seq2[string, map[string]uint64] {
	return maps.All(a.dirs)
}

// Files returns how many file observations were added.
func (a *Aggregate) Files() int {
	return a.files
}

// Nodes returns how many distinct (directory, child) pairs are tracked.
func (a *Aggregate) Nodes() int {
	return a.nodes
}

// Merge folds child maxima into sizes, keeping the larger value per name.
func Merge(sizes map[string]uint64, children map[string]uint64) {
	for name, size := range children {
		if current, ok := sizes[name]; !ok || size > current {
			sizes[name] = size
		}
	}
}
