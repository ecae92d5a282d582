package data

import (
	"cmp"
	"slices"
)

// File is a single file observation within one snapshot listing.
type File struct {
	Path string `json:"path"`
	Size uint64 `json:"size"`
}

// Entry is a direct child of a queried directory with the largest
// size ever observed at or beneath it.
type Entry struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// SortEntries orders entries by size descending, then by name.
func SortEntries(entries []*Entry) {
	slices.SortFunc(entries, func(a, b *Entry) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// EntriesFromMap converts a name to size aggregate into sorted entries.
func EntriesFromMap(sizes map[string]uint64) []*Entry {
	entries := make([]*Entry, 0, len(sizes))
	for name, size := range sizes {
		entries = append(entries, &Entry{Name: name, Size: size})
	}

	SortEntries(entries)
	return entries
}
