package data

import (
	"iter"
	"path"
	"strings"
)

// RootPath is the path every snapshot listing is rooted at.
const RootPath = "/"

// CleanPath normalizes a slash separated path into its absolute, cleaned form.
// An empty path resolves to the root.
func CleanPath(p string) string {
	if p == "" {
		return RootPath
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p)
}

// SplitPath returns the parent directory and the last segment of a cleaned path.
// The root has no parent and returns ("", "").
func SplitPath(p string) (parent string, name string) {
	p = CleanPath(p)
	if p == RootPath {
		return "", ""
	}

	idx := strings.LastIndex(p, "/")
	if idx == 0 {
		return RootPath, p[1:]
	}

	return p[:idx], p[idx+1:]
}

// Components yields every (parent, name) pair along the path, starting at the root.
// For "/a/b/c.txt" it yields ("/", "a"), ("/a", "b") and ("/a/b", "c.txt").
func Components(p string) iter.Seq2[string, string] {
	p = CleanPath(p)

	return func(yield func(string, string) bool) {
		if p == RootPath {
			return
		}

		parent := RootPath
		rest := p[1:]
		for {
			name, tail, more := strings.Cut(rest, "/")
			if !yield(parent, name) {
				return
			}

			if !more {
				return
			}

			parent = JoinPath(parent, name)
			rest = tail
		}
	}
}

// JoinPath appends a single segment to a cleaned directory path.
func JoinPath(dir, name string) string {
	if dir == RootPath || dir == "" {
		return "/" + name
	}

	return dir + "/" + name
}
