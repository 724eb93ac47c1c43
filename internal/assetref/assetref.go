// Package assetref finds the image files a Markdown body refers to.
package assetref

import (
	"regexp"
	"sort"
	"strings"
)

var imageRe = regexp.MustCompile(`!\[.*?\]\(([^)\n]+)\)`)

// Set is a collection of referenced filenames.
type Set map[string]struct{}

// Has reports whether name is in the set. A nil set contains nothing.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FindReferences returns the final path segment of every ![alt](path) image
// in body, duplicates collapsed.
func FindReferences(body string) Set {
	out := Set{}
	for _, m := range imageRe.FindAllStringSubmatch(body, -1) {
		if name := filename(m[1]); name != "" {
			out[name] = struct{}{}
		}
	}
	return out
}

// Union merges sets into a new one.
func Union(sets ...Set) Set {
	out := Set{}
	for _, s := range sets {
		for name := range s {
			out[name] = struct{}{}
		}
	}
	return out
}

// filename reduces a link destination to its last segment, dropping an
// optional title, angle brackets, and query or fragment.
func filename(dest string) string {
	dest = strings.TrimSpace(dest)
	if strings.HasPrefix(dest, "<") {
		if end := strings.IndexByte(dest, '>'); end > 0 {
			dest = dest[1:end]
		}
	} else if i := strings.IndexAny(dest, " \t"); i >= 0 {
		dest = dest[:i]
	}
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		dest = dest[:i]
	}
	return dest[strings.LastIndex(dest, "/")+1:]
}
