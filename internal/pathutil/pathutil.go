// Package pathutil canonicalizes file paths so the same file is never
// indexed twice under two keys.
package pathutil

import "strings"

// Normalize canonicalizes a file path for use as an index key.
//
// The normalization order is load-bearing and must not be changed:
//
//  1. doubly-escaped backslashes (`\\`) become forward slashes - these
//     survive JSON round-trips of Windows paths,
//  2. remaining backslashes become forward slashes,
//  3. the whole path is lowercased,
//  4. duplicate forward slashes collapse to one.
//
// Running step 2 before step 1 would split an escaped backslash into two
// separators and disagree with this order on inputs like `a\\\\b`.
func Normalize(path string) string {
	if path == "" {
		return ""
	}
	p := strings.ReplaceAll(path, `\\`, "/")
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.ToLower(p)
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// HasPrefix reports whether the normalized form of path falls under the
// normalized form of prefix. A prefix of "" matches everything.
func HasPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(Normalize(path), Normalize(prefix))
}

// Base returns the final path segment of a normalized path.
func Base(path string) string {
	p := Normalize(path)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Segments splits a normalized path into its non-empty segments.
func Segments(path string) []string {
	parts := strings.Split(Normalize(path), "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
