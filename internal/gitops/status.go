package gitops

import (
	"sort"
	"strconv"
	"strings"
)

// StatusSet is a set of repo-root-relative paths reported as changed
// (added, modified, deleted, or renamed) by the working tree.
type StatusSet map[string]struct{}

// Contains reports whether path is in the set.
func (s StatusSet) Contains(path string) bool {
	_, ok := s[path]
	return ok
}

// Subtract returns the paths present in s but not in other.
func (s StatusSet) Subtract(other StatusSet) StatusSet {
	out := StatusSet{}
	for p := range s {
		if !other.Contains(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// SymmetricDiff returns the paths present in exactly one of the two sets.
func (s StatusSet) SymmetricDiff(other StatusSet) StatusSet {
	out := s.Subtract(other)
	for p := range other.Subtract(s) {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the paths in lexicographic order.
func (s StatusSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// parsePorcelain converts `git status --porcelain` output into a StatusSet.
// Each line is "XY path"; for a rename ("old -> new") only the destination
// is kept. Paths with unusual characters arrive C-quoted and are unquoted.
func parsePorcelain(output string) StatusSet {
	set := StatusSet{}
	for _, raw := range strings.Split(output, "\n") {
		if len(raw) < 4 {
			continue
		}
		path := strings.TrimSpace(raw[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = strings.TrimSpace(path[idx+4:])
		}
		path = unquotePath(path)
		if path != "" {
			set[path] = struct{}{}
		}
	}
	return set
}

// unquotePath removes git's C-style quoting from a porcelain path.
func unquotePath(path string) string {
	if !strings.HasPrefix(path, `"`) || !strings.HasSuffix(path, `"`) || len(path) < 2 {
		return path
	}
	if unquoted, err := strconv.Unquote(path); err == nil {
		return unquoted
	}
	return strings.Trim(path, `"`)
}
