package comparator

import "strings"

// Shared array-intersection helpers. Pure functions, no side effects;
// used by the repository and keyword checks.

// containsString reports whether set contains s exactly.
func containsString(set []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// intersectCount counts the distinct members of b that appear in a.
func intersectCount(a, b []string) int {
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		if v != "" {
			seen[v] = true
		}
	}
	count := 0
	matched := make(map[string]bool)
	for _, v := range b {
		if seen[v] && !matched[v] {
			matched[v] = true
			count++
		}
	}
	return count
}

// overlapsLoosely reports whether any member of a and b overlap, counting
// substring containment in either direction as a match.
func overlapsLoosely(a, b []string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if y == "" {
				continue
			}
			if x == y || strings.Contains(x, y) || strings.Contains(y, x) {
				return true
			}
		}
	}
	return false
}
