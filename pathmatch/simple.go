package pathmatch

import "strings"

// simpleMatcher implements the simple-extension dialect used by the
// find-owners backend's per-file globs: "*.ext" and "prefix*" only, no
// directory separators, no character classes.
type simpleMatcher struct{}

func (simpleMatcher) Matches(expression, relativePath string) (bool, error) {
	relativePath = strings.TrimPrefix(relativePath, "/")
	// per-file expressions only ever apply to the base name of the path;
	// find-owners globs never cross a directory boundary.
	base := relativePath
	if idx := strings.LastIndexByte(relativePath, '/'); idx >= 0 {
		base = relativePath[idx+1:]
	}

	switch {
	case expression == "*":
		return true, nil
	case strings.HasPrefix(expression, "*.") && !strings.Contains(expression[1:], "*"):
		return strings.HasSuffix(base, expression[1:]), nil
	case strings.HasSuffix(expression, "*") && !strings.Contains(expression[:len(expression)-1], "*"):
		return strings.HasPrefix(base, expression[:len(expression)-1]), nil
	default:
		return base == expression, nil
	}
}
