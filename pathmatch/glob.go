package pathmatch

import (
	"strings"

	"github.com/mattn/go-zglob"
)

// globMatcher implements the glob dialect: *, **, ?, and character
// classes, as supported by github.com/mattn/go-zglob's purely lexical
// Match (no filesystem access).
type globMatcher struct{}

func (globMatcher) Matches(expression, relativePath string) (bool, error) {
	expression = strings.TrimPrefix(expression, "/")
	relativePath = strings.TrimPrefix(relativePath, "/")
	return zglob.Match(expression, relativePath)
}
