/*
Copyright 2017 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package pathmatch implements the single-pattern path matching dialects
// a code-owners config can select between: glob, simple-extension and
// rule-style. A pattern is always matched against a path relative to the
// folder that declared it, never an absolute path.
package pathmatch

import "fmt"

// Dialect is the name of a supported pattern language, selected per
// project/branch by the policy configuration snapshot (C11).
type Dialect string

const (
	Glob           Dialect = "glob"
	SimpleExtension Dialect = "simple"
	RuleStyle      Dialect = "rule"
)

// Matcher matches a single pattern expression against a relative path.
type Matcher interface {
	Matches(expression, relativePath string) (bool, error)
}

var registry = map[Dialect]Matcher{
	Glob:            globMatcher{},
	SimpleExtension: simpleMatcher{},
	RuleStyle:       ruleMatcher{},
}

// neverMatcher serves backends that declare they do not support path
// expressions at all; any expression supplied under it never matches, so
// per-file sets become inert rather than erroring.
type neverMatcher struct{}

func (neverMatcher) Matches(string, string) (bool, error) { return false, nil }

// Register installs (or overrides) the matcher for a dialect. Backends
// that don't support expressions use Disable instead.
func Register(d Dialect, m Matcher) {
	registry[d] = m
}

// Disable installs the never-match implementation for a dialect.
func Disable(d Dialect) {
	registry[d] = neverMatcher{}
}

// For returns the matcher registered for a dialect.
func For(d Dialect) (Matcher, error) {
	m, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("pathmatch: unknown dialect %q", d)
	}
	return m, nil
}

// Matches is a convenience wrapper around For(d).Matches.
func Matches(d Dialect, expression, relativePath string) (bool, error) {
	m, err := For(d)
	if err != nil {
		return false, err
	}
	return m.Matches(expression, relativePath)
}
