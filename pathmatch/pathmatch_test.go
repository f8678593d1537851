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

package pathmatch

import "testing"

func TestGlobMatcher(t *testing.T) {
	cases := []struct {
		name       string
		expression string
		path       string
		want       bool
	}{
		{"star matches one segment", "*.go", "main.go", true},
		{"star does not cross directory", "*.go", "sub/main.go", false},
		{"doublestar crosses directories", "**/*.go", "sub/dir/main.go", true},
		{"question mark", "fil?.go", "file.go", true},
		{"char class", "file[0-9].go", "file1.go", true},
		{"no match", "*.py", "main.go", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Matches(Glob, c.expression, c.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", c.expression, c.path, got, c.want)
			}
		})
	}
}

func TestSimpleMatcher(t *testing.T) {
	cases := []struct {
		expression string
		path       string
		want       bool
	}{
		{"*.py", "sub/dir/s.py", true},
		{"*.py", "sub/dir/s.txt", false},
		{"test_*", "sub/test_foo.go", true},
		{"test_*", "sub/footest_.go", false},
		{"*", "anything", true},
		{"exact.txt", "dir/exact.txt", true},
		{"exact.txt", "dir/other.txt", false},
	}
	for _, c := range cases {
		got, err := Matches(SimpleExtension, c.expression, c.path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.expression, c.path, got, c.want)
		}
	}
}

func TestRuleMatcher(t *testing.T) {
	cases := []struct {
		expression string
		path       string
		want       bool
	}{
		{"sub/*.go", "sub/main.go", true},
		{"sub/*.go", "sub/dir/main.go", false},
		{"sub/.../*.go", "sub/a/b/main.go", true},
		{"sub/.../*.go", "sub/main.go", true},
		{"sub/.../*.go", "other/main.go", false},
	}
	for _, c := range cases {
		got, err := Matches(RuleStyle, c.expression, c.path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.expression, c.path, got, c.want)
		}
	}
}

func TestDisable(t *testing.T) {
	Disable(RuleStyle)
	defer Register(RuleStyle, ruleMatcher{})

	got, err := Matches(RuleStyle, "sub/*.go", "sub/main.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Errorf("disabled dialect should never match")
	}
}
