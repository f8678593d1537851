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

package ownerspolicy

import (
	"strings"
	"testing"

	"github.com/clarketm/codeowners/approvalstatus"
	"github.com/clarketm/codeowners/changedfiles"
	"github.com/clarketm/codeowners/pathmatch"
)

func TestResolveAppliesDefaults(t *testing.T) {
	cfg, err := Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Backend != "find-owners" {
		t.Errorf("expected default backend find-owners, got %q", cfg.Backend)
	}
	if cfg.PathExpressions != pathmatch.Glob {
		t.Errorf("expected default path expression dialect glob, got %q", cfg.PathExpressions)
	}
	if cfg.MergeCommitStrategy != changedfiles.AllChangedFiles {
		t.Errorf("expected default merge commit strategy ALL_CHANGED_FILES, got %q", cfg.MergeCommitStrategy)
	}
	if cfg.FallbackCodeOwners != approvalstatus.FallbackNone {
		t.Errorf("expected default fallback NONE, got %q", cfg.FallbackCodeOwners)
	}
	if !cfg.EnableValidationOnCommitReceived || !cfg.EnableValidationOnSubmit {
		t.Errorf("expected validation enabled by default")
	}
}

func TestResolveChildOverridesSingleValue(t *testing.T) {
	parent, err := Parse("[codeOwners]\nbackend = proto\nrequiredApproval = Code-Review+2\n")
	if err != nil {
		t.Fatalf("Parse parent: %v", err)
	}
	child, err := Parse("[codeOwners]\nbackend = find-owners\n")
	if err != nil {
		t.Fatalf("Parse child: %v", err)
	}

	cfg, err := Resolve([]rawSection{parent, child})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Backend != "find-owners" {
		t.Errorf("expected child's backend to override parent's, got %q", cfg.Backend)
	}
	if cfg.RequiredApprovalLabel != "Code-Review" || cfg.RequiredApprovalValue != 2 {
		t.Errorf("expected inherited requiredApproval Code-Review+2, got %q+%d", cfg.RequiredApprovalLabel, cfg.RequiredApprovalValue)
	}
}

func TestResolveExtendsMultiValue(t *testing.T) {
	parent, err := Parse("[codeOwners]\nexemptedUsers = bot@x.com\n")
	if err != nil {
		t.Fatalf("Parse parent: %v", err)
	}
	child, err := Parse("[codeOwners]\nexemptedUsers = other-bot@x.com\n")
	if err != nil {
		t.Fatalf("Parse child: %v", err)
	}

	cfg, err := Resolve([]rawSection{parent, child})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.ExemptedUsers.Has("bot@x.com") || !cfg.ExemptedUsers.Has("other-bot@x.com") {
		t.Errorf("expected exemptedUsers to extend across parent and child, got %+v", cfg.ExemptedUsers)
	}
}

func TestParseLabelSpec(t *testing.T) {
	label, value, err := ParseLabelSpec("Code-Review+2")
	if err != nil {
		t.Fatalf("ParseLabelSpec: %v", err)
	}
	if label != "Code-Review" || value != 2 {
		t.Errorf("expected (Code-Review, 2), got (%q, %d)", label, value)
	}

	if _, _, err := ParseLabelSpec("malformed"); err == nil {
		t.Errorf("expected an error for a spec without '+'")
	}
}

func TestResolveRejectsUnknownDialect(t *testing.T) {
	raw, err := Parse("[codeOwners]\npathExpressions = nonsense\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Resolve([]rawSection{raw}); err == nil {
		t.Errorf("expected an error for an unknown pathExpressions dialect")
	}
}

func TestConfigAsYAMLIncludesResolvedFields(t *testing.T) {
	cfg, err := ResolveTexts([]string{"[codeOwners]\nbackend = proto\nrequiredApproval = Code-Review+2\nglobalCodeOwners = bob@x.com\n"})
	if err != nil {
		t.Fatalf("ResolveTexts: %v", err)
	}

	out, err := cfg.AsYAML()
	if err != nil {
		t.Fatalf("AsYAML: %v", err)
	}

	text := string(out)
	for _, want := range []string{"backend: proto", "requiredApprovalLabel: Code-Review", "bob@x.com"} {
		if !strings.Contains(text, want) {
			t.Errorf("AsYAML output missing %q, got:\n%s", want, text)
		}
	}
}
