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

// Package ownersconfig holds the in-memory data model shared by every
// code-owners component: one OWNERS file (CodeOwnerConfig), its rules
// (CodeOwnerSet), its imports (ConfigRef), and the path/diff/status types
// that flow across component boundaries.
package ownersconfig

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ImportMode controls how much of an imported config is pulled in.
type ImportMode string

const (
	// GlobalOnly imports global sets only.
	GlobalOnly ImportMode = "GLOBAL_ONLY"
	// All imports global sets, matching per-file sets, ignoreParentCodeOwners,
	// and transitively follows the imported config's own imports.
	All ImportMode = "ALL"
	// AllButNoTransitive is like All but does not follow the imported
	// config's own imports.
	AllButNoTransitive ImportMode = "ALL_BUT_NO_TRANSITIVE"
)

// ConfigRef names another OWNERS file to import rules from.
type ConfigRef struct {
	// Project is the project the ref points at. Empty means the
	// importing config's own project.
	Project string
	// Branch is the branch the ref points at. Empty means the importing
	// config's own branch.
	Branch     string
	FilePath   string
	ImportMode ImportMode
}

// CodeOwnerReference is an owner entry: either an email address or the
// wildcard "*" (all users).
type CodeOwnerReference string

// AllUsers is the wildcard code-owner reference.
const AllUsers CodeOwnerReference = "*"

// Annotation is a free-form tag attached to a code-owner reference inside
// one CodeOwnerSet, e.g. "last_resort" or "notify".
type Annotation string

// CodeOwnerSet is a single rule within a CodeOwnerConfig.
type CodeOwnerSet struct {
	// PathExpressions is empty for a global set (applies to every file in
	// the folder subtree) or non-empty for a per-file set.
	PathExpressions sets.String
	// IgnoreGlobalAndParentCodeOwners is only meaningful on a per-file set.
	IgnoreGlobalAndParentCodeOwners bool
	// Imports is only meaningful on a per-file set and must use GlobalOnly.
	Imports     []ConfigRef
	CodeOwners  sets.String // of CodeOwnerReference, kept as plain strings for set arithmetic
	Annotations map[CodeOwnerReference][]Annotation
}

// IsGlobal reports whether this set applies to every file in the folder.
func (s CodeOwnerSet) IsGlobal() bool {
	return s.PathExpressions.Len() == 0
}

// Validate enforces data model invariants 1 and 2 from spec §3.
func (s CodeOwnerSet) Validate() error {
	if s.IsGlobal() {
		if s.IgnoreGlobalAndParentCodeOwners {
			return fmt.Errorf("global code owner set must not set ignoreGlobalAndParentCodeOwners")
		}
		if len(s.Imports) != 0 {
			return fmt.Errorf("global code owner set must not declare imports")
		}
		return nil
	}
	for _, ref := range s.Imports {
		if ref.ImportMode != GlobalOnly {
			return fmt.Errorf("per-file code owner set import of %q must use GLOBAL_ONLY, got %q", ref.FilePath, ref.ImportMode)
		}
	}
	return nil
}

// CodeOwnerConfig is one parsed OWNERS file.
type CodeOwnerConfig struct {
	IgnoreParentCodeOwners bool
	Imports                []ConfigRef
	CodeOwnerSets          []CodeOwnerSet
	// Revision is the Git object id the content was read from.
	Revision string
}

// Validate checks every contained CodeOwnerSet.
func (c *CodeOwnerConfig) Validate() error {
	for i, s := range c.CodeOwnerSets {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("code owner set %d: %w", i, err)
		}
	}
	return nil
}

// Key uniquely identifies an OWNERS file location (invariant 4).
type Key struct {
	Project    string
	Branch     string
	FolderPath string
	FileName   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s/%s", k.Project, k.Branch, k.FolderPath, k.FileName)
}

// ChangeKind describes the nature of one changed path.
type ChangeKind string

const (
	Add    ChangeKind = "ADD"
	Modify ChangeKind = "MODIFY"
	Delete ChangeKind = "DELETE"
	Rename ChangeKind = "RENAME"
	Copy   ChangeKind = "COPY"
)

// ChangedFile is one entry of the changed-file extractor's output.
// "/dev/null", the sentinel a diff uses for an absent side, must never
// appear here: callers convert it to a nil pointer (invariant 3).
type ChangedFile struct {
	NewPath *string
	OldPath *string
	Kind    ChangeKind
}

// Status is the outcome of evaluating one path's ownership.
type Status string

const (
	Approved               Status = "APPROVED"
	Pending                Status = "PENDING"
	InsufficientReviewers  Status = "INSUFFICIENT_REVIEWERS"
	NoOwnersDefined        Status = "NO_OWNERS_DEFINED"
)

// PathCodeOwnerStatus is the resolved status for one absolute path.
type PathCodeOwnerStatus struct {
	AbsolutePath string
	Status       Status
	Reasons      []string
	Owners       sets.String // populated only when CheckAllOwners is requested
}

// FileCodeOwnerStatus pairs a changed file with the status of each side
// that is present.
type FileCodeOwnerStatus struct {
	ChangedFile   ChangedFile
	NewPathStatus *PathCodeOwnerStatus
	OldPathStatus *PathCodeOwnerStatus
}
