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

// Package changedfiles is the Changed-File Extractor (C8): it produces
// the list of (path, kind) entries touched by one revision, either by
// recomputing the diff against the repository directly or by consulting
// a host-maintained diff cache (spec §4.5).
package changedfiles

import (
	"context"
	"sort"

	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/provider"
)

// MergeCommitStrategy selects which base a merge commit is diffed
// against (spec §4.8 "mergeCommitStrategy").
type MergeCommitStrategy string

const (
	// AllChangedFiles diffs a merge commit against its first parent.
	AllChangedFiles MergeCommitStrategy = "ALL_CHANGED_FILES"
	// FilesWithConflictResolution diffs a merge commit against the
	// provider's computed auto-merge base, surfacing only the files the
	// merge itself touched.
	FilesWithConflictResolution MergeCommitStrategy = "FILES_WITH_CONFLICT_RESOLUTION"
)

// metaPaths are synthetic pseudo-files a host's diff cache may include
// that never carry ownership semantics.
var metaPaths = map[string]bool{
	"/COMMIT_MSG": true,
	"/MERGE_LIST": true,
}

// DiffCache is the host's pre-computed diff store, keyed by
// (project, revision, parentNumber). A nil parentNumber selects the
// default/auto-merge base (spec §4.5).
type DiffCache interface {
	Lookup(ctx context.Context, project string, revision provider.ObjectId, parentNumber *int) ([]ownersconfig.ChangedFile, bool, error)
}

// Recompute extracts the changed files for revision by opening repo and
// diffing it directly against its base, without rename detection
// (spec §4.5 Recompute mode). Under the FilesWithConflictResolution
// strategy revision itself is passed to AutoMerge and the result is the
// base; under any other strategy the provider's default base is used.
func Recompute(
	ctx context.Context,
	repos provider.RepositoryProvider,
	project string,
	repo provider.Repo,
	revision provider.ObjectId,
	strategy MergeCommitStrategy,
) ([]ownersconfig.ChangedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, ownererrors.Wrap(ownererrors.Canceled, err, "changed-file extraction canceled")
	}

	var base provider.ObjectId
	if strategy == FilesWithConflictResolution {
		merged, err := repos.AutoMerge(ctx, repo, revision)
		if err != nil {
			return nil, ownererrors.Wrap(ownererrors.Repository, err, "compute auto-merge base").WithLocation(project, "", "")
		}
		base = merged
	}

	changed, err := repos.Diff(ctx, repo, revision, base, false)
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.Repository, err, "diff revision").WithLocation(project, "", "")
	}
	return stripMeta(changed), nil
}

// FromCache extracts the changed files for revision from cache, using
// parentNumber to select a specific parent's diff (nil for the
// default/auto-merge base), per spec §4.5 DiffCache mode: meta paths are
// filtered and the result is sorted alphabetically by path.
func FromCache(
	ctx context.Context,
	cache DiffCache,
	project string,
	revision provider.ObjectId,
	parentNumber *int,
) ([]ownersconfig.ChangedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, ownererrors.Wrap(ownererrors.Canceled, err, "changed-file extraction canceled")
	}

	changed, ok, err := cache.Lookup(ctx, project, revision, parentNumber)
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.Repository, err, "lookup cached diff").WithLocation(project, "", "")
	}
	if !ok {
		return nil, ownererrors.Newf(ownererrors.Repository, "no cached diff for revision %s", revision).WithLocation(project, "", "")
	}

	out := stripMeta(changed)
	sort.Slice(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out, nil
}

func stripMeta(in []ownersconfig.ChangedFile) []ownersconfig.ChangedFile {
	out := make([]ownersconfig.ChangedFile, 0, len(in))
	for _, cf := range in {
		if cf.NewPath != nil && metaPaths[*cf.NewPath] {
			continue
		}
		if cf.OldPath != nil && cf.NewPath == nil && metaPaths[*cf.OldPath] {
			continue
		}
		out = append(out, cf)
	}
	return out
}

func sortKey(cf ownersconfig.ChangedFile) string {
	if cf.NewPath != nil {
		return *cf.NewPath
	}
	if cf.OldPath != nil {
		return *cf.OldPath
	}
	return ""
}
