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

// Package ownersresolve is the Path Code Owners Resolver (C5): given one
// CodeOwnerConfig and a target path, it expands imports breadth-first and
// filters per-file rules down to only what is relevant to that path
// (spec §4.3).
package ownersresolve

import (
	"context"
	"fmt"
	"path"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/ownersload"
	"github.com/clarketm/codeowners/pathmatch"
)

// UnresolvedImport is a purely diagnostic record of an import that could
// not be followed; it never fails the resolution (spec §4.3, §7).
type UnresolvedImport struct {
	Ref    ownersconfig.ConfigRef
	Reason string
}

// Result is the outcome of resolving one config against one target path.
type Result struct {
	Config     *ownersconfig.CodeOwnerConfig
	Unresolved []UnresolvedImport
}

type queueItem struct {
	ref           ownersconfig.ConfigRef
	mode          ownersconfig.ImportMode
	originProject string
	originBranch  string
}

// Resolve expands cfg (loaded from originKey) against targetPath.
func Resolve(
	ctx context.Context,
	loader *ownersload.Loader,
	dialect pathmatch.Dialect,
	originKey ownersconfig.Key,
	cfg *ownersconfig.CodeOwnerConfig,
	targetPath string,
) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, ownererrors.Wrap(ownererrors.Canceled, err, "resolve canceled")
	}

	result := &ownersconfig.CodeOwnerConfig{
		IgnoreParentCodeOwners: cfg.IgnoreParentCodeOwners,
		Revision:               cfg.Revision,
	}

	originRel, err := relativeTo(originKey.FolderPath, targetPath)
	if err != nil {
		return nil, err
	}

	for _, set := range cfg.CodeOwnerSets {
		if set.IsGlobal() {
			result.CodeOwnerSets = append(result.CodeOwnerSets, set)
			continue
		}
		matched, err := matchesAny(dialect, set.PathExpressions, originRel)
		if err != nil {
			return nil, err
		}
		if matched {
			result.CodeOwnerSets = append(result.CodeOwnerSets, set)
		}
	}

	visited := sets.NewString(originKey.String())
	var unresolved []UnresolvedImport

	// Step 2: expand global imports (breadth first).
	globalQueue := make([]queueItem, 0, len(cfg.Imports))
	for _, ref := range cfg.Imports {
		globalQueue = append(globalQueue, queueItem{ref: ref, mode: ownersconfig.All, originProject: originKey.Project, originBranch: originKey.Branch})
	}
	if err := expand(ctx, loader, dialect, globalQueue, visited, targetPath, result, &unresolved, true); err != nil {
		return nil, err
	}

	// Step 3: per-file "set noparent" dominates global sets entirely.
	anyIgnore := false
	kept := result.CodeOwnerSets[:0:0]
	for _, set := range result.CodeOwnerSets {
		if !set.IsGlobal() && set.IgnoreGlobalAndParentCodeOwners {
			anyIgnore = true
		}
	}
	if anyIgnore {
		result.IgnoreParentCodeOwners = true
		for _, set := range result.CodeOwnerSets {
			if !set.IsGlobal() {
				kept = append(kept, set)
			}
		}
		result.CodeOwnerSets = kept
	}

	// Step 4: expand imports attached to surviving per-file sets.
	perFileQueue := make([]queueItem, 0)
	for _, set := range result.CodeOwnerSets {
		if set.IsGlobal() {
			continue
		}
		for _, ref := range set.Imports {
			perFileQueue = append(perFileQueue, queueItem{ref: ref, mode: ref.ImportMode, originProject: originKey.Project, originBranch: originKey.Branch})
		}
	}
	if err := expand(ctx, loader, dialect, perFileQueue, visited, targetPath, result, &unresolved, false); err != nil {
		return nil, err
	}

	if err := result.Validate(); err != nil {
		return nil, ownererrors.Wrap(ownererrors.Internal, err, "resolved config violates data model invariants")
	}

	return &Result{Config: result, Unresolved: unresolved}, nil
}

// expand runs the BFS import-expansion machinery shared by steps 2 and 4.
// applyIgnoreParent controls whether an imported config's
// IgnoreParentCodeOwners is folded into result for imports not under
// GlobalOnly (true for the step-2 global pass; false for the step-4
// per-file-import pass, where ignoreParentCodeOwners is not re-applied).
func expand(
	ctx context.Context,
	loader *ownersload.Loader,
	dialect pathmatch.Dialect,
	queue []queueItem,
	visited sets.String,
	targetPath string,
	result *ownersconfig.CodeOwnerConfig,
	unresolved *[]UnresolvedImport,
	applyIgnoreParent bool,
) error {
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return ownererrors.Wrap(ownererrors.Canceled, err, "import expansion canceled")
		}

		item := queue[0]
		queue = queue[1:]

		project := item.ref.Project
		if project == "" {
			project = item.originProject
		}
		branch := item.ref.Branch
		if branch == "" {
			branch = item.originBranch
		}
		folder := path.Dir(item.ref.FilePath)
		if folder == "/" || folder == "." {
			folder = ""
		}
		key := ownersconfig.Key{
			Project:    project,
			Branch:     branch,
			FolderPath: folder,
			FileName:   path.Base(item.ref.FilePath),
		}

		if visited.Has(key.String()) {
			continue
		}
		visited.Insert(key.String())

		imported, err := loader.Load(ctx, key, "")
		if err != nil {
			var oe *ownererrors.Error
			if ownererrors.As(err, &oe) && oe.Kind == ownererrors.Repository {
				*unresolved = append(*unresolved, UnresolvedImport{Ref: item.ref, Reason: "project not found"})
				continue
			}
			return err
		}
		if imported == nil {
			*unresolved = append(*unresolved, UnresolvedImport{Ref: item.ref, Reason: fmt.Sprintf("file not found at revision %s", revisionOf(loader, key))})
			continue
		}

		importedRel, nested := relativeToLenient(key.FolderPath, targetPath)

		for _, set := range imported.CodeOwnerSets {
			if set.IsGlobal() {
				result.CodeOwnerSets = append(result.CodeOwnerSets, set)
				continue
			}
			if item.mode == ownersconfig.GlobalOnly || !nested {
				continue
			}
			matched, err := matchesAny(dialect, set.PathExpressions, importedRel)
			if err != nil {
				return err
			}
			if matched {
				result.CodeOwnerSets = append(result.CodeOwnerSets, set)
				if item.mode != ownersconfig.GlobalOnly {
					for _, ref := range set.Imports {
						subMode := ref.ImportMode
						if item.mode == ownersconfig.GlobalOnly {
							subMode = ownersconfig.GlobalOnly
						}
						queue = append(queue, queueItem{ref: ref, mode: subMode, originProject: project, originBranch: branch})
					}
				}
			}
		}

		if applyIgnoreParent && item.mode != ownersconfig.GlobalOnly && imported.IgnoreParentCodeOwners {
			result.IgnoreParentCodeOwners = true
		}

		if item.mode == ownersconfig.All {
			for _, ref := range imported.Imports {
				queue = append(queue, queueItem{ref: ref, mode: ownersconfig.All, originProject: project, originBranch: branch})
			}
		} else if item.mode == ownersconfig.GlobalOnly {
			for _, ref := range imported.Imports {
				queue = append(queue, queueItem{ref: ref, mode: ownersconfig.GlobalOnly, originProject: project, originBranch: branch})
			}
		}
		// AllButNoTransitive: do not queue imported.Imports at all.
	}
	return nil
}

func revisionOf(loader *ownersload.Loader, key ownersconfig.Key) string {
	// Best-effort diagnostic text only; the loader already attempted the
	// sticky revision for this (project, branch) when Load returned nil.
	return "HEAD"
}

func matchesAny(dialect pathmatch.Dialect, exprs sets.String, relPath string) (bool, error) {
	for _, e := range exprs.List() {
		ok, err := pathmatch.Matches(dialect, e, relPath)
		if err != nil {
			return false, ownererrors.Wrap(ownererrors.InvalidPath, err, "evaluate path expression")
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// relativeTo computes targetPath relative to folder, both absolute,
// repository-rooted paths (invariant 3). It never leaves folder: a
// target outside folder yields an InvalidPath error.
func relativeTo(folder, targetPath string) (string, error) {
	folder = strings.TrimSuffix(folder, "/")
	if folder == "" || folder == "." {
		return strings.TrimPrefix(targetPath, "/"), nil
	}
	if targetPath != folder && !strings.HasPrefix(targetPath, folder+"/") {
		return "", ownererrors.Newf(ownererrors.InvalidPath, "path %q is not under folder %q", targetPath, folder)
	}
	rel := strings.TrimPrefix(targetPath, folder+"/")
	if rel == "" {
		rel = "."
	}
	return rel, nil
}

// relativeToLenient is relativeTo without the hard failure: an imported
// config's folder need not be an ancestor of the target path (an import
// can pull global rules from an unrelated directory). Its per-file sets
// simply never match in that case.
func relativeToLenient(folder, targetPath string) (string, bool) {
	rel, err := relativeTo(folder, targetPath)
	if err != nil {
		return "", false
	}
	return rel, true
}
