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

// Package ownerswalk is the Config Hierarchy Walker (C6): it visits every
// applicable OWNERS config from the innermost containing folder up to
// the repository root, then the default-config branch's root config if
// that is a different branch (spec §4.4).
package ownerswalk

import (
	"context"
	"path"

	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/ownersload"
	"github.com/clarketm/codeowners/ownersresolve"
	"github.com/clarketm/codeowners/pathmatch"
)

// DefaultConfigBranch is the branch consulted for the repository-root
// OWNERS file when the target branch's own walk reaches "/" without a
// stop (spec §4.4).
const DefaultConfigBranch = "refs/meta/config"

// Visit is invoked once per applicable config, innermost folder first.
// It returns whether the walk should keep going; the walk also stops
// after a config whose resolved IgnoreParentCodeOwners flag is set.
type Visit func(res *ownersresolve.Result, key ownersconfig.Key) (continueWalk bool)

// Walk drives visitor over every applicable config for targetPath on
// (project, branch) at the loader's sticky revision for that pair, per
// spec §4.4.
func Walk(
	ctx context.Context,
	loader *ownersload.Loader,
	dialect pathmatch.Dialect,
	fileName string,
	project, branch string,
	targetPath string,
	visitor Visit,
) error {
	folder := path.Dir(targetPath)
	if folder == "." || folder == "/" {
		folder = ""
	}

	for {
		if err := ctx.Err(); err != nil {
			return ownererrors.Wrap(ownererrors.Canceled, err, "walk canceled")
		}

		key := ownersconfig.Key{Project: project, Branch: branch, FolderPath: folder, FileName: fileName}
		cfg, err := loader.Load(ctx, key, "")
		if err != nil {
			return err
		}
		if cfg != nil {
			res, err := ownersresolve.Resolve(ctx, loader, dialect, key, cfg, targetPath)
			if err != nil {
				return err
			}
			if !visitor(res, key) {
				return nil
			}
			if res.Config.IgnoreParentCodeOwners {
				return nil
			}
		}

		if folder == "" {
			break
		}
		folder = parentOf(folder)
	}

	if branch != DefaultConfigBranch {
		key := ownersconfig.Key{Project: project, Branch: DefaultConfigBranch, FolderPath: "", FileName: fileName}
		cfg, err := loader.Load(ctx, key, "")
		if err != nil {
			return err
		}
		if cfg != nil {
			res, err := ownersresolve.Resolve(ctx, loader, dialect, key, cfg, targetPath)
			if err != nil {
				return err
			}
			visitor(res, key)
		}
	}

	return nil
}

func parentOf(folder string) string {
	d := path.Dir(folder)
	if d == "." || d == "/" {
		return ""
	}
	return d
}
