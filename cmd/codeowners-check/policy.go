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

package main

import (
	"context"
	"fmt"

	"github.com/clarketm/codeowners/gerritprovider"
	"github.com/clarketm/codeowners/ownerspolicy"
)

const (
	metaConfigRef      = "refs/meta/config"
	codeOwnersConfigPath = "/code-owners.config"
)

// loadPolicy resolves project's code-owners.config off its
// refs/meta/config branch and builds the typed snapshot (spec §4.8).
//
// This CLI resolves a single project's own section only: it does not
// walk Gerrit's project-parent hierarchy the way the submit-rule plugin
// does inside a running server, since that hierarchy is server
// metadata this standalone tool has no other way to discover. A missing
// code-owners.config falls back to the engine's defaults.
func loadPolicy(ctx context.Context, repos *gerritprovider.RepositoryProvider, project string) (*ownerspolicy.Config, error) {
	repo, err := repos.OpenRepo(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", project, err)
	}
	defer repo.Close()

	rev, ok, err := repos.ResolveRef(ctx, repo, metaConfigRef)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", metaConfigRef, err)
	}
	if !ok {
		return ownerspolicy.ResolveTexts(nil)
	}

	blob, ok, err := repos.ReadBlob(ctx, repo, rev, codeOwnersConfigPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", codeOwnersConfigPath, err)
	}
	if !ok {
		return ownerspolicy.ResolveTexts(nil)
	}

	return ownerspolicy.ResolveTexts([]string{string(blob)})
}

// resolvePolicy picks between the local-file dry-run path and a live
// Gerrit fetch depending on whether localPath is set (spec §4's
// supplemented "ownerspolicy hot-reload ... for local dry-runs").
//
// A one-shot CLI invocation only ever reads Current() once; the
// fsnotify-backed reload this opens exists for a long-running host that
// keeps the Watcher alive across many requests instead of re-fetching
// code-owners.config from disk on each one.
func resolvePolicy(ctx context.Context, repos *gerritprovider.RepositoryProvider, project, localPath string) (*ownerspolicy.Config, error) {
	if localPath == "" {
		return loadPolicy(ctx, repos, project)
	}

	w, err := ownerspolicy.NewWatcher(localPath, logrusEntry())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", localPath, err)
	}
	defer w.Close()
	return w.Current(), nil
}
