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

// Package ownersload is the Config Loader (C4): given (key, revision) it
// returns the parsed OWNERS config, or absence if none exists. Loads are
// memoized per (key, revision) within one outer resolution, and revision
// stickiness pins every load for a (project, branch) pair to the first
// revision observed during that resolution (spec §4.2).
package ownersload

import (
	"context"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/ownersbackend"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/provider"
)

// BackendFor resolves which Backend parses the OWNERS file at key. It is
// supplied by the caller because backend selection is a policy-snapshot
// concern (C11), not something the loader decides on its own.
type BackendFor func(key ownersconfig.Key) (ownersbackend.Backend, error)

type branchKey struct {
	project string
	branch  string
}

type cacheEntry struct {
	cfg *ownersconfig.CodeOwnerConfig // nil means "not found", not "not yet loaded"
	err error
}

type configExistsKey struct {
	project  string
	branch   string
	fileName string
}

// Loader is the request-scoped Config Loader. Create one per outer
// resolution (IsSubmittable call, FileStatuses call, ...); never share
// one across requests — it is not safe for concurrent use by design,
// trading cross-request cache reuse for a much simpler invalidation story.
type Loader struct {
	repos    provider.RepositoryProvider
	backendFor BackendFor
	log      *logrus.Entry

	openRepos map[string]provider.Repo
	sticky    map[branchKey]provider.ObjectId
	cache     map[cacheKeyT]cacheEntry

	configExists map[configExistsKey]bool
}

type cacheKeyT struct {
	key      ownersconfig.Key
	revision provider.ObjectId
}

// New creates a Loader scoped to one resolution.
func New(repos provider.RepositoryProvider, backendFor BackendFor, log *logrus.Entry) *Loader {
	return &Loader{
		repos:        repos,
		backendFor:   backendFor,
		log:          log,
		openRepos:    make(map[string]provider.Repo),
		sticky:       make(map[branchKey]provider.ObjectId),
		cache:        make(map[cacheKeyT]cacheEntry),
		configExists: make(map[configExistsKey]bool),
	}
}

// Close releases every repository handle opened by this loader.
func (l *Loader) Close() {
	for _, r := range l.openRepos {
		_ = r.Close()
	}
}

func (l *Loader) repoFor(ctx context.Context, project string) (provider.Repo, error) {
	if r, ok := l.openRepos[project]; ok {
		return r, nil
	}
	r, err := l.repos.OpenRepo(ctx, project)
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.Repository, err, "open repo").WithLocation(project, "", "")
	}
	l.openRepos[project] = r
	return r, nil
}

// stickyRevision returns the revision to use for (project, branch),
// resolving and pinning the branch tip the first time it is asked for.
func (l *Loader) stickyRevision(ctx context.Context, project, branch string) (provider.ObjectId, error) {
	bk := branchKey{project, branch}
	if rev, ok := l.sticky[bk]; ok {
		return rev, nil
	}
	repo, err := l.repoFor(ctx, project)
	if err != nil {
		return "", err
	}
	rev, ok, err := l.repos.ResolveRef(ctx, repo, refNameFor(branch))
	if err != nil {
		return "", ownererrors.Wrap(ownererrors.Repository, err, "resolve branch tip").WithLocation(project, branch, "")
	}
	if !ok {
		return "", ownererrors.Newf(ownererrors.Repository, "branch %q not found in %q", branch, project).WithLocation(project, branch, "")
	}
	l.sticky[bk] = rev
	return rev, nil
}

// refNameFor turns a bare branch name into its "refs/heads/..." form;
// branch values that are already full ref names (e.g. the default
// config branch "refs/meta/config") pass through unchanged.
func refNameFor(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}

// Load returns the parsed config at key, or (nil, nil) if no such file
// exists. When revision is non-empty it is used as-is and also recorded
// as the sticky revision for (key.Project, key.Branch) if none is
// recorded yet; otherwise the sticky/tip revision is used.
func (l *Loader) Load(ctx context.Context, key ownersconfig.Key, revision provider.ObjectId) (*ownersconfig.CodeOwnerConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, ownererrors.Wrap(ownererrors.Canceled, err, "load canceled")
	}

	rev := revision
	if rev == "" {
		r, err := l.stickyRevision(ctx, key.Project, key.Branch)
		if err != nil {
			return nil, err
		}
		rev = r
	} else {
		bk := branchKey{key.Project, key.Branch}
		if _, ok := l.sticky[bk]; !ok {
			l.sticky[bk] = rev
		}
	}

	ck := cacheKeyT{key: key, revision: rev}
	if entry, ok := l.cache[ck]; ok {
		return entry.cfg, entry.err
	}

	cfg, err := l.loadUncached(ctx, key, rev)
	l.cache[ck] = cacheEntry{cfg: cfg, err: err}
	return cfg, err
}

// AnyConfigExists reports whether any file named fileName exists anywhere
// in (project, branch)'s tree at its sticky revision — spec §4.6's
// branchHasAnyOwnerConfig() bootstrapping predicate, which is evaluated
// once for the whole branch and is independent of any single path's own
// ancestor walk. The answer is computed with a single tree walk and
// cached per (project, branch, fileName) for the life of this Loader.
func (l *Loader) AnyConfigExists(ctx context.Context, project, branch, fileName string) (bool, error) {
	ck := configExistsKey{project: project, branch: branch, fileName: fileName}
	if found, ok := l.configExists[ck]; ok {
		return found, nil
	}

	rev, err := l.stickyRevision(ctx, project, branch)
	if err != nil {
		return false, err
	}
	repo, err := l.repoFor(ctx, project)
	if err != nil {
		return false, err
	}

	iter, err := l.repos.WalkTree(ctx, repo, rev, "")
	if err != nil {
		return false, ownererrors.Wrap(ownererrors.Repository, err, "walk tree").WithLocation(project, branch, "")
	}

	found := false
	for {
		p, _, ok := iter()
		if !ok {
			break
		}
		if path.Base(p) == fileName {
			found = true
			break
		}
	}

	l.configExists[ck] = found
	return found, nil
}

func (l *Loader) loadUncached(ctx context.Context, key ownersconfig.Key, rev provider.ObjectId) (*ownersconfig.CodeOwnerConfig, error) {
	repo, err := l.repoFor(ctx, key.Project)
	if err != nil {
		return nil, err
	}

	blobPath := path.Join(key.FolderPath, key.FileName)
	b, ok, err := l.repos.ReadBlob(ctx, repo, rev, blobPath)
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.Repository, err, "read blob").WithLocation(key.Project, key.Branch, blobPath)
	}
	if !ok {
		return nil, nil
	}

	backend, err := l.backendFor(key)
	if err != nil {
		return nil, ownererrors.Wrap(ownererrors.PolicyInvalid, err, "resolve backend").WithLocation(key.Project, key.Branch, blobPath)
	}

	cfg, err := backend.Parse(b)
	if err != nil {
		var oe *ownererrors.Error
		if ownererrors.As(err, &oe) {
			return nil, oe.WithLocation(key.Project, key.Branch, blobPath)
		}
		return nil, ownererrors.Wrap(ownererrors.ConfigInvalid, err, "parse OWNERS file").WithLocation(key.Project, key.Branch, blobPath)
	}
	cfg.Revision = string(rev)

	l.log.WithFields(logrus.Fields{
		"project": key.Project,
		"branch":  key.Branch,
		"path":    blobPath,
		"sets":    len(cfg.CodeOwnerSets),
	}).Debug("loaded OWNERS config")

	return cfg, nil
}
