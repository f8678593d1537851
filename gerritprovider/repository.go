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

// Package gerritprovider implements the engine's two external
// collaborators (provider.RepositoryProvider, provider.AccountProvider)
// against a real Gerrit host: repository access through a local bare
// clone via go-git, and identities/submit records through Gerrit's REST
// API via go-gerrit.
package gerritprovider

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	httptransport "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/provider"
)

// RepositoryProvider clones each requested project into a local mirror
// on first use, the way ConfigButler's internal/git package keeps a
// single long-lived clone per destination and reuses it across calls.
type RepositoryProvider struct {
	gerritURL string
	auth      transport.AuthMethod
	cloneDir  string
	log       *logrus.Entry

	mu    sync.Mutex
	repos map[string]*git.Repository
}

// NewRepositoryProvider builds a provider that mirrors projects from
// gerritURL (e.g. "https://gerrit.example.com") under cloneDir.
func NewRepositoryProvider(gerritURL, cloneDir string, auth transport.AuthMethod, log *logrus.Entry) *RepositoryProvider {
	return &RepositoryProvider{
		gerritURL: strings.TrimSuffix(gerritURL, "/"),
		auth:      auth,
		cloneDir:  cloneDir,
		log:       log,
		repos:     make(map[string]*git.Repository),
	}
}

// BasicAuth builds an http.BasicAuth suitable for NewRepositoryProvider
// from an HTTP password generated in the Gerrit UI.
func BasicAuth(username, password string) transport.AuthMethod {
	return &httptransport.BasicAuth{Username: username, Password: password}
}

type repoHandle struct {
	project string
	repo    *git.Repository
}

func (repoHandle) Close() error { return nil }

// OpenRepo returns a handle to project's mirror, cloning it as a bare
// mirror on first use.
func (p *RepositoryProvider) OpenRepo(ctx context.Context, project string) (provider.Repo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if repo, ok := p.repos[project]; ok {
		return repoHandle{project: project, repo: repo}, nil
	}

	url := fmt.Sprintf("%s/%s", p.gerritURL, project)
	dir := path.Join(p.cloneDir, sanitizeProject(project))

	repo, err := git.PlainOpen(dir)
	if err == git.ErrRepositoryNotExists {
		p.log.WithFields(logrus.Fields{"project": project, "dir": dir}).Info("cloning project mirror")
		repo, err = git.PlainCloneContext(ctx, dir, true, &git.CloneOptions{
			URL:  url,
			Auth: p.auth,
		})
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open or clone %q", project)
	}

	p.repos[project] = repo
	return repoHandle{project: project, repo: repo}, nil
}

func sanitizeProject(project string) string {
	return strings.ReplaceAll(project, "/", "__")
}

// fetchIfMissing fetches the mirror when a ref cannot be resolved
// locally, mirroring shallowPull's retry-on-miss shape.
func (p *RepositoryProvider) fetchIfMissing(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       p.auth,
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return pkgerrors.Wrap(err, "fetch project mirror")
	}
	return nil
}

// ResolveRef resolves refName to its current tip, fetching once if it
// is not yet known locally.
func (p *RepositoryProvider) ResolveRef(ctx context.Context, repo provider.Repo, refName string) (provider.ObjectId, bool, error) {
	h := repo.(repoHandle)

	ref, err := h.repo.Reference(plumbing.ReferenceName(refName), true)
	if err == plumbing.ErrReferenceNotFound {
		if fetchErr := p.fetchIfMissing(ctx, h.repo); fetchErr != nil {
			return "", false, fetchErr
		}
		ref, err = h.repo.Reference(plumbing.ReferenceName(refName), true)
	}
	if err == plumbing.ErrReferenceNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrapf(err, "resolve ref %q in %q", refName, h.project)
	}
	return provider.ObjectId(ref.Hash().String()), true, nil
}

// ReadBlob returns the bytes of filePath as it exists at revision.
func (p *RepositoryProvider) ReadBlob(ctx context.Context, repo provider.Repo, revision provider.ObjectId, filePath string) ([]byte, bool, error) {
	h := repo.(repoHandle)

	commit, err := h.repo.CommitObject(plumbing.NewHash(string(revision)))
	if err != nil {
		return nil, false, pkgerrors.Wrapf(err, "load commit %q in %q", revision, h.project)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "load commit tree")
	}

	f, err := tree.File(strings.TrimPrefix(filePath, "/"))
	if err == object.ErrFileNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrapf(err, "read blob %q", filePath)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "read blob contents")
	}
	return []byte(content), true, nil
}

// WalkTree iterates every regular file in revision's tree, optionally
// restricted to paths matching glob (an empty glob visits everything).
func (p *RepositoryProvider) WalkTree(ctx context.Context, repo provider.Repo, revision provider.ObjectId, glob string) (func() (string, provider.ObjectId, bool), error) {
	h := repo.(repoHandle)

	commit, err := h.repo.CommitObject(plumbing.NewHash(string(revision)))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load commit %q in %q", revision, h.project)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load commit tree")
	}

	walker := object.NewTreeWalker(tree, true, nil)
	return func() (string, provider.ObjectId, bool) {
		for {
			name, entry, err := walker.Next()
			if err != nil {
				walker.Close()
				return "", "", false
			}
			if entry.Mode == filemode.Dir || entry.Mode == filemode.Submodule {
				continue
			}
			absPath := "/" + name
			if glob != "" {
				if ok, _ := path.Match(glob, absPath); !ok {
					continue
				}
			}
			return absPath, provider.ObjectId(entry.Hash.String()), true
		}
	}, nil
}

// Diff reports the files that changed between base and revision
// (base's zero value diffs against revision's first parent, or against
// an empty tree for a root commit). detectRenames coalesces a delete+add
// pair whose blobs are identical into one Rename entry; a file whose
// content also changed stays a delete plus an add. Recompute mode
// (spec §4.5) passes false.
func (p *RepositoryProvider) Diff(ctx context.Context, repo provider.Repo, revision, base provider.ObjectId, detectRenames bool) ([]ownersconfig.ChangedFile, error) {
	h := repo.(repoHandle)

	revCommit, err := h.repo.CommitObject(plumbing.NewHash(string(revision)))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load commit %q in %q", revision, h.project)
	}

	var baseCommit *object.Commit
	if base != "" {
		baseCommit, err = h.repo.CommitObject(plumbing.NewHash(string(base)))
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "load base commit %q in %q", base, h.project)
		}
	} else if revCommit.NumParents() > 0 {
		baseCommit, err = revCommit.Parent(0)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "load first parent commit")
		}
	}

	revTree, err := revCommit.Tree()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load revision tree")
	}
	var baseTree *object.Tree
	if baseCommit != nil {
		baseTree, err = baseCommit.Tree()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "load base tree")
		}
	}

	// go-git's tree diff reports renames as a delete+insert pair; when
	// detectRenames is set they are coalesced below rather than by
	// asking the tree differ itself, since go-git exposes no rename
	// detection knob on DiffTree.
	changes, err := object.DiffTree(baseTree, revTree)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "diff trees")
	}

	out := make([]ownersconfig.ChangedFile, 0, len(changes))
	for _, c := range changes {
		cf, err := changeToChangedFile(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	if detectRenames {
		out = coalesceRenames(changes, out)
	}
	return out, nil
}

// coalesceRenames merges a Delete+Add pair into a single Rename entry
// whenever both sides carry identical blob content, go-git's tree
// differ having no built-in rename detector of its own.
func coalesceRenames(changes object.Changes, files []ownersconfig.ChangedFile) []ownersconfig.ChangedFile {
	type deletion struct {
		index int
		hash  string
	}
	deletions := map[string]deletion{}
	for i, c := range changes {
		if files[i].Kind == ownersconfig.Delete {
			deletions[c.From.TreeEntry.Hash.String()] = deletion{index: i, hash: c.From.TreeEntry.Hash.String()}
		}
	}

	consumed := make(map[int]bool)
	out := make([]ownersconfig.ChangedFile, 0, len(files))
	for i, c := range changes {
		if consumed[i] {
			continue
		}
		if files[i].Kind == ownersconfig.Add {
			if d, ok := deletions[c.To.TreeEntry.Hash.String()]; ok && !consumed[d.index] {
				out = append(out, ownersconfig.ChangedFile{
					OldPath: files[d.index].OldPath,
					NewPath: files[i].NewPath,
					Kind:    ownersconfig.Rename,
				})
				consumed[d.index] = true
				consumed[i] = true
				continue
			}
		}
		out = append(out, files[i])
	}
	return out
}

func changeToChangedFile(c *object.Change) (ownersconfig.ChangedFile, error) {
	action, err := c.Action()
	if err != nil {
		return ownersconfig.ChangedFile{}, pkgerrors.Wrap(err, "determine change action")
	}

	cf := ownersconfig.ChangedFile{}
	if c.From.Name != "" {
		p := "/" + c.From.Name
		cf.OldPath = &p
	}
	if c.To.Name != "" {
		p := "/" + c.To.Name
		cf.NewPath = &p
	}

	switch action {
	case merkletrie.Insert:
		cf.Kind = ownersconfig.Add
	case merkletrie.Delete:
		cf.Kind = ownersconfig.Delete
	default:
		if cf.OldPath != nil && cf.NewPath != nil && *cf.OldPath != *cf.NewPath {
			cf.Kind = ownersconfig.Rename
		} else {
			cf.Kind = ownersconfig.Modify
		}
	}
	return cf, nil
}

// AutoMerge synthesizes the auto-merge base for mergeCommit (spec §4.5
// FilesWithConflictResolution strategy: "a synthetic commit... with each
// conflict resolved"): a tree equal to the first parent's, except that
// every path the second parent changed relative to the merge base but
// the first parent left untouched is overridden with the second
// parent's content — the unambiguous part of a three-way merge. go-git
// exposes no content-level (diff3) merge, so a path both parents
// genuinely changed differently keeps the first parent's content,
// approximating git's "-X ours" strategy for real conflicts. Diffing
// mergeCommit against the result therefore surfaces the paths that
// needed conflict resolution, except (rarely) a conflicted path whose
// human-chosen resolution matches "ours" verbatim, which shows no change.
//
// The returned id is a real, freshly written commit backed by a
// synthesized tree object, not merely the nearest common ancestor: using
// the ancestor directly as the diff base (an earlier version of this
// method did) surfaces every file either side ever touched since the
// branches forked, not just the conflict-relevant ones.
func (p *RepositoryProvider) AutoMerge(ctx context.Context, repo provider.Repo, mergeCommit provider.ObjectId) (provider.ObjectId, error) {
	h := repo.(repoHandle)

	commit, err := h.repo.CommitObject(plumbing.NewHash(string(mergeCommit)))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "load merge commit %q in %q", mergeCommit, h.project)
	}
	if commit.NumParents() < 2 {
		return "", pkgerrors.Errorf("commit %q is not a merge commit", mergeCommit)
	}

	p1, err := commit.Parent(0)
	if err != nil {
		return "", pkgerrors.Wrap(err, "load first parent")
	}
	p2, err := commit.Parent(1)
	if err != nil {
		return "", pkgerrors.Wrap(err, "load second parent")
	}

	bases, err := p1.MergeBase(p2)
	if err != nil {
		return "", pkgerrors.Wrap(err, "compute merge base")
	}
	if len(bases) == 0 {
		return "", pkgerrors.Errorf("no merge base between parents of %q", mergeCommit)
	}

	baseTree, err := bases[0].Tree()
	if err != nil {
		return "", pkgerrors.Wrap(err, "load merge base tree")
	}
	p1Tree, err := p1.Tree()
	if err != nil {
		return "", pkgerrors.Wrap(err, "load first parent tree")
	}
	p2Tree, err := p2.Tree()
	if err != nil {
		return "", pkgerrors.Wrap(err, "load second parent tree")
	}

	p1Changes, err := object.DiffTree(baseTree, p1Tree)
	if err != nil {
		return "", pkgerrors.Wrap(err, "diff merge base against first parent")
	}
	touchedByP1 := make(map[string]bool, len(p1Changes))
	for _, c := range p1Changes {
		touchedByP1[changePath(c)] = true
	}

	p2Changes, err := object.DiffTree(baseTree, p2Tree)
	if err != nil {
		return "", pkgerrors.Wrap(err, "diff merge base against second parent")
	}

	paths := map[string]*object.TreeEntry{}
	for _, c := range p2Changes {
		p := changePath(c)
		if touchedByP1[p] {
			continue // both sides touched p: keep p1's ("ours") content
		}
		if c.To.Name == "" {
			paths[p] = nil // p2 deleted a file p1 never touched
			continue
		}
		entry := c.To.TreeEntry
		paths[p] = &entry
	}

	treeHash, err := overlayTree(h.repo.Storer, p1Tree, paths)
	if err != nil {
		return "", pkgerrors.Wrap(err, "synthesize auto-merge tree")
	}

	synthetic := &object.Commit{
		Author:       commit.Author,
		Committer:    commit.Committer,
		Message:      fmt.Sprintf("autogenerated auto-merge base for %s", mergeCommit),
		TreeHash:     treeHash,
		ParentHashes: []plumbing.Hash{p1.Hash, p2.Hash},
	}
	obj := h.repo.Storer.NewEncodedObject()
	if err := synthetic.Encode(obj); err != nil {
		return "", pkgerrors.Wrap(err, "encode auto-merge commit")
	}
	hash, err := h.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", pkgerrors.Wrap(err, "store auto-merge commit")
	}
	return provider.ObjectId(hash.String()), nil
}

// changePath returns the path a tree change applies to, preferring the
// destination name (present for adds/modifies) and falling back to the
// source name for deletes.
func changePath(c *object.Change) string {
	if c.To.Name != "" {
		return c.To.Name
	}
	return c.From.Name
}

// overlayTree returns the hash of a tree equal to base except that every
// path in overrides is set to the given entry, or removed if the entry
// is nil. Only the ancestor directories of an overridden path are
// rewritten; every other subtree is reused unchanged by hash.
func overlayTree(storer storage.Storer, base *object.Tree, overrides map[string]*object.TreeEntry) (plumbing.Hash, error) {
	if len(overrides) == 0 {
		return base.Hash, nil
	}

	byTopSegment := map[string]map[string]*object.TreeEntry{}
	for p, entry := range overrides {
		head, rest, nested := strings.Cut(p, "/")
		if !nested {
			byTopSegment[head] = map[string]*object.TreeEntry{"": entry}
			continue
		}
		if byTopSegment[head] == nil {
			byTopSegment[head] = map[string]*object.TreeEntry{}
		}
		byTopSegment[head][rest] = entry
	}

	entryByName := map[string]object.TreeEntry{}
	for _, e := range base.Entries {
		entryByName[e.Name] = e
	}

	for name, rest := range byTopSegment {
		if direct, ok := rest[""]; ok && len(rest) == 1 {
			if direct == nil {
				delete(entryByName, name)
			} else {
				e := *direct
				e.Name = name
				entryByName[name] = e
			}
			continue
		}

		var childTree *object.Tree
		if existing, ok := entryByName[name]; ok && existing.Mode == filemode.Dir {
			t, err := object.GetTree(storer, existing.Hash)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			childTree = t
		} else {
			childTree = &object.Tree{}
		}

		childOverrides := make(map[string]*object.TreeEntry, len(rest))
		for p, entry := range rest {
			childOverrides[p] = entry
		}
		childHash, err := overlayTree(storer, childTree, childOverrides)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entryByName[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: childHash}
	}

	entries := make([]object.TreeEntry, 0, len(entryByName))
	for _, e := range entryByName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	tree := &object.Tree{Entries: entries}
	obj := storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return storer.SetEncodedObject(obj)
}
