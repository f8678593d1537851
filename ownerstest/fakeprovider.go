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

// Package ownerstest provides an in-memory RepositoryProvider fake shared
// by the core packages' tests, in lieu of standing up a real Git repo.
package ownerstest

import (
	"context"
	"path"
	"strings"

	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/provider"
)

type fakeRepoHandle struct{ project string }

func (fakeRepoHandle) Close() error { return nil }

// FakeProvider is a trivial in-memory RepositoryProvider. Each branch's
// ref name doubles as its revision, so distinct branches can carry
// distinct file content without a real Git history.
type FakeProvider struct {
	// Files maps project -> revision (== ref name) -> absolute path -> content.
	Files map[string]map[string]map[string][]byte
	// Diffs maps project -> list of changed files returned by Diff.
	Diffs map[string][]ownersconfig.ChangedFile
	// MissingProjects causes ResolveRef to fail as if the project does
	// not exist.
	MissingProjects map[string]bool
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Files:           map[string]map[string]map[string][]byte{},
		Diffs:           map[string][]ownersconfig.ChangedFile{},
		MissingProjects: map[string]bool{},
	}
}

// PutFile stores content for absPath on branch within project. A plain
// branch name ("master") and its ref form ("refs/heads/master") are
// equivalent; PutFile accepts either.
func (p *FakeProvider) PutFile(project, branch, absPath string, content []byte) {
	ref := toRefName(branch)
	if p.Files[project] == nil {
		p.Files[project] = map[string]map[string][]byte{}
	}
	if p.Files[project][ref] == nil {
		p.Files[project][ref] = map[string][]byte{}
	}
	p.Files[project][ref][path.Clean("/"+absPath)] = content
}

// DeleteFile removes a file previously stored with PutFile.
func (p *FakeProvider) DeleteFile(project, branch, absPath string) {
	ref := toRefName(branch)
	if p.Files[project] == nil || p.Files[project][ref] == nil {
		return
	}
	delete(p.Files[project][ref], path.Clean("/"+absPath))
}

func toRefName(branch string) string {
	if branch == "" || strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}

func (p *FakeProvider) OpenRepo(ctx context.Context, project string) (provider.Repo, error) {
	return fakeRepoHandle{project: project}, nil
}

func (p *FakeProvider) ResolveRef(ctx context.Context, repo provider.Repo, refName string) (provider.ObjectId, bool, error) {
	h := repo.(fakeRepoHandle)
	if p.MissingProjects[h.project] {
		return "", false, nil
	}
	return provider.ObjectId(refName), true, nil
}

func (p *FakeProvider) ReadBlob(ctx context.Context, repo provider.Repo, revision provider.ObjectId, filePath string) ([]byte, bool, error) {
	h := repo.(fakeRepoHandle)
	byRev := p.Files[h.project]
	if byRev == nil {
		return nil, false, nil
	}
	files := byRev[string(revision)]
	if files == nil {
		return nil, false, nil
	}
	b, ok := files[path.Clean("/"+filePath)]
	return b, ok, nil
}

func (p *FakeProvider) WalkTree(ctx context.Context, repo provider.Repo, revision provider.ObjectId, glob string) (func() (string, provider.ObjectId, bool), error) {
	h := repo.(fakeRepoHandle)
	files := p.Files[h.project][string(revision)]
	paths := make([]string, 0, len(files))
	for pth := range files {
		paths = append(paths, pth)
	}
	i := 0
	return func() (string, provider.ObjectId, bool) {
		if i >= len(paths) {
			return "", "", false
		}
		pth := paths[i]
		i++
		return pth, revision, true
	}, nil
}

func (p *FakeProvider) Diff(ctx context.Context, repo provider.Repo, revision, base provider.ObjectId, detectRenames bool) ([]ownersconfig.ChangedFile, error) {
	h := repo.(fakeRepoHandle)
	return p.Diffs[h.project], nil
}

func (p *FakeProvider) AutoMerge(ctx context.Context, repo provider.Repo, mergeCommit provider.ObjectId) (provider.ObjectId, error) {
	return "AUTOMERGE", nil
}
