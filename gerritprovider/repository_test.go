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

package gerritprovider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"

	"github.com/clarketm/codeowners/provider"
)

func commitFile(t *testing.T, wt *git.Worktree, dir, relPath, content, message string) *object.Commit {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := wt.Add(relPath); err != nil {
		t.Fatalf("git add: %v", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@x.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("git commit: %v", err)
	}
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("reopen repo: %v", err)
	}
	obj, err := repo.CommitObject(hash)
	if err != nil {
		t.Fatalf("load commit object: %v", err)
	}
	return obj
}

func newTestRepoHandle(t *testing.T) (*RepositoryProvider, repoHandle, *object.Commit, *object.Commit) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("git init: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}

	c1 := commitFile(t, wt, dir, "OWNERS", "alice@x.com\n", "add OWNERS")
	c2 := commitFile(t, wt, dir, "OWNERS", "alice@x.com\nbob@x.com\n", "add bob")

	p := &RepositoryProvider{log: logrus.NewEntry(logrus.New()), repos: map[string]*git.Repository{}}
	return p, repoHandle{project: "proj1", repo: repo}, c1, c2
}

func TestReadBlobReturnsContentAtRevision(t *testing.T) {
	p, h, c1, c2 := newTestRepoHandle(t)
	ctx := context.Background()

	b, ok, err := p.ReadBlob(ctx, h, provider.ObjectId(c1.Hash.String()), "/OWNERS")
	if err != nil || !ok {
		t.Fatalf("ReadBlob at c1: ok=%v err=%v", ok, err)
	}
	if string(b) != "alice@x.com\n" {
		t.Errorf("expected c1 content, got %q", b)
	}

	b, ok, err = p.ReadBlob(ctx, h, provider.ObjectId(c2.Hash.String()), "/OWNERS")
	if err != nil || !ok {
		t.Fatalf("ReadBlob at c2: ok=%v err=%v", ok, err)
	}
	if string(b) != "alice@x.com\nbob@x.com\n" {
		t.Errorf("expected c2 content, got %q", b)
	}
}

func TestReadBlobMissingFileReturnsNotFound(t *testing.T) {
	p, h, c1, _ := newTestRepoHandle(t)
	_, ok, err := p.ReadBlob(context.Background(), h, provider.ObjectId(c1.Hash.String()), "/NO_SUCH_FILE")
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if ok {
		t.Errorf("expected missing file to report ok=false")
	}
}

func TestWalkTreeVisitsEveryFile(t *testing.T) {
	p, h, _, c2 := newTestRepoHandle(t)
	iter, err := p.WalkTree(context.Background(), h, provider.ObjectId(c2.Hash.String()), "")
	if err != nil {
		t.Fatalf("WalkTree: %v", err)
	}

	var paths []string
	for {
		path, _, ok := iter()
		if !ok {
			break
		}
		paths = append(paths, path)
	}
	if len(paths) != 1 || paths[0] != "/OWNERS" {
		t.Errorf("expected [/OWNERS], got %+v", paths)
	}
}

func TestDiffReportsModifiedFile(t *testing.T) {
	p, h, c1, c2 := newTestRepoHandle(t)
	changes, err := p.Diff(context.Background(), h, provider.ObjectId(c2.Hash.String()), provider.ObjectId(c1.Hash.String()), false)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected one changed file, got %+v", changes)
	}
	if changes[0].NewPath == nil || *changes[0].NewPath != "/OWNERS" {
		t.Errorf("expected NewPath /OWNERS, got %+v", changes[0])
	}
}
