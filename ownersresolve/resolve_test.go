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

package ownersresolve

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/clarketm/codeowners/ownersbackend"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/ownersload"
	"github.com/clarketm/codeowners/ownerstest"
	"github.com/clarketm/codeowners/pathmatch"
)

func newLoader(p *ownerstest.FakeProvider) *ownersload.Loader {
	backendFor := func(ownersconfig.Key) (ownersbackend.Backend, error) {
		return ownersbackend.Get("find-owners")
	}
	return ownersload.New(p, backendFor, logrus.NewEntry(logrus.New()))
}

func TestResolvePerFileFilter(t *testing.T) {
	p := ownerstest.NewFakeProvider()
	p.PutFile("proj1", "master", "/sub/OWNERS", []byte("alice@x\nper-file *.py=bob@x\n"))

	loader := newLoader(p)
	key := ownersconfig.Key{Project: "proj1", Branch: "master", FolderPath: "/sub", FileName: "OWNERS"}
	cfg, err := loader.Load(context.Background(), key, "")
	if err != nil || cfg == nil {
		t.Fatalf("Load: %v, cfg=%v", err, cfg)
	}

	res, err := Resolve(context.Background(), loader, pathmatch.SimpleExtension, key, cfg, "/sub/s.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Config.CodeOwnerSets) != 1 {
		t.Fatalf("expected only the global set to survive for s.go, got %+v", res.Config.CodeOwnerSets)
	}

	res, err = Resolve(context.Background(), loader, pathmatch.SimpleExtension, key, cfg, "/sub/s.py")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Config.CodeOwnerSets) != 2 {
		t.Fatalf("expected global + per-file set to survive for s.py, got %+v", res.Config.CodeOwnerSets)
	}
}

func TestResolveIgnoreParentFromPerFile(t *testing.T) {
	p := ownerstest.NewFakeProvider()
	p.PutFile("proj1", "master", "/sub/OWNERS", []byte("alice@x\nper-file *.py=set noparent\nper-file *.py=bob@x\n"))

	loader := newLoader(p)
	key := ownersconfig.Key{Project: "proj1", Branch: "master", FolderPath: "/sub", FileName: "OWNERS"}
	cfg, err := loader.Load(context.Background(), key, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	res, err := Resolve(context.Background(), loader, pathmatch.SimpleExtension, key, cfg, "/sub/s.py")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Config.IgnoreParentCodeOwners {
		t.Errorf("expected ignoreParentCodeOwners to propagate from per-file noparent set")
	}
	for _, set := range res.Config.CodeOwnerSets {
		if set.IsGlobal() {
			t.Errorf("global set must be dropped once a per-file noparent set matches: %+v", res.Config.CodeOwnerSets)
		}
	}
}

func TestResolveGlobalImport(t *testing.T) {
	p := ownerstest.NewFakeProvider()
	p.PutFile("proj1", "master", "/sub/OWNERS", []byte("include /common/OWNERS\nalice@x\n"))
	p.PutFile("proj1", "master", "/common/OWNERS", []byte("carol@x\n"))

	loader := newLoader(p)
	key := ownersconfig.Key{Project: "proj1", Branch: "master", FolderPath: "/sub", FileName: "OWNERS"}
	cfg, err := loader.Load(context.Background(), key, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, err := Resolve(context.Background(), loader, pathmatch.SimpleExtension, key, cfg, "/sub/s.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	found := false
	for _, set := range res.Config.CodeOwnerSets {
		if set.CodeOwners.Has("carol@x") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected imported global owner to be present: %+v", res.Config.CodeOwnerSets)
	}
}

func TestResolveUnresolvedImportNeverFails(t *testing.T) {
	p := ownerstest.NewFakeProvider()
	p.PutFile("proj1", "master", "/OWNERS", []byte("include proj2:master:/OWNERS\nalice@x\n"))
	p.MissingProjects["proj2"] = true

	loader := newLoader(p)
	key := ownersconfig.Key{Project: "proj1", Branch: "master", FolderPath: "", FileName: "OWNERS"}
	cfg, err := loader.Load(context.Background(), key, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, err := Resolve(context.Background(), loader, pathmatch.SimpleExtension, key, cfg, "/a.txt")
	if err != nil {
		t.Fatalf("Resolve must not fail on an unresolved import: %v", err)
	}
	if len(res.Unresolved) != 1 {
		t.Fatalf("expected exactly one unresolved import, got %+v", res.Unresolved)
	}
	if res.Unresolved[0].Reason != "project not found" {
		t.Errorf("unexpected reason: %q", res.Unresolved[0].Reason)
	}
}

func TestResolveImportCycle(t *testing.T) {
	p := ownerstest.NewFakeProvider()
	p.PutFile("proj1", "master", "/OWNERS", []byte("include proj1:master:/sub/OWNERS\nalice@x\n"))
	p.PutFile("proj1", "master", "/sub/OWNERS", []byte("include proj1:master:/OWNERS\nbob@x\n"))

	loader := newLoader(p)
	key := ownersconfig.Key{Project: "proj1", Branch: "master", FolderPath: "", FileName: "OWNERS"}
	cfg, err := loader.Load(context.Background(), key, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, err := Resolve(context.Background(), loader, pathmatch.SimpleExtension, key, cfg, "/a.txt")
	if err != nil {
		t.Fatalf("Resolve must terminate on a cycle, not fail: %v", err)
	}
	owners := []string{}
	for _, set := range res.Config.CodeOwnerSets {
		owners = append(owners, set.CodeOwners.List()...)
	}
	if len(owners) == 0 {
		t.Errorf("expected owners to be collected despite the cycle")
	}
}
