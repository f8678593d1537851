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

package changedfiles

import (
	"context"
	"testing"

	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/ownerstest"
	"github.com/clarketm/codeowners/provider"
)

func strp(s string) *string { return &s }

type fromCacheFake struct {
	files []ownersconfig.ChangedFile
	found bool
}

func (f *fromCacheFake) Lookup(ctx context.Context, project string, revision provider.ObjectId, parentNumber *int) ([]ownersconfig.ChangedFile, bool, error) {
	return f.files, f.found, nil
}

func TestRecomputeStripsMetaAndSkipsRenameDetection(t *testing.T) {
	p := ownerstest.NewFakeProvider()
	p.Diffs["proj1"] = []ownersconfig.ChangedFile{
		{NewPath: strp("/COMMIT_MSG"), Kind: ownersconfig.Add},
		{NewPath: strp("/a.txt"), Kind: ownersconfig.Modify},
	}
	repo, _ := p.OpenRepo(context.Background(), "proj1")

	out, err := Recompute(context.Background(), p, "proj1", repo, "REV", AllChangedFiles)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if len(out) != 1 || *out[0].NewPath != "/a.txt" {
		t.Fatalf("expected only /a.txt to survive, got %+v", out)
	}
}

func TestRecomputeUsesAutoMergeForConflictResolutionStrategy(t *testing.T) {
	p := ownerstest.NewFakeProvider()
	p.Diffs["proj1"] = []ownersconfig.ChangedFile{{NewPath: strp("/b.txt"), Kind: ownersconfig.Add}}
	repo, _ := p.OpenRepo(context.Background(), "proj1")

	out, err := Recompute(context.Background(), p, "proj1", repo, "MERGE_REV", FilesWithConflictResolution)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one changed file, got %+v", out)
	}
}

func TestFromCacheSortsAndStripsMeta(t *testing.T) {
	cache := &fromCacheFake{
		files: []ownersconfig.ChangedFile{
			{NewPath: strp("/z.txt"), Kind: ownersconfig.Add},
			{NewPath: strp("/MERGE_LIST"), Kind: ownersconfig.Add},
			{NewPath: strp("/a.txt"), Kind: ownersconfig.Add},
		},
		found: true,
	}

	out, err := FromCache(context.Background(), cache, "proj1", "REV", nil)
	if err != nil {
		t.Fatalf("FromCache: %v", err)
	}
	if len(out) != 2 || *out[0].NewPath != "/a.txt" || *out[1].NewPath != "/z.txt" {
		t.Fatalf("expected sorted [a.txt z.txt], got %+v", out)
	}
}

func TestFromCacheMissReturnsError(t *testing.T) {
	cache := &fromCacheFake{found: false}
	_, err := FromCache(context.Background(), cache, "proj1", "REV", nil)
	if err == nil {
		t.Fatalf("expected an error for an uncached revision")
	}
}
