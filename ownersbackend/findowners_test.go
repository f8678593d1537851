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

package ownersbackend

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/ownersconfig"
)

func TestFindOwnersParse(t *testing.T) {
	input := []byte(`# top level comment
set noparent
include proj2:master:/common/OWNERS
alice@x
*

per-file *.py=bob@x
per-file *.go,*.proto=set noparent
per-file BUILD=file=/tools/OWNERS
`)

	cfg, err := findOwnersBackend{}.Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !cfg.IgnoreParentCodeOwners {
		t.Errorf("expected set noparent to set IgnoreParentCodeOwners")
	}
	if len(cfg.Imports) != 1 || cfg.Imports[0].FilePath != "/common/OWNERS" || cfg.Imports[0].Project != "proj2" || cfg.Imports[0].Branch != "master" {
		t.Errorf("unexpected imports: %+v", cfg.Imports)
	}
	if len(cfg.CodeOwnerSets) != 4 {
		t.Fatalf("expected 4 sets (1 global + 3 per-file), got %d: %+v", len(cfg.CodeOwnerSets), cfg.CodeOwnerSets)
	}

	global := cfg.CodeOwnerSets[0]
	if !global.IsGlobal() {
		t.Errorf("first set should be global")
	}
	if !global.CodeOwners.HasAll("alice@x", "*") {
		t.Errorf("global set missing owners: %v", global.CodeOwners.List())
	}

	perPy := cfg.CodeOwnerSets[1]
	if !perPy.PathExpressions.Has("*.py") || !perPy.CodeOwners.Has("bob@x") {
		t.Errorf("unexpected per-file *.py set: %+v", perPy)
	}

	perNoParent := cfg.CodeOwnerSets[2]
	if !perNoParent.IgnoreGlobalAndParentCodeOwners {
		t.Errorf("expected per-file noparent set")
	}
	if !perNoParent.PathExpressions.HasAll("*.go", "*.proto") {
		t.Errorf("unexpected globs: %v", perNoParent.PathExpressions.List())
	}

	perImport := cfg.CodeOwnerSets[3]
	if len(perImport.Imports) != 1 || perImport.Imports[0].FilePath != "/tools/OWNERS" {
		t.Errorf("unexpected per-file import: %+v", perImport.Imports)
	}
	if perImport.Imports[0].ImportMode != ownersconfig.GlobalOnly {
		t.Errorf("per-file import must use GLOBAL_ONLY, got %v", perImport.Imports[0].ImportMode)
	}
}

func TestFindOwnersRoundTrip(t *testing.T) {
	input := []byte(`set noparent
include proj2:master:/common/OWNERS
alice@x
bob@x

per-file *.py=carol@x
`)
	cfg, err := findOwnersBackend{}.Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := findOwnersBackend{}.Format(cfg)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	reparsed, err := findOwnersBackend{}.Parse(out)
	if err != nil {
		t.Fatalf("Parse(Format(...)): %v, output was:\n%s", err, out)
	}
	if diff := cmp.Diff(cfg, reparsed, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Format(Parse(x)) round trip changed the model (-want +got):\n%s", diff)
	}
}

func TestFindOwnersInvalidPerFile(t *testing.T) {
	_, err := findOwnersBackend{}.Parse([]byte("per-file no-equals-sign\n"))
	if err == nil {
		t.Fatalf("expected parse error for malformed per-file directive")
	}
}

func TestPerFileImportMustBeGlobalOnly(t *testing.T) {
	set := ownersconfig.CodeOwnerSet{
		PathExpressions: sets.NewString("*.py"),
		Imports:         []ownersconfig.ConfigRef{{FilePath: "x", ImportMode: ownersconfig.All}},
	}
	if err := set.Validate(); err == nil {
		t.Errorf("expected validation error for non-GLOBAL_ONLY per-file import")
	}
}
