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
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/ownererrors"
	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/pathmatch"
)

// findOwnersBackend implements the bit-exact find-owners grammar from
// spec §6: UTF-8, newline-terminated, '#' comments, and five directive
// shapes (set noparent, include/file:, per-file, an email, or "*").
type findOwnersBackend struct{}

func (findOwnersBackend) Name() string                    { return "find-owners" }
func (findOwnersBackend) PathDialect() pathmatch.Dialect   { return pathmatch.SimpleExtension }

func (findOwnersBackend) Parse(b []byte) (*ownersconfig.CodeOwnerConfig, error) {
	cfg := &ownersconfig.CodeOwnerConfig{}

	var globalSet *ownersconfig.CodeOwnerSet
	ensureGlobal := func() *ownersconfig.CodeOwnerSet {
		if globalSet == nil {
			cfg.CodeOwnerSets = append(cfg.CodeOwnerSets, ownersconfig.CodeOwnerSet{
				CodeOwners: sets.NewString(),
			})
			globalSet = &cfg.CodeOwnerSets[len(cfg.CodeOwnerSets)-1]
		}
		return globalSet
	}

	lines := strings.Split(string(b), "\n")
	for lineNo, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case line == "set noparent":
			cfg.IgnoreParentCodeOwners = true

		case strings.HasPrefix(line, "include "):
			ref := ParseRef(strings.TrimSpace(strings.TrimPrefix(line, "include ")), ownersconfig.All)
			cfg.Imports = append(cfg.Imports, ref)

		case strings.HasPrefix(line, "file:"):
			ref := ParseRef(strings.TrimSpace(strings.TrimPrefix(line, "file:")), ownersconfig.All)
			cfg.Imports = append(cfg.Imports, ref)

		case strings.HasPrefix(line, "per-file "):
			set, err := parsePerFile(strings.TrimPrefix(line, "per-file "))
			if err != nil {
				return nil, &ownererrors.Error{
					Kind:    ownererrors.ConfigInvalid,
					Line:    lineNo + 1,
					Message: err.Error(),
				}
			}
			cfg.CodeOwnerSets = append(cfg.CodeOwnerSets, set)

		case line == "*":
			ensureGlobal().CodeOwners.Insert(string(ownersconfig.AllUsers))

		default:
			// a bare email address
			ensureGlobal().CodeOwners.Insert(line)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ownererrors.Error{Kind: ownererrors.ConfigInvalid, Message: err.Error()}
	}
	return cfg, nil
}

func parsePerFile(rest string) (ownersconfig.CodeOwnerSet, error) {
	idx := strings.Index(rest, "=")
	if idx < 0 {
		return ownersconfig.CodeOwnerSet{}, fmt.Errorf("per-file directive missing '=': %q", rest)
	}
	globsPart, valuePart := strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+1:])
	if globsPart == "" {
		return ownersconfig.CodeOwnerSet{}, fmt.Errorf("per-file directive has no path expressions")
	}

	exprs := sets.NewString()
	for _, g := range strings.Split(globsPart, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			exprs.Insert(g)
		}
	}

	set := ownersconfig.CodeOwnerSet{PathExpressions: exprs}

	switch {
	case valuePart == "set noparent":
		set.IgnoreGlobalAndParentCodeOwners = true
	case strings.HasPrefix(valuePart, "file="):
		ref := ParseRef(strings.TrimPrefix(valuePart, "file="), ownersconfig.GlobalOnly)
		set.Imports = []ownersconfig.ConfigRef{ref}
	default:
		owners := sets.NewString()
		for _, e := range strings.Split(valuePart, ",") {
			e = strings.TrimSpace(e)
			if e != "" {
				owners.Insert(e)
			}
		}
		set.CodeOwners = owners
	}
	return set, nil
}

func (findOwnersBackend) Format(c *ownersconfig.CodeOwnerConfig) ([]byte, error) {
	var b strings.Builder

	if c.IgnoreParentCodeOwners {
		b.WriteString("set noparent\n")
	}
	for _, ref := range c.Imports {
		b.WriteString("include ")
		b.WriteString(FormatRef(ref))
		b.WriteString("\n")
	}
	for _, set := range c.CodeOwnerSets {
		if set.IsGlobal() {
			for _, owner := range sortedList(set.CodeOwners) {
				b.WriteString(owner)
				b.WriteString("\n")
			}
			continue
		}
		globs := strings.Join(sortedList(set.PathExpressions), ",")
		b.WriteString("per-file ")
		b.WriteString(globs)
		b.WriteString("=")
		switch {
		case set.IgnoreGlobalAndParentCodeOwners:
			b.WriteString("set noparent")
		case len(set.Imports) == 1 && set.CodeOwners.Len() == 0:
			b.WriteString("file=")
			b.WriteString(FormatRef(set.Imports[0]))
		default:
			b.WriteString(strings.Join(sortedList(set.CodeOwners), ","))
		}
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

func sortedList(s sets.String) []string {
	l := s.List()
	sort.Strings(l)
	return l
}
