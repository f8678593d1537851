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

// Package ownersbackend is the Backend Registry (C3): it parses and
// formats OWNERS-file bytes into the ownersconfig.CodeOwnerConfig model.
// This spec mandates the Backend interface, not any one grammar; the
// find-owners backend below implements the bit-exact grammar from §6.
package ownersbackend

import (
	"fmt"
	"sync"

	"github.com/clarketm/codeowners/ownersconfig"
	"github.com/clarketm/codeowners/pathmatch"
)

// Backend parses and formats one OWNERS grammar.
type Backend interface {
	// Name identifies the backend, e.g. "find-owners" or "proto".
	Name() string
	// Parse turns raw file bytes into a CodeOwnerConfig.
	Parse(b []byte) (*ownersconfig.CodeOwnerConfig, error)
	// Format is the inverse of Parse; Format(Parse(b)) must be
	// equivalent to b up to canonical whitespace for well-formed input.
	Format(c *ownersconfig.CodeOwnerConfig) ([]byte, error)
	// PathDialect names the pathmatch.Dialect this backend's per-file
	// expressions are evaluated with.
	PathDialect() pathmatch.Dialect
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register installs a backend under its own Name(). Intended to be
// called from package init() functions, mirroring the process-wide,
// read-mostly registries elsewhere in the corpus.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends[b.Name()] = b
}

// Get looks up a previously registered backend by name.
func Get(name string) (Backend, error) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("ownersbackend: unknown backend %q", name)
	}
	return b, nil
}

func init() {
	Register(findOwnersBackend{})
}
