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

package accountresolve

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clarketm/codeowners/provider"
)

type fakeAccounts struct {
	byEmail    map[string][]provider.AccountId
	accounts   map[provider.AccountId]*provider.Account
	visible    map[provider.AccountId]bool
	secondary  map[string]bool
	canModify  bool
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byEmail:   map[string][]provider.AccountId{},
		accounts:  map[provider.AccountId]*provider.Account{},
		visible:   map[provider.AccountId]bool{},
		secondary: map[string]bool{},
	}
}

func (f *fakeAccounts) add(id provider.AccountId, primary string, active bool, secondaries ...string) {
	f.accounts[id] = &provider.Account{ID: id, PrimaryEmail: primary, SecondaryEmails: secondaries, Active: active}
	f.byEmail[primary] = append(f.byEmail[primary], id)
	for _, s := range secondaries {
		f.byEmail[s] = append(f.byEmail[s], id)
	}
	f.visible[id] = true
}

func (f *fakeAccounts) LookupByEmail(ctx context.Context, email string) ([]provider.AccountId, error) {
	return f.byEmail[email], nil
}
func (f *fakeAccounts) Get(ctx context.Context, id provider.AccountId) (*provider.Account, bool, error) {
	a, ok := f.accounts[id]
	return a, ok, nil
}
func (f *fakeAccounts) CanSee(ctx context.Context, viewer, id provider.AccountId) (bool, error) {
	return f.visible[id], nil
}
func (f *fakeAccounts) HasSecondaryEmail(ctx context.Context, viewer provider.AccountId, email string) (bool, error) {
	return f.secondary[email], nil
}
func (f *fakeAccounts) HasGlobalCapability(ctx context.Context, viewer provider.AccountId, capability string) (bool, error) {
	return f.canModify, nil
}
func (f *fakeAccounts) IsProjectOwner(ctx context.Context, viewer provider.AccountId, project string) (bool, error) {
	return false, nil
}

func newResolver(f *fakeAccounts) *Resolver {
	return New(f, logrus.NewEntry(logrus.New()))
}

func TestResolveWildcard(t *testing.T) {
	f := newFakeAccounts()
	r := newResolver(f)
	res, err := r.ResolveSet(context.Background(), sets.NewString("*"), Options{})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if !res.OwnedByAllUsers {
		t.Errorf("expected ownedByAllUsers=true for wildcard")
	}
	if res.Owners.Len() != 0 {
		t.Errorf("wildcard must not resolve to a concrete account")
	}
}

func TestResolveDomainAllowList(t *testing.T) {
	f := newFakeAccounts()
	f.add("1", "alice@allowed.com", true)
	r := newResolver(f)

	res, err := r.ResolveSet(context.Background(), sets.NewString("alice@allowed.com"), Options{AllowedEmailDomains: sets.NewString("allowed.com")})
	if err != nil || res.HasUnresolved {
		t.Fatalf("expected allowed domain to resolve, got %+v err=%v", res, err)
	}

	res, err = r.ResolveSet(context.Background(), sets.NewString("alice@allowed.com"), Options{AllowedEmailDomains: sets.NewString("other.com")})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if !res.HasUnresolved {
		t.Errorf("expected domain outside allow-list to be unresolved")
	}
}

func TestResolveAmbiguousAndInactive(t *testing.T) {
	f := newFakeAccounts()
	f.add("1", "dup@x.com", true)
	f.add("2", "dup@x.com", true)
	f.add("3", "inactive@x.com", false)
	r := newResolver(f)

	res, err := r.ResolveSet(context.Background(), sets.NewString("dup@x.com"), Options{})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if !res.HasUnresolved {
		t.Errorf("expected ambiguous accounts to be unresolved")
	}

	res, err = r.ResolveSet(context.Background(), sets.NewString("inactive@x.com"), Options{})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if !res.HasUnresolved {
		t.Errorf("expected inactive account to be filtered out and unresolved")
	}
}

func TestResolveVisibility(t *testing.T) {
	f := newFakeAccounts()
	f.add("1", "bob@x.com", true)
	f.visible["1"] = false
	r := newResolver(f)

	res, err := r.ResolveSet(context.Background(), sets.NewString("bob@x.com"), Options{EnforceVisibility: true, AsUser: "viewer"})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if !res.HasUnresolved {
		t.Errorf("expected invisible account to be unresolved")
	}
}

func TestResolveSecondaryEmailRequiresOwnershipOrCapability(t *testing.T) {
	f := newFakeAccounts()
	f.add("1", "carol@x.com", true, "carol-alt@x.com")
	r := newResolver(f)

	res, err := r.ResolveSet(context.Background(), sets.NewString("carol-alt@x.com"), Options{EnforceVisibility: true, AsUser: "viewer"})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if !res.HasUnresolved {
		t.Errorf("expected secondary email not owned by viewer, without modify capability, to be unresolved")
	}

	f.secondary["carol-alt@x.com"] = true
	res, err = r.ResolveSet(context.Background(), sets.NewString("carol-alt@x.com"), Options{EnforceVisibility: true, AsUser: "viewer"})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if res.HasUnresolved {
		t.Errorf("expected secondary email owned by viewer to resolve")
	}
	if !res.Owners.Has("1") {
		t.Errorf("expected account 1 to be resolved, got %+v", res.Owners)
	}
}

func TestResolveInvalidEmail(t *testing.T) {
	f := newFakeAccounts()
	r := newResolver(f)
	res, err := r.ResolveSet(context.Background(), sets.NewString("not-an-email"), Options{})
	if err != nil {
		t.Fatalf("ResolveSet: %v", err)
	}
	if !res.HasUnresolved {
		t.Errorf("expected a reference without '@' to be unresolved")
	}
}
